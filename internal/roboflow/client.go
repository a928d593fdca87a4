// Package roboflow downloads dataset exports from the Roboflow REST API.
package roboflow

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "https://api.roboflow.com"

var ErrExportNotReady = errors.New("dataset export is not available")

type Client struct {
	client *resty.Client
	apiKey string
}

func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetTimeout(10 * time.Minute),
		apiKey: apiKey,
	}
}

type Export struct {
	Workspace string
	Project   string
	Version   int
	Format    string
}

type exportResponse struct {
	Export struct {
		Link string `json:"link"`
	} `json:"export"`
}

// ExportLink resolves the download link of a dataset version export.
func (c *Client) ExportLink(ctx context.Context, e Export) (string, error) {
	endpoint := "/" + url.PathEscape(e.Workspace) + "/" + url.PathEscape(e.Project) + "/" + strconv.Itoa(e.Version) + "/" + url.PathEscape(e.Format)

	var body exportResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("api_key", c.apiKey).
		SetResult(&body).
		Get(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to request export %s: %w", endpoint, err)
	}

	if !res.IsSuccess() {
		slog.Error("dataset api returned error", "status_code", res.StatusCode(), "body", res.String())
		return "", fmt.Errorf("dataset api returned status %d for %s", res.StatusCode(), endpoint)
	}

	if body.Export.Link == "" {
		return "", fmt.Errorf("%w: %s", ErrExportNotReady, endpoint)
	}

	return body.Export.Link, nil
}

// Download fetches the export archive and unpacks it into dest, overwriting
// files that already exist.
func (c *Client) Download(ctx context.Context, e Export, dest string) error {
	link, err := c.ExportLink(ctx, e)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp("", "dataset-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	slog.Info("downloading dataset export", "workspace", e.Workspace, "project", e.Project, "version", e.Version, "format", e.Format)

	res, err := c.client.R().
		SetContext(ctx).
		SetOutput(tmp.Name()).
		Get(link)
	if err != nil {
		return fmt.Errorf("failed to download dataset export: %w", err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("dataset export download returned status %d", res.StatusCode())
	}

	n, err := Extract(tmp.Name(), dest)
	if err != nil {
		return err
	}

	slog.Info("dataset export extracted", "dest", dest, "files", n)
	return nil
}

// Extract unpacks the zip archive at src into dest and returns the number of
// files written. Entries that would land outside dest are rejected.
func Extract(src, dest string) (int, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive %s: %w", src, err)
	}
	defer r.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve %s: %w", dest, err)
	}

	files := 0
	for _, f := range r.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return files, fmt.Errorf("archive entry %s escapes destination %s", f.Name, dest)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, os.ModePerm); err != nil {
				return files, fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return files, err
		}
		files++
	}

	return files, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}

	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}
