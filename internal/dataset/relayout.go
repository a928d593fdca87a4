package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
)

type RelayoutStats struct {
	Images int
	Labels int
}

type copyJob struct {
	src, dst string
	image    bool
}

// Relayout copies <src>/<split>/{images,labels} into <dst>/{images,labels}/<split>.
// Only files with the layout's image and label extensions are copied. Existing
// destination files are overwritten, so running it twice leaves the same tree.
// Progress is drawn on progress when it is non-nil.
func Relayout(ctx context.Context, src, dst string, l Layout, progress io.Writer) (RelayoutStats, error) {
	var jobs []copyJob
	for _, split := range l.Splits() {
		imgDst := filepath.Join(dst, l.ImageDir, split)
		lblDst := filepath.Join(dst, l.LabelDir, split)
		for _, dir := range []string{imgDst, lblDst} {
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return RelayoutStats{}, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}

		imgSrc := filepath.Join(src, split, l.ImageDir)
		images, err := ListFiles(imgSrc, l.IsImage)
		if err != nil {
			return RelayoutStats{}, err
		}
		for _, name := range images {
			jobs = append(jobs, copyJob{src: filepath.Join(imgSrc, name), dst: filepath.Join(imgDst, name), image: true})
		}

		lblSrc := filepath.Join(src, split, l.LabelDir)
		labels, err := ListFiles(lblSrc, l.IsLabel)
		if err != nil {
			return RelayoutStats{}, err
		}
		for _, name := range labels {
			jobs = append(jobs, copyJob{src: filepath.Join(lblSrc, name), dst: filepath.Join(lblDst, name)})
		}
	}

	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(len(jobs),
		progressbar.OptionSetDescription("copying dataset"),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)

	var stats RelayoutStats
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := CopyFile(job.src, job.dst); err != nil {
			return stats, err
		}
		if job.image {
			stats.Images++
		} else {
			stats.Labels++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	return stats, nil
}

// CopyFile copies src to dst, replacing dst if it exists.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
