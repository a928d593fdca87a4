package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// PairReport describes how the images and labels of one split line up.
type PairReport struct {
	Split         string
	Images        int
	Labels        int
	MissingLabels []string
	MissingImages []string
}

func (r PairReport) Matched() bool {
	return len(r.MissingLabels) == 0 && len(r.MissingImages) == 0
}

func (r PairReport) Empty() bool {
	return r.Images == 0 && r.Labels == 0
}

// Pair compares file stems. It returns the stems of images with no label and
// of labels with no image, each sorted.
func Pair(images, labels []string) (missingLabels, missingImages []string) {
	imageStems := stems(images)
	labelStems := stems(labels)

	for s := range imageStems {
		if _, ok := labelStems[s]; !ok {
			missingLabels = append(missingLabels, s)
		}
	}
	for s := range labelStems {
		if _, ok := imageStems[s]; !ok {
			missingImages = append(missingImages, s)
		}
	}
	slices.Sort(missingLabels)
	slices.Sort(missingImages)
	return missingLabels, missingImages
}

func stems(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[stem(n)] = struct{}{}
	}
	return out
}

// ListFiles returns the names of the regular, non-hidden files in dir that
// satisfy keep. Symlinks count when their target is a regular file. A nil keep
// accepts every file.
func ListFiles(dir string, keep func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !isRegularFile(dir, e) {
			continue
		}
		if keep == nil || keep(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func isRegularFile(dir string, e fs.DirEntry) bool {
	if e.Type().IsRegular() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, e.Name()))
	return err == nil && info.Mode().IsRegular()
}

// CheckPairs compares every file in imageDir with the label files in labelDir.
func CheckPairs(split, imageDir, labelDir string, l Layout) (PairReport, error) {
	images, err := ListFiles(imageDir, nil)
	if err != nil {
		return PairReport{Split: split}, err
	}
	labels, err := ListFiles(labelDir, l.IsLabel)
	if err != nil {
		return PairReport{Split: split}, err
	}

	missingLabels, missingImages := Pair(images, labels)
	return PairReport{
		Split:         split,
		Images:        len(images),
		Labels:        len(labels),
		MissingLabels: missingLabels,
		MissingImages: missingImages,
	}, nil
}

var ErrLayout = errors.New("dataset layout is incomplete")

// CheckStructure verifies that dataDir holds every split with its image and
// label folders.
func CheckStructure(dataDir string, l Layout) error {
	if err := requireDir(dataDir); err != nil {
		return err
	}
	for _, split := range l.Splits() {
		for _, dir := range []string{
			filepath.Join(dataDir, split),
			filepath.Join(dataDir, split, l.ImageDir),
			filepath.Join(dataDir, split, l.LabelDir),
		} {
			if err := requireDir(dir); err != nil {
				return err
			}
		}
	}
	return nil
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLayout, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrLayout, dir)
	}
	return nil
}
