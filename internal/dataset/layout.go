package dataset

import (
	"path/filepath"
	"slices"
	"strings"
)

// Layout names the folders and file extensions of an object-detection dataset
// exported in the split/{images,labels} form.
type Layout struct {
	TrainDir  string   `yaml:"train_dir"`
	ValDir    string   `yaml:"val_dir"`
	TestDir   string   `yaml:"test_dir"`
	ImageDir  string   `yaml:"image_dir"`
	LabelDir  string   `yaml:"label_dir"`
	ImageExts []string `yaml:"image_exts"`
	LabelExt  string   `yaml:"label_ext"`
}

func DefaultLayout() Layout {
	return Layout{
		TrainDir:  "train",
		ValDir:    "valid",
		TestDir:   "test",
		ImageDir:  "images",
		LabelDir:  "labels",
		ImageExts: []string{".jpg"},
		LabelExt:  ".txt",
	}
}

// Splits returns the split folder names in train, val, test order.
func (l Layout) Splits() []string {
	return []string{l.TrainDir, l.ValDir, l.TestDir}
}

func (l Layout) IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return slices.ContainsFunc(l.ImageExts, func(e string) bool {
		return strings.ToLower(e) == ext
	})
}

func (l Layout) IsLabel(name string) bool {
	return strings.EqualFold(filepath.Ext(name), l.LabelExt)
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
