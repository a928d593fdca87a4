package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v2"
)

var ErrNoClassNames = errors.New("dataset description has no class names")

// Descriptor is the dataset description handed to the training, evaluation
// and detection scripts.
type Descriptor struct {
	Path  string
	Train string
	Val   string
	Test  string
	Names []string
}

// NewDescriptor points the split entries at the images/<split> folders of a
// transformed dataset rooted at dataDir.
func NewDescriptor(dataDir string, l Layout, names []string) (Descriptor, error) {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to resolve %s: %w", dataDir, err)
	}
	return Descriptor{
		Path:  abs,
		Train: filepath.ToSlash(filepath.Join(l.ImageDir, l.TrainDir)),
		Val:   filepath.ToSlash(filepath.Join(l.ImageDir, l.ValDir)),
		Test:  filepath.ToSlash(filepath.Join(l.ImageDir, l.TestDir)),
		Names: names,
	}, nil
}

// ReadClassNames returns the class names listed under "names" in a dataset
// description. Both the list form and the index map form are accepted.
func ReadClassNames(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset description %s: %w", path, err)
	}

	var doc struct {
		Names interface{} `yaml:"names"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse dataset description %s: %w", path, err)
	}

	var names []string
	switch v := doc.Names.(type) {
	case []interface{}:
		for _, n := range v {
			names = append(names, fmt.Sprint(n))
		}
	case map[interface{}]interface{}:
		idx := make([]int, 0, len(v))
		byIdx := make(map[int]string, len(v))
		for k, n := range v {
			i, ok := k.(int)
			if !ok {
				return nil, fmt.Errorf("dataset description %s: class index %v is not an integer", path, k)
			}
			idx = append(idx, i)
			byIdx[i] = fmt.Sprint(n)
		}
		sort.Ints(idx)
		for _, i := range idx {
			names = append(names, byIdx[i])
		}
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoClassNames, path)
	}
	return names, nil
}

func (d Descriptor) MarshalYAML() (interface{}, error) {
	names := make(yaml.MapSlice, 0, len(d.Names))
	for i, n := range d.Names {
		names = append(names, yaml.MapItem{Key: i, Value: n})
	}
	return yaml.MapSlice{
		{Key: "path", Value: d.Path},
		{Key: "train", Value: d.Train},
		{Key: "val", Value: d.Val},
		{Key: "test", Value: d.Test},
		{Key: "names", Value: names},
	}, nil
}

func (d Descriptor) Write(path string) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode dataset description: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write dataset description %s: %w", path, err)
	}
	return nil
}

// GenerateDescriptor reads the class names from input and writes a description
// of the transformed dataset at dataDir to output.
func GenerateDescriptor(input, output, dataDir string, l Layout) (Descriptor, error) {
	names, err := ReadClassNames(input)
	if err != nil {
		return Descriptor{}, err
	}
	d, err := NewDescriptor(dataDir, l, names)
	if err != nil {
		return Descriptor{}, err
	}
	if err := d.Write(output); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}
