package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrCredentials = errors.New("invalid dataset api credentials")

type credentialsFile struct {
	RoboflowAPIKey struct {
		Key string `yaml:"ROBOFLOW_API_KEY"`
	} `yaml:"roboflow_api_key"`
}

// ReadCredentials returns the dataset API key stored in the YAML file at path.
// A missing file yields an error matching both fs.ErrNotExist and ErrCredentials.
func ReadCredentials(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: unable to read %s: %w", ErrCredentials, path, err)
	}

	var creds credentialsFile
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return "", fmt.Errorf("%w: unable to parse %s: %w", ErrCredentials, path, err)
	}

	if creds.RoboflowAPIKey.Key == "" {
		return "", fmt.Errorf("%w: %w", ErrCredentials, &MissingKeyError{Key: "roboflow_api_key.ROBOFLOW_API_KEY"})
	}

	return creds.RoboflowAPIKey.Key, nil
}
