// Package configtest writes configuration documents for tests.
package configtest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Template is a complete configuration document rooted at {{root}} that
// stores pushed models on the local filesystem.
const Template = `
artifacts_root: {{root}}/artifacts
python: python3
data_ingestion:
  data_root_dir: {{root}}/artifacts/data_ingestion
  roboflow_api_key_file: {{creds}}
  roboflow_workspace: ws
  roboflow_project: hard-hats
  roboflow_version: 2
  download_enabled: false
data_validation:
  data_root_dir: {{root}}/artifacts/data_validation
  data_dir: {{root}}/artifacts/data_ingestion
  status_file: {{root}}/artifacts/data_validation/status.txt
data_transformation:
  data_root_dir: {{root}}/artifacts/data_transformation
  data_dir: {{root}}/artifacts/data_ingestion
  status_file: {{root}}/artifacts/data_validation/status.txt
  layout:
    image_exts: [".jpg", ".png"]
model_trainer:
  data_root_dir: {{root}}/artifacts/model_trainer
  data_dir: {{root}}/artifacts/data_transformation
  input_yaml_path: {{root}}/artifacts/data_ingestion/data.yaml
  output_yaml_path: {{root}}/artifacts/model_trainer/dataset.yaml
  model_root_path: {{root}}/yolov5
  weight_name: yolov5s.pt
  batch_size: 16
  no_epochs: 3
  trained_weights_path: {{root}}/artifacts/model_trainer/best.pt
  timeout: 2h
model_evaluation:
  data_root_dir: {{root}}/artifacts/model_evaluation
  data_dir: {{root}}/artifacts/data_transformation
  input_yaml_path: {{root}}/artifacts/data_ingestion/data.yaml
  output_yaml_path: {{root}}/artifacts/model_evaluation/dataset.yaml
  model_root_path: {{root}}/yolov5
  weights_path: {{root}}/artifacts/model_trainer/best.pt
  batch_size: 8
model_pusher:
  storage: local
  local_storage_dir: {{root}}/bucket
  weights_path: {{root}}/artifacts/model_trainer/best.pt
  dataset_yaml_path: {{root}}/artifacts/model_trainer/dataset.yaml
prediction:
  model_root_path: {{root}}/yolov5
  weights_path: {{root}}/artifacts/model_trainer/best.pt
  dataset_yaml_path: {{root}}/artifacts/model_trainer/dataset.yaml
`

const APIKey = "secret-key"

func WriteCredentials(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// WriteWithCredentials renders Template under dir with the given credentials
// path. edit, when set, may rewrite the document before it is saved.
func WriteWithCredentials(t *testing.T, dir, credsPath string, edit func(string) string) string {
	t.Helper()
	content := strings.ReplaceAll(Template, "{{root}}", dir)
	content = strings.ReplaceAll(content, "{{creds}}", credsPath)
	if edit != nil {
		content = edit(content)
	}
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// Write renders a valid configuration and credentials file under dir and
// returns the configuration path.
func Write(t *testing.T, dir string, edit func(string) string) string {
	t.Helper()
	creds := WriteCredentials(t, dir, "roboflow_api_key:\n  ROBOFLOW_API_KEY: "+APIKey+"\n")
	return WriteWithCredentials(t, dir, creds, edit)
}
