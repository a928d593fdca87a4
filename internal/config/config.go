package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"hardhat-pipeline/internal/dataset"

	"gopkg.in/yaml.v3"
)

type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing required configuration key '%s'", e.Key)
}

type DataIngestion struct {
	RootDir         string `yaml:"data_root_dir"`
	APIKeyFile      string `yaml:"roboflow_api_key_file"`
	Workspace       string `yaml:"roboflow_workspace"`
	Project         string `yaml:"roboflow_project"`
	Version         int    `yaml:"roboflow_version"`
	ExportFormat    string `yaml:"roboflow_export_format"`
	APIURL          string `yaml:"roboflow_api_url"`
	DownloadEnabled bool   `yaml:"download_enabled"`
	APIKey          string `yaml:"-"`
}

type DataValidation struct {
	RootDir    string         `yaml:"data_root_dir"`
	DataDir    string         `yaml:"data_dir"`
	StatusFile string         `yaml:"status_file"`
	DataFile   string         `yaml:"data_file"`
	Layout     dataset.Layout `yaml:"layout"`
}

type DataTransformation struct {
	RootDir    string         `yaml:"data_root_dir"`
	DataDir    string         `yaml:"data_dir"`
	StatusFile string         `yaml:"status_file"`
	Layout     dataset.Layout `yaml:"layout"`
}

type ModelTrainer struct {
	RootDir            string         `yaml:"data_root_dir"`
	DataDir            string         `yaml:"data_dir"`
	InputYAMLPath      string         `yaml:"input_yaml_path"`
	OutputYAMLPath     string         `yaml:"output_yaml_path"`
	ModelRootPath      string         `yaml:"model_root_path"`
	Script             string         `yaml:"script"`
	WeightName         string         `yaml:"weight_name"`
	BatchSize          int            `yaml:"batch_size"`
	Epochs             int            `yaml:"no_epochs"`
	RunName            string         `yaml:"run_name"`
	TrainedWeightsPath string         `yaml:"trained_weights_path"`
	Timeout            time.Duration  `yaml:"timeout"`
	Layout             dataset.Layout `yaml:"layout"`
}

type ModelEvaluation struct {
	RootDir        string         `yaml:"data_root_dir"`
	DataDir        string         `yaml:"data_dir"`
	InputYAMLPath  string         `yaml:"input_yaml_path"`
	OutputYAMLPath string         `yaml:"output_yaml_path"`
	ModelRootPath  string         `yaml:"model_root_path"`
	Script         string         `yaml:"script"`
	WeightsPath    string         `yaml:"weights_path"`
	BatchSize      int            `yaml:"batch_size"`
	RunName        string         `yaml:"run_name"`
	Timeout        time.Duration  `yaml:"timeout"`
	Layout         dataset.Layout `yaml:"layout"`
}

type ModelPusher struct {
	Storage         string `yaml:"storage"`
	LocalStorageDir string `yaml:"local_storage_dir"`
	BucketName      string `yaml:"s3_bucket_name"`
	Region          string `yaml:"region_name"`
	KeyPrefix       string `yaml:"key_prefix"`
	WeightsPath     string `yaml:"weights_path"`
	DatasetYAMLPath string `yaml:"dataset_yaml_path"`
	// Pushed copies kept per artifact, zero keeps all.
	KeepVersions    int    `yaml:"keep_versions"`
}

type Prediction struct {
	ModelRootPath   string        `yaml:"model_root_path"`
	Script          string        `yaml:"detect_script"`
	WeightsPath     string        `yaml:"weights_path"`
	DatasetYAMLPath string        `yaml:"dataset_yaml_path"`
	OutputDir       string        `yaml:"output_dir"`
	Confidence      float64       `yaml:"confidence"`
	Timeout         time.Duration `yaml:"timeout"`
}

type document struct {
	ArtifactsRoot      string             `yaml:"artifacts_root"`
	Python             string             `yaml:"python"`
	DataIngestion      DataIngestion      `yaml:"data_ingestion"`
	DataValidation     DataValidation     `yaml:"data_validation"`
	DataTransformation DataTransformation `yaml:"data_transformation"`
	ModelTrainer       ModelTrainer       `yaml:"model_trainer"`
	ModelEvaluation    ModelEvaluation    `yaml:"model_evaluation"`
	ModelPusher        ModelPusher        `yaml:"model_pusher"`
	Prediction         Prediction         `yaml:"prediction"`
}

// Config is the parsed pipeline configuration. It is read once and handed out
// by value, so stages never observe each other's mutations.
type Config struct {
	doc document
}

const (
	StorageS3    = "s3"
	StorageLocal = "local"
)

func defaults() document {
	layout := dataset.DefaultLayout()
	return document{
		Python: "python",
		DataIngestion: DataIngestion{
			ExportFormat: "yolov5",
			APIURL:       "https://api.roboflow.com",
		},
		DataValidation: DataValidation{
			DataFile: "data.yaml",
			Layout:   layout,
		},
		DataTransformation: DataTransformation{Layout: layout},
		ModelTrainer: ModelTrainer{
			Script:  "train.py",
			RunName: "results",
			Layout:  layout,
		},
		ModelEvaluation: ModelEvaluation{
			Script:  "val.py",
			RunName: "results",
			Layout:  layout,
		},
		ModelPusher: ModelPusher{Storage: StorageS3},
		Prediction: Prediction{
			Script:     "detect.py",
			OutputDir:  "detections",
			Confidence: 0.4,
		},
	}
}

// Load reads the configuration document at path, checks that every required
// key is present, reads the dataset API credentials and creates the artifact
// directories.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	doc := defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := doc.validate(); err != nil {
		return nil, err
	}

	key, err := ReadCredentials(doc.DataIngestion.APIKeyFile)
	if err != nil {
		return nil, err
	}
	doc.DataIngestion.APIKey = key

	for _, dir := range doc.dirs() {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	slog.Info("configuration loaded", "path", path, "artifacts_root", doc.ArtifactsRoot)

	return &Config{doc: doc}, nil
}

func (d *document) dirs() []string {
	return []string{
		d.ArtifactsRoot,
		d.DataIngestion.RootDir,
		d.DataValidation.RootDir,
		d.DataTransformation.RootDir,
		d.ModelTrainer.RootDir,
		d.ModelEvaluation.RootDir,
	}
}

type requirement struct {
	key     string
	missing bool
}

func str(key, v string) requirement { return requirement{key: key, missing: v == ""} }
func positive(key string, v int) requirement { return requirement{key: key, missing: v <= 0} }

func layoutRequirements(prefix string, l dataset.Layout) []requirement {
	return []requirement{
		str(prefix+".layout.train_dir", l.TrainDir),
		str(prefix+".layout.val_dir", l.ValDir),
		str(prefix+".layout.test_dir", l.TestDir),
		str(prefix+".layout.image_dir", l.ImageDir),
		str(prefix+".layout.label_dir", l.LabelDir),
		{key: prefix + ".layout.image_exts", missing: len(l.ImageExts) == 0},
		str(prefix+".layout.label_ext", l.LabelExt),
	}
}

func (d *document) validate() error {
	reqs := []requirement{
		str("artifacts_root", d.ArtifactsRoot),
		str("python", d.Python),

		str("data_ingestion.data_root_dir", d.DataIngestion.RootDir),
		str("data_ingestion.roboflow_api_key_file", d.DataIngestion.APIKeyFile),

		str("data_validation.data_root_dir", d.DataValidation.RootDir),
		str("data_validation.data_dir", d.DataValidation.DataDir),
		str("data_validation.status_file", d.DataValidation.StatusFile),
		str("data_validation.data_file", d.DataValidation.DataFile),

		str("data_transformation.data_root_dir", d.DataTransformation.RootDir),
		str("data_transformation.data_dir", d.DataTransformation.DataDir),
		str("data_transformation.status_file", d.DataTransformation.StatusFile),

		str("model_trainer.data_root_dir", d.ModelTrainer.RootDir),
		str("model_trainer.data_dir", d.ModelTrainer.DataDir),
		str("model_trainer.input_yaml_path", d.ModelTrainer.InputYAMLPath),
		str("model_trainer.output_yaml_path", d.ModelTrainer.OutputYAMLPath),
		str("model_trainer.model_root_path", d.ModelTrainer.ModelRootPath),
		str("model_trainer.script", d.ModelTrainer.Script),
		str("model_trainer.weight_name", d.ModelTrainer.WeightName),
		positive("model_trainer.batch_size", d.ModelTrainer.BatchSize),
		positive("model_trainer.no_epochs", d.ModelTrainer.Epochs),
		str("model_trainer.run_name", d.ModelTrainer.RunName),
		str("model_trainer.trained_weights_path", d.ModelTrainer.TrainedWeightsPath),

		str("model_evaluation.data_root_dir", d.ModelEvaluation.RootDir),
		str("model_evaluation.data_dir", d.ModelEvaluation.DataDir),
		str("model_evaluation.input_yaml_path", d.ModelEvaluation.InputYAMLPath),
		str("model_evaluation.output_yaml_path", d.ModelEvaluation.OutputYAMLPath),
		str("model_evaluation.model_root_path", d.ModelEvaluation.ModelRootPath),
		str("model_evaluation.script", d.ModelEvaluation.Script),
		str("model_evaluation.weights_path", d.ModelEvaluation.WeightsPath),
		positive("model_evaluation.batch_size", d.ModelEvaluation.BatchSize),
		str("model_evaluation.run_name", d.ModelEvaluation.RunName),

		str("model_pusher.storage", d.ModelPusher.Storage),
		str("model_pusher.weights_path", d.ModelPusher.WeightsPath),
		str("model_pusher.dataset_yaml_path", d.ModelPusher.DatasetYAMLPath),

		str("prediction.model_root_path", d.Prediction.ModelRootPath),
		str("prediction.detect_script", d.Prediction.Script),
		str("prediction.weights_path", d.Prediction.WeightsPath),
		str("prediction.dataset_yaml_path", d.Prediction.DatasetYAMLPath),
		str("prediction.output_dir", d.Prediction.OutputDir),
	}

	if d.DataIngestion.DownloadEnabled {
		reqs = append(reqs,
			str("data_ingestion.roboflow_workspace", d.DataIngestion.Workspace),
			str("data_ingestion.roboflow_project", d.DataIngestion.Project),
			positive("data_ingestion.roboflow_version", d.DataIngestion.Version),
			str("data_ingestion.roboflow_export_format", d.DataIngestion.ExportFormat),
			str("data_ingestion.roboflow_api_url", d.DataIngestion.APIURL),
		)
	}

	switch d.ModelPusher.Storage {
	case StorageS3:
		reqs = append(reqs,
			str("model_pusher.s3_bucket_name", d.ModelPusher.BucketName),
			str("model_pusher.region_name", d.ModelPusher.Region),
		)
	case StorageLocal:
		reqs = append(reqs, str("model_pusher.local_storage_dir", d.ModelPusher.LocalStorageDir))
	case "":
	default:
		return fmt.Errorf("invalid model_pusher.storage '%s': expected '%s' or '%s'", d.ModelPusher.Storage, StorageS3, StorageLocal)
	}

	reqs = append(reqs, layoutRequirements("data_validation", d.DataValidation.Layout)...)
	reqs = append(reqs, layoutRequirements("data_transformation", d.DataTransformation.Layout)...)
	reqs = append(reqs, layoutRequirements("model_trainer", d.ModelTrainer.Layout)...)
	reqs = append(reqs, layoutRequirements("model_evaluation", d.ModelEvaluation.Layout)...)

	if d.Prediction.Confidence <= 0 || d.Prediction.Confidence > 1 {
		return fmt.Errorf("invalid prediction.confidence %v: must be in (0, 1]", d.Prediction.Confidence)
	}

	var errs []error
	for _, r := range reqs {
		if r.missing {
			errs = append(errs, &MissingKeyError{Key: r.key})
		}
	}
	return errors.Join(errs...)
}

func (c *Config) ArtifactsRoot() string { return c.doc.ArtifactsRoot }

func (c *Config) Python() string { return c.doc.Python }

func (c *Config) DataIngestion() DataIngestion { return c.doc.DataIngestion }

func (c *Config) DataValidation() DataValidation { return c.doc.DataValidation }

func (c *Config) DataTransformation() DataTransformation { return c.doc.DataTransformation }

func (c *Config) ModelTrainer() ModelTrainer { return c.doc.ModelTrainer }

func (c *Config) ModelEvaluation() ModelEvaluation { return c.doc.ModelEvaluation }

func (c *Config) ModelPusher() ModelPusher { return c.doc.ModelPusher }

func (c *Config) Prediction() Prediction { return c.doc.Prediction }
