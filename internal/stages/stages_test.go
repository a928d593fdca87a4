package stages

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"hardhat-pipeline/internal/config"
	"hardhat-pipeline/internal/dataset"
	"hardhat-pipeline/internal/dataset/datasettest"
	"hardhat-pipeline/internal/gate"
	"hardhat-pipeline/internal/logging"
	"hardhat-pipeline/internal/process"
	"hardhat-pipeline/internal/roboflow"
	"hardhat-pipeline/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	calls []roboflow.Export
	err   error
}

func (f *fakeDownloader) Download(ctx context.Context, e roboflow.Export, dest string) error {
	f.calls = append(f.calls, e)
	return f.err
}

type fakeRunner struct {
	commands []process.Command
	run      func(cmd process.Command) error
}

func (f *fakeRunner) Run(ctx context.Context, cmd process.Command) (process.Result, error) {
	f.commands = append(f.commands, cmd)
	if f.run != nil {
		return process.Result{}, f.run(cmd)
	}
	return process.Result{}, nil
}

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestSelect(t *testing.T) {
	all, err := Select(nil)
	require.NoError(t, err)
	assert.Equal(t, Order, all)

	picked, err := Select([]string{ModelPusher, DataValidation})
	require.NoError(t, err)
	assert.Equal(t, []string{DataValidation, ModelPusher}, picked)

	_, err = Select([]string{"deploy"})
	assert.ErrorContains(t, err, "deploy")

	assert.Equal(t, "Model Trainer stage", Title(ModelTrainer))
}

func TestIngestionDisabled(t *testing.T) {
	d := &fakeDownloader{}
	s := NewIngestion(config.DataIngestion{RootDir: t.TempDir()}, d, logging.NewNop())

	require.NoError(t, s.Run(context.Background()))
	assert.Empty(t, d.calls)
}

func TestIngestionEnabled(t *testing.T) {
	d := &fakeDownloader{}
	s := NewIngestion(config.DataIngestion{
		RootDir:         t.TempDir(),
		DownloadEnabled: true,
		Workspace:       "ws",
		Project:         "hard-hats",
		Version:         2,
		ExportFormat:    "yolov5",
	}, d, logging.NewNop())

	require.NoError(t, s.Run(context.Background()))
	require.Len(t, d.calls, 1)
	assert.Equal(t, roboflow.Export{Workspace: "ws", Project: "hard-hats", Version: 2, Format: "yolov5"}, d.calls[0])

	d.err = errors.New("quota exceeded")
	assert.ErrorContains(t, s.Run(context.Background()), "quota exceeded")
}

func validationConfig(t *testing.T, dataDir string) config.DataValidation {
	root := t.TempDir()
	return config.DataValidation{
		RootDir:    root,
		DataDir:    dataDir,
		StatusFile: filepath.Join(root, "status.txt"),
		DataFile:   "data.yaml",
		Layout:     dataset.DefaultLayout(),
	}
}

func readStatus(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestValidationPasses(t *testing.T) {
	dataDir := t.TempDir()
	datasettest.Valid(t, dataDir, dataset.DefaultLayout())
	cfg := validationConfig(t, dataDir)

	s := NewValidation(cfg, logging.NewNop())
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, "True", readStatus(t, cfg.StatusFile))
}

func TestValidationMissingLabel(t *testing.T) {
	dataDir := t.TempDir()
	l := dataset.DefaultLayout()
	datasettest.Write(t, dataDir, l, map[string]datasettest.Split{
		"train": {Images: []string{"a.jpg", "b.jpg"}, Labels: []string{"a.txt"}},
	}, "head")
	cfg := validationConfig(t, dataDir)

	s := NewValidation(cfg, logging.NewNop())
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, "False", readStatus(t, cfg.StatusFile))
}

func TestValidationFailsClosed(t *testing.T) {
	cases := map[string]func(t *testing.T, dir string){
		"missing data dir": func(t *testing.T, dir string) {
			require.NoError(t, os.RemoveAll(dir))
		},
		"missing split": func(t *testing.T, dir string) {
			datasettest.Valid(t, dir, dataset.DefaultLayout())
			require.NoError(t, os.RemoveAll(filepath.Join(dir, "test")))
		},
		"missing description": func(t *testing.T, dir string) {
			datasettest.Valid(t, dir, dataset.DefaultLayout())
			require.NoError(t, os.Remove(filepath.Join(dir, "data.yaml")))
		},
		"orphan label": func(t *testing.T, dir string) {
			datasettest.Valid(t, dir, dataset.DefaultLayout())
			require.NoError(t, os.WriteFile(filepath.Join(dir, "valid", "labels", "zz.txt"), nil, 0644))
		},
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			setup(t, dir)
			s := NewValidation(validationConfig(t, dir), logging.NewNop())
			assert.False(t, s.Validate())
		})
	}
}

func TestValidationEmptySplits(t *testing.T) {
	dataDir := t.TempDir()
	datasettest.Write(t, dataDir, dataset.DefaultLayout(), map[string]datasettest.Split{
		"train": {Images: []string{"a.jpg"}, Labels: []string{"a.txt"}},
	}, "head")

	s := NewValidation(validationConfig(t, dataDir), logging.NewNop())
	assert.True(t, s.Validate())
}

func TestValidationAllSplitsEmptyFails(t *testing.T) {
	dataDir := t.TempDir()
	datasettest.Write(t, dataDir, dataset.DefaultLayout(), nil, "head")
	cfg := validationConfig(t, dataDir)

	s := NewValidation(cfg, logging.NewNop())
	assert.False(t, s.Validate())

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, "False", readStatus(t, cfg.StatusFile))
}

func transformationConfig(t *testing.T, dataDir, status string) config.DataTransformation {
	return config.DataTransformation{
		RootDir:    t.TempDir(),
		DataDir:    dataDir,
		StatusFile: status,
		Layout:     dataset.DefaultLayout(),
	}
}

func TestTransformationRequiresPassingStatus(t *testing.T) {
	dataDir := t.TempDir()
	datasettest.Valid(t, dataDir, dataset.DefaultLayout())
	status := filepath.Join(t.TempDir(), "status.txt")
	cfg := transformationConfig(t, dataDir, status)
	s := NewTransformation(cfg, nil, logging.NewNop())

	assert.ErrorIs(t, s.Run(context.Background()), gate.ErrStatusMissing)

	require.NoError(t, gate.Write(status, "Validation Status:", false))
	assert.ErrorIs(t, s.Run(context.Background()), gate.ErrValidationFailed)
	assert.NoDirExists(t, filepath.Join(cfg.RootDir, "images"))

	require.NoError(t, gate.Write(status, "Validation Status:", true))
	require.NoError(t, s.Run(context.Background()))
	assert.FileExists(t, filepath.Join(cfg.RootDir, "images", "train", "a.jpg"))
	assert.FileExists(t, filepath.Join(cfg.RootDir, "labels", "test", "d.txt"))
}

func TestTransformationRejectsMismatch(t *testing.T) {
	dataDir := t.TempDir()
	l := dataset.DefaultLayout()
	datasettest.Write(t, dataDir, l, map[string]datasettest.Split{
		"train": {Images: []string{"a.jpg"}, Labels: []string{"a.txt"}},
		"valid": {Images: []string{"b.jpg"}, Labels: []string{"c.txt"}},
	})
	status := filepath.Join(t.TempDir(), "status.txt")
	require.NoError(t, gate.Write(status, "", true))

	s := NewTransformation(transformationConfig(t, dataDir, status), nil, logging.NewNop())
	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrPairMismatch)
	assert.ErrorContains(t, err, "valid")
}

func trainerConfig(t *testing.T) config.ModelTrainer {
	dataDir := t.TempDir()
	datasettest.Valid(t, dataDir, dataset.DefaultLayout())

	modelRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(modelRoot, "train.py"), []byte(fakeTrainScript), 0755))

	root := t.TempDir()
	return config.ModelTrainer{
		RootDir:            root,
		DataDir:            dataDir,
		InputYAMLPath:      filepath.Join(dataDir, "data.yaml"),
		OutputYAMLPath:     filepath.Join(root, "dataset.yaml"),
		ModelRootPath:      modelRoot,
		Script:             "train.py",
		WeightName:         "yolov5s.pt",
		BatchSize:          4,
		Epochs:             2,
		RunName:            "results",
		TrainedWeightsPath: filepath.Join(root, "best.pt"),
		Layout:             dataset.DefaultLayout(),
	}
}

// fakeTrainScript mimics the training script closely enough to exercise the
// command line and the weights hand-off.
const fakeTrainScript = `
echo "$@" > args.txt
while [ $# -gt 0 ]; do
  case "$1" in
    --project) project="$2"; shift ;;
    --name) name="$2"; shift ;;
  esac
  shift
done
mkdir -p "$project/$name/weights"
echo trained > "$project/$name/weights/best.pt"
`

func TestTrainerCommand(t *testing.T) {
	cfg := trainerConfig(t)
	runner := &fakeRunner{run: func(cmd process.Command) error {
		dir := filepath.Join(argValue(cmd.Args, "--project"), argValue(cmd.Args, "--name"), "weights")
		require.NoError(t, os.MkdirAll(dir, os.ModePerm))
		return os.WriteFile(filepath.Join(dir, "best.pt"), []byte("w"), 0644)
	}}

	s := NewTrainer(cfg, "python3", runner, logging.NewNop())
	require.NoError(t, s.Run(context.Background()))

	require.Len(t, runner.commands, 1)
	cmd := runner.commands[0]
	assert.Equal(t, "python3", cmd.Name)
	assert.Equal(t, cfg.ModelRootPath, cmd.Dir)
	assert.Equal(t, []string{
		"train.py",
		"--weights", "yolov5s.pt",
		"--data", cfg.OutputYAMLPath,
		"--batch", "4",
		"--epochs", "2",
		"--project", cfg.RootDir,
		"--name", "results",
		"--exist-ok",
		"--cache",
	}, cmd.Args)

	assert.FileExists(t, cfg.OutputYAMLPath)
	assert.FileExists(t, cfg.TrainedWeightsPath)
}

func TestTrainerRunsScript(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	cfg := trainerConfig(t)

	s := NewTrainer(cfg, "sh", process.NewExecRunner(nil), logging.NewNop())
	require.NoError(t, s.Run(context.Background()))

	data, err := os.ReadFile(cfg.TrainedWeightsPath)
	require.NoError(t, err)
	assert.Equal(t, "trained\n", string(data))

	args, err := os.ReadFile(filepath.Join(cfg.ModelRootPath, "args.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(args), "--weights yolov5s.pt")
	assert.Contains(t, string(args), "--cache")
}

func TestTrainerPropagatesExitCode(t *testing.T) {
	cfg := trainerConfig(t)
	runner := &fakeRunner{run: func(cmd process.Command) error {
		return &process.ExitError{Command: cmd.String(), ExitCode: 1, Stderr: "CUDA out of memory"}
	}}

	err := NewTrainer(cfg, "python", runner, logging.NewNop()).Run(context.Background())
	var exitErr *process.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode)
	assert.NoFileExists(t, cfg.TrainedWeightsPath)
}

func TestTrainerMissingFramework(t *testing.T) {
	cfg := trainerConfig(t)
	cfg.ModelRootPath = filepath.Join(t.TempDir(), "yolov5")
	runner := &fakeRunner{}

	err := NewTrainer(cfg, "python", runner, logging.NewNop()).Run(context.Background())
	assert.ErrorIs(t, err, ErrFrameworkMissing)
	assert.Empty(t, runner.commands)

	cfg = trainerConfig(t)
	cfg.Script = "missing.py"
	err = NewTrainer(cfg, "python", runner, logging.NewNop()).Run(context.Background())
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestTrainerNoWeightsProduced(t *testing.T) {
	cfg := trainerConfig(t)
	err := NewTrainer(cfg, "python", &fakeRunner{}, logging.NewNop()).Run(context.Background())
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestEvaluationCommand(t *testing.T) {
	tc := trainerConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(tc.ModelRootPath, "val.py"), nil, 0644))
	require.NoError(t, os.WriteFile(tc.TrainedWeightsPath, []byte("w"), 0644))

	root := t.TempDir()
	cfg := config.ModelEvaluation{
		RootDir:        root,
		DataDir:        tc.DataDir,
		InputYAMLPath:  tc.InputYAMLPath,
		OutputYAMLPath: filepath.Join(root, "dataset.yaml"),
		ModelRootPath:  tc.ModelRootPath,
		Script:         "val.py",
		WeightsPath:    tc.TrainedWeightsPath,
		BatchSize:      8,
		RunName:        "results",
		Layout:         dataset.DefaultLayout(),
	}
	runner := &fakeRunner{}

	s := NewEvaluation(cfg, "python", runner, logging.NewNop())
	require.NoError(t, s.Run(context.Background()))

	require.Len(t, runner.commands, 1)
	assert.Equal(t, []string{
		"val.py",
		"--weights", tc.TrainedWeightsPath,
		"--data", cfg.OutputYAMLPath,
		"--batch", "8",
		"--project", root,
		"--name", "results",
		"--exist-ok",
	}, runner.commands[0].Args)
	assert.Equal(t, filepath.Join(root, "results"), s.ResultsDir())

	cfg.WeightsPath = filepath.Join(root, "none.pt")
	err := NewEvaluation(cfg, "python", runner, logging.NewNop()).Run(context.Background())
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Len(t, runner.commands, 1)
}

func TestPusher(t *testing.T) {
	dir := t.TempDir()
	weights := filepath.Join(dir, "best.pt")
	descriptor := filepath.Join(dir, "dataset.yaml")
	require.NoError(t, os.WriteFile(weights, []byte("w"), 0644))
	require.NoError(t, os.WriteFile(descriptor, []byte("names: {}"), 0644))

	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	now := func() time.Time { return time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC) }
	s := NewPusher(config.ModelPusher{
		Storage:         config.StorageLocal,
		BucketName:      "models",
		KeyPrefix:       "hardhat",
		WeightsPath:     weights,
		DatasetYAMLPath: descriptor,
	}, store, now, logging.NewNop())

	keys, err := s.Push(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"hardhat/best_20240601123045.pt", "hardhat/dataset_20240601123045.yaml"}, keys)

	objects, err := store.ListObjects(context.Background(), "models", "hardhat/")
	require.NoError(t, err)
	assert.Len(t, objects, 2)
}

func TestPusherKeepsNewestVersions(t *testing.T) {
	dir := t.TempDir()
	weights := filepath.Join(dir, "best.pt")
	descriptor := filepath.Join(dir, "dataset.yaml")
	require.NoError(t, os.WriteFile(weights, []byte("w"), 0644))
	require.NoError(t, os.WriteFile(descriptor, []byte("names: {}"), 0644))

	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	cfg := config.ModelPusher{
		Storage:         config.StorageLocal,
		BucketName:      "models",
		KeyPrefix:       "hardhat",
		WeightsPath:     weights,
		DatasetYAMLPath: descriptor,
		KeepVersions:    2,
	}
	for i := range 3 {
		now := func() time.Time { return time.Date(2024, 6, 1, 12, i, 0, 0, time.UTC) }
		_, err := NewPusher(cfg, store, now, logging.NewNop()).Push(context.Background())
		require.NoError(t, err)
	}

	objects, err := store.ListObjects(context.Background(), "models", "hardhat/")
	require.NoError(t, err)
	names := make([]string, len(objects))
	for i, obj := range objects {
		names[i] = obj.Name
	}
	assert.ElementsMatch(t, []string{
		"hardhat/best_20240601120100.pt",
		"hardhat/best_20240601120200.pt",
		"hardhat/dataset_20240601120100.yaml",
		"hardhat/dataset_20240601120200.yaml",
	}, names)
}

func TestPusherMissingArtifact(t *testing.T) {
	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	s := NewPusher(config.ModelPusher{
		WeightsPath:     filepath.Join(t.TempDir(), "best.pt"),
		DatasetYAMLPath: filepath.Join(t.TempDir(), "dataset.yaml"),
	}, store, nil, logging.NewNop())

	err = s.Run(context.Background())
	assert.ErrorIs(t, err, fs.ErrNotExist)

	exists, err := store.BucketExists(context.Background(), s.Bucket())
	require.NoError(t, err)
	assert.False(t, exists)
}
