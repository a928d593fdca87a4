package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	backend "hardhat-pipeline/internal/api"
	"hardhat-pipeline/internal/database"
	"hardhat-pipeline/internal/messaging"
	"hardhat-pipeline/internal/metrics"
	"hardhat-pipeline/internal/stages"
	"hardhat-pipeline/pkg/api"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	return db
}

type mockDetector struct {
	images []string
	err    error
}

func (m *mockDetector) Detect(ctx context.Context, imagePath string) (string, error) {
	m.images = append(m.images, imagePath)
	if m.err != nil {
		return "", m.err
	}
	return "/detections/results", nil
}

type failingPublisher struct{}

func (failingPublisher) PublishPipelineRun(context.Context, messaging.PipelineRunPayload) error {
	return errors.New("broker unavailable")
}

func (failingPublisher) Close() {}

type testServer struct {
	router   http.Handler
	db       *gorm.DB
	queue    *messaging.InMemoryQueue
	detector *mockDetector
	uploads  string
}

func newTestServer(t *testing.T, publisher messaging.Publisher) *testServer {
	db := createDB(t)
	queue := messaging.NewInMemoryQueue()
	if publisher == nil {
		publisher = queue
	}
	detector := &mockDetector{}

	dir := filepath.Join(t.TempDir(), "uploads")
	uploads, err := backend.NewUploads(dir)
	require.NoError(t, err)

	router := backend.NewRouter(
		backend.NewBackendService(db, publisher, detector, uploads),
		backend.NewWebService(uploads, detector),
		metrics.NewNop(),
	)
	return &testServer{router: router, db: db, queue: queue, detector: detector, uploads: dir}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func imageRequest(t *testing.T, endpoint, filename string, content []byte) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("other", "value"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, endpoint, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, endpoint string, payload any) *http.Request {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, endpoint, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestIndex(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="image"`)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestUpload(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(imageRequest(t, "/upload", "site photo.JPG", []byte("jpeg bytes")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Image detected successfully. Detected image saved at /detections/results")

	saved := filepath.Join(s.uploads, "site_photo.JPG")
	assert.Equal(t, []string{saved}, s.detector.images)
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
}

func TestUploadInputErrors(t *testing.T) {
	s := newTestServer(t, nil)

	cases := map[string]struct {
		filename string
		message  string
	}{
		"missing image":  {filename: "", message: "Image input is required in the form"},
		"invalid format": {filename: "site.bmp", message: "Invalid image format, allowed formats are - png, jpg, jpeg, gif only"},
		"no extension":   {filename: "site", message: "Invalid image format"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := s.do(imageRequest(t, "/upload", tc.filename, []byte("x")))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.message)
		})
	}
	assert.Empty(t, s.detector.images)
}

func TestUploadDuplicateName(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(imageRequest(t, "/upload", "site.png", []byte("first")))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(imageRequest(t, "/upload", "site.png", []byte("second")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Image with the same name already exists")

	data, err := os.ReadFile(filepath.Join(s.uploads, "site.png"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	assert.Len(t, s.detector.images, 1)
}

func TestUploadDetectionFailure(t *testing.T) {
	s := newTestServer(t, nil)
	s.detector.err = errors.New("exit status 1")

	rec := s.do(imageRequest(t, "/upload", "site.gif", []byte("gif")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "500 Internal Server Error")
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(imageRequest(t, "/upload", "huge.jpg", bytes.Repeat([]byte("x"), backend.MaxUploadBytes+1)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, s.detector.images)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "404 Not Found")
}

func TestSecureFilename(t *testing.T) {
	cases := map[string]string{
		"photo.jpg":            "photo.jpg",
		"my site photo.png":    "my_site_photo.png",
		"../../etc/passwd.jpg": "etc_passwd.jpg",
		`C:\Users\me\a.gif`:    "C_Users_me_a.gif",
		"..hidden.jpeg":        "hidden.jpeg",
		"héllo.jpg":            "hllo.jpg",
		"../..":                "",
	}

	for input, expected := range cases {
		assert.Equal(t, expected, backend.SecureFilename(input), input)
	}
}

func TestPredict(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(imageRequest(t, "/api/v1/predict", "worker.jpeg", []byte("jpeg")))
	require.Equal(t, http.StatusOK, rec.Code)

	var res api.PredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, filepath.Join(s.uploads, "worker.jpeg"), res.Image)
	assert.Equal(t, "/detections/results", res.OutputDir)

	rec = s.do(imageRequest(t, "/api/v1/predict", "worker.jpeg", []byte("jpeg")))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(imageRequest(t, "/api/v1/predict", "worker.tiff", []byte("tiff")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.detector.err = errors.New("no weights")
	rec = s.do(imageRequest(t, "/api/v1/predict", "other.jpg", []byte("jpeg")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSubmitRun(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(jsonRequest(t, http.MethodPost, "/api/v1/runs", api.RunRequest{Stages: []string{stages.ModelPusher, stages.ModelTrainer}}))
	require.Equal(t, http.StatusOK, rec.Code)

	var res api.RunSubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	task := <-s.queue.Tasks()
	var payload messaging.PipelineRunPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, res.RunId, payload.RunId)
	assert.Equal(t, []string{stages.ModelTrainer, stages.ModelPusher}, payload.Stages)

	run, err := database.GetRun(context.Background(), s.db, res.RunId)
	require.NoError(t, err)
	assert.Equal(t, database.JobQueued, run.Status)
	assert.Equal(t, database.OriginAPI, run.Origin)
}

func TestSubmitRunAllStages(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	task := <-s.queue.Tasks()
	var payload messaging.PipelineRunPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Empty(t, payload.Stages)
}

func TestSubmitRunErrors(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(jsonRequest(t, http.MethodPost, "/api/v1/runs", api.RunRequest{Stages: []string{"deploy"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown stage 'deploy'")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader("{not json"))
	rec = s.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	failing := newTestServer(t, failingPublisher{})
	rec = failing.do(jsonRequest(t, http.MethodPost, "/api/v1/runs", api.RunRequest{}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	runs, err := database.ListRuns(context.Background(), failing.db, database.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, database.JobFailed, runs[0].Status)
}

func TestListRuns(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	for range 3 {
		_, err := database.CreateRun(ctx, s.db, nil, database.OriginCLI)
		require.NoError(t, err)
	}
	done, err := database.CreateRun(ctx, s.db, []string{stages.DataValidation}, database.OriginAPI)
	require.NoError(t, err)
	require.NoError(t, database.UpdateRunStatus(ctx, s.db, done.Id, database.JobCompleted, nil))

	var runs []api.PipelineRun

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 4)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs?status=completed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, done.Id, runs[0].Id)
	assert.Equal(t, []string{stages.DataValidation}, runs[0].Stages)
	assert.NotNil(t, runs[0].CompletionTime)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs?status=paused", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=many", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRun(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	run, err := database.CreateRun(ctx, s.db, nil, database.OriginCLI)
	require.NoError(t, err)
	rec := database.NewRunRecorder(s.db, run.Id)
	require.NoError(t, rec.StageStarted(ctx, 1, stages.DataIngestion))
	require.NoError(t, rec.StageFinished(ctx, stages.DataIngestion, errors.New("download refused")))

	res := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+run.Id.String(), nil))
	require.Equal(t, http.StatusOK, res.Code)

	var got api.PipelineRun
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &got))
	assert.Equal(t, run.Id, got.Id)
	require.Len(t, got.StageRuns, 1)
	assert.Equal(t, database.JobFailed, got.StageRuns[0].Status)
	assert.Equal(t, "download refused", got.StageRuns[0].Error)

	res = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+uuid.New().String(), nil))
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())

	rec = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hardhat_prediction_duration_seconds")
}
