package webserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlsec-tools/deepdash/internal/deepdash"
	"github.com/mlsec-tools/deepdash/internal/deepdash/apis"
	"github.com/mlsec-tools/deepdash/internal/storage"
	"github.com/mlsec-tools/deepdash/internal/storage/models"
)

// fakeStore implements storage.Store in memory.
type fakeStore struct {
	objects []models.StoredObject
	records []models.DetectionRecord
}

func (f *fakeStore) ListObjects(ctx context.Context) ([]models.StoredObject, error) {
	return append([]models.StoredObject(nil), f.objects...), nil
}

func (f *fakeStore) DeleteObject(ctx context.Context, key string) error {
	for i, obj := range f.objects {
		if obj.Key == key {
			f.objects = append(f.objects[:i], f.objects[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
}

func (f *fakeStore) ScanRecords(ctx context.Context) ([]models.DetectionRecord, error) {
	return append([]models.DetectionRecord(nil), f.records...), nil
}

func (f *fakeStore) Close(ctx context.Context) error { return nil }

// fakeDetector implements apis.Detector with canned responses.
type fakeDetector struct {
	result *models.DetectionResult
	err    error
}

func (f *fakeDetector) Detect(ctx context.Context, fileURL string) (*models.DetectionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeDetector) SetRateLimiter(limiter *apis.RateLimiter) {}

func (f *fakeDetector) ProviderName() string { return "fake" }

func newTestServer(t *testing.T, store storage.Store, detector apis.Detector) *WebServer {
	t.Helper()

	testLogger := logrus.New()
	testLogger.SetOutput(&bytes.Buffer{}) // Discard output during tests

	dashboard := deepdash.NewDashboard(deepdash.DashboardConfig{
		Detector:       detector,
		Store:          store,
		Prefix:         "uploads/",
		ExportFileName: "deepfake_detections.csv",
	}, testLogger)

	config := &WebserverConfig{ListenTo: ":0", StaticDir: t.TempDir()}
	return NewWebServer(dashboard, config, testLogger)
}

func decodeResp(t *testing.T, w *httptest.ResponseRecorder) (HttpResp, json.RawMessage) {
	t.Helper()
	var resp struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not a JSON envelope: %v (%s)", err, w.Body.String())
	}
	return HttpResp{Status: resp.Status, Message: resp.Message}, resp.Data
}

func TestHandleDetectSuccess(t *testing.T) {
	detector := &fakeDetector{result: &models.DetectionResult{
		Verdict:    "fake",
		Confidence: 0.93,
		Fields:     map[string]interface{}{"verdict": "fake", "confidence": 0.93},
	}}
	ws := newTestServer(t, &fakeStore{}, detector)

	body := strings.NewReader(`{"file_url":"https://example.com/img.png"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/detect", body)
	w := httptest.NewRecorder()
	ws.InitRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	resp, _ := decodeResp(t, w)
	if resp.Status != "success" {
		t.Errorf("expected success status, got %q", resp.Status)
	}
	if resp.Message != "Detected: fake (confidence: 0.93)" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
}

func TestHandleDetectRemoteFailure(t *testing.T) {
	detector := &fakeDetector{err: &apis.RemoteError{
		StatusCode: http.StatusInternalServerError,
		Body:       "model backend unavailable",
	}}
	ws := newTestServer(t, &fakeStore{}, detector)

	body := strings.NewReader(`{"file_url":"https://example.com/img.png"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/detect", body)
	w := httptest.NewRecorder()
	ws.InitRouter().ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", w.Code)
	}
	resp, _ := decodeResp(t, w)
	if resp.Status != "error" {
		t.Errorf("expected error status, got %q", resp.Status)
	}
	if !strings.Contains(resp.Message, "model backend unavailable") {
		t.Errorf("message should contain the raw response body: %q", resp.Message)
	}
}

func TestHandleDetectMissingURL(t *testing.T) {
	ws := newTestServer(t, &fakeStore{}, &fakeDetector{})

	req := httptest.NewRequest(http.MethodPost, "/api/detect", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	ws.InitRouter().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestHandleListUploads(t *testing.T) {
	store := &fakeStore{objects: []models.StoredObject{
		{Key: "uploads/a.png", Size: 1536, LastModified: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{Key: "uploads/b.jpg", Size: 2048, LastModified: time.Date(2024, 5, 2, 8, 30, 15, 0, time.UTC)},
	}}
	ws := newTestServer(t, store, &fakeDetector{})

	req := httptest.NewRequest(http.MethodGet, "/api/uploads", nil)
	w := httptest.NewRecorder()
	ws.InitRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	resp, data := decodeResp(t, w)
	if resp.Status != "success" {
		t.Errorf("expected success status, got %q", resp.Status)
	}

	var uploads models.UploadsResponse
	if err := json.Unmarshal(data, &uploads); err != nil {
		t.Fatalf("failed to decode uploads: %v", err)
	}
	if uploads.Total != 2 || len(uploads.Uploads) != 2 {
		t.Fatalf("expected 2 uploads, got %+v", uploads)
	}
	if uploads.Uploads[0].SizeKB != 1.5 {
		t.Errorf("expected 1.5 KB, got %v", uploads.Uploads[0].SizeKB)
	}
	if uploads.Uploads[1].LastModified != "2024-05-02 08:30:15" {
		t.Errorf("unexpected last modified: %q", uploads.Uploads[1].LastModified)
	}
}

func TestHandleListUploadsEmpty(t *testing.T) {
	ws := newTestServer(t, &fakeStore{}, &fakeDetector{})

	req := httptest.NewRequest(http.MethodGet, "/api/uploads", nil)
	w := httptest.NewRecorder()
	ws.InitRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	resp, _ := decodeResp(t, w)
	if resp.Status != "warning" {
		t.Errorf("expected warning status, got %q", resp.Status)
	}
	if resp.Message != "No objects found under 'uploads/' prefix." {
		t.Errorf("unexpected message: %q", resp.Message)
	}
}

func TestHandleListUploadsIdempotent(t *testing.T) {
	store := &fakeStore{objects: []models.StoredObject{
		{Key: "uploads/a.png", Size: 1536, LastModified: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}}
	ws := newTestServer(t, store, &fakeDetector{})
	router := ws.InitRouter()

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/uploads", nil))
	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/uploads", nil))

	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Error("expected byte-identical responses for unchanged backing data")
	}
}

func TestHandleDeleteUpload(t *testing.T) {
	store := &fakeStore{objects: []models.StoredObject{
		{Key: "uploads/a.png", Size: 100, LastModified: time.Unix(0, 0).UTC()},
		{Key: "uploads/b.png", Size: 200, LastModified: time.Unix(0, 0).UTC()},
	}}
	ws := newTestServer(t, store, &fakeDetector{})
	router := ws.InitRouter()

	req := httptest.NewRequest(http.MethodDelete, "/api/uploads/uploads/a.png", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", w.Code, w.Body.String())
	}
	resp, data := decodeResp(t, w)
	if resp.Message != "Deleted uploads/a.png" {
		t.Errorf("unexpected message: %q", resp.Message)
	}

	var deleted models.DeleteResponse
	if err := json.Unmarshal(data, &deleted); err != nil {
		t.Fatalf("failed to decode delete response: %v", err)
	}
	for _, entry := range deleted.Uploads {
		if entry.Key == "uploads/a.png" {
			t.Error("deleted key still present in refreshed listing")
		}
	}

	// The next listing no longer contains the deleted key either.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/uploads", nil))
	if strings.Contains(w.Body.String(), "uploads/a.png") {
		t.Error("deleted key still present in subsequent listing")
	}
}

func TestHandleDeleteUploadMissingKey(t *testing.T) {
	ws := newTestServer(t, &fakeStore{}, &fakeDetector{})

	req := httptest.NewRequest(http.MethodDelete, "/api/uploads/uploads/gone.png", nil)
	w := httptest.NewRecorder()
	ws.InitRouter().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
	resp, _ := decodeResp(t, w)
	if !strings.Contains(resp.Message, "uploads/gone.png") {
		t.Errorf("message should name the key: %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "object not found") {
		t.Errorf("message should contain the error text: %q", resp.Message)
	}
}

func TestHandleExportCSV(t *testing.T) {
	store := &fakeStore{records: []models.DetectionRecord{
		{"id": "1", "verdict": "fake", "timestamp": float64(1700000000)},
		{"id": "2", "verdict": "real", "timestamp": float64(1700003600)},
	}}
	ws := newTestServer(t, store, &fakeDetector{})

	req := httptest.NewRequest(http.MethodGet, "/api/export.csv", nil)
	w := httptest.NewRecorder()
	ws.InitRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Errorf("unexpected content type: %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "attachment; filename=deepfake_detections.csv" {
		t.Errorf("unexpected content disposition: %q", cd)
	}

	lines := strings.Split(strings.TrimRight(w.Body.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "id,timestamp,verdict" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "2023-11-14 22:13:20") {
		t.Errorf("timestamp not reformatted: %q", lines[1])
	}
}

func TestHandleExportCSVEmpty(t *testing.T) {
	ws := newTestServer(t, &fakeStore{}, &fakeDetector{})

	req := httptest.NewRequest(http.MethodGet, "/api/export.csv", nil)
	w := httptest.NewRecorder()
	ws.InitRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	resp, _ := decodeResp(t, w)
	if resp.Status != "warning" || resp.Message != "No detection data found." {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleExportCSVBadTimestamp(t *testing.T) {
	store := &fakeStore{records: []models.DetectionRecord{
		{"id": "1", "timestamp": "not-a-number"},
	}}
	ws := newTestServer(t, store, &fakeDetector{})

	req := httptest.NewRequest(http.MethodGet, "/api/export.csv", nil)
	w := httptest.NewRecorder()
	ws.InitRouter().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
}

func TestHandleGetStats(t *testing.T) {
	store := &fakeStore{
		objects: []models.StoredObject{{Key: "uploads/a.png"}},
		records: []models.DetectionRecord{{"id": "1"}, {"id": "2"}},
	}
	ws := newTestServer(t, store, &fakeDetector{})

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	ws.InitRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	_, data := decodeResp(t, w)
	var stats models.DashboardStats
	if err := json.Unmarshal(data, &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.UploadCount != 1 || stats.RecordCount != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
