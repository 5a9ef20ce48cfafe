package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/leafscan/internal/classifier"
	"github.com/tphakala/leafscan/internal/conversation"
	"github.com/tphakala/leafscan/internal/detection"
	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/history"
	"github.com/tphakala/leafscan/internal/imageload"
	"github.com/tphakala/leafscan/internal/observability"
)

type stubPredictor struct {
	probs []float32
	err   error
}

func (s *stubPredictor) Predict(imageload.Tensor) ([]float32, error) {
	return s.probs, s.err
}

type memHistory struct {
	mu      sync.Mutex
	records map[uint]history.Record
	nextID  uint
}

func newMemHistory() *memHistory {
	return &memHistory{records: map[uint]history.Record{}}
}

func (m *memHistory) Save(_ context.Context, rec *history.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	rec.CreatedAt = time.Now()
	if rec.Conversation == "" {
		rec.Conversation = "[]"
	}
	m.records[rec.ID] = *rec
	return nil
}

func (m *memHistory) AttachConversation(_ context.Context, id uint, turns []conversation.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return errors.New(history.ErrRecordNotFound).Category(errors.CategoryNotFound).Build()
	}
	data, err := conversation.Encode(turns)
	if err != nil {
		return err
	}
	rec.Conversation = data
	m.records[id] = rec
	return nil
}

func (m *memHistory) List(_ context.Context, user string, limit int) ([]history.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []history.Record{}
	for id := m.nextID; id > 0; id-- {
		if rec, ok := m.records[id]; ok && rec.UserID == user {
			out = append(out, rec)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memHistory) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return errors.New(history.ErrRecordNotFound).Category(errors.CategoryNotFound).Build()
	}
	delete(m.records, id)
	return nil
}

type testEnv struct {
	server   *Server
	hist     *memHistory
	sessions *conversation.Store
	metrics  *observability.Metrics
}

func setupTestEnvironment(t *testing.T, predictor detection.Predictor, mutate func(*Config)) *testEnv {
	t.Helper()

	cfg := DefaultConfig()
	cfg.UploadDir = t.TempDir()
	cfg.RateLimit = 0
	if mutate != nil {
		mutate(cfg)
	}

	hist := newMemHistory()
	sessions := conversation.NewStore(time.Minute)
	m, err := observability.NewMetrics(sessions.Len)
	require.NoError(t, err)

	pipeline := detection.New(predictor, classifier.DefaultLabels, nil, nil,
		detection.WithRecorder(hist),
		detection.WithObserver(m.Detection))
	srv, err := New(cfg, pipeline, sessions,
		WithHistory(hist),
		WithMetrics(m),
		WithVersion("test"),
		WithModelReady(func() bool { return true }))
	require.NoError(t, err)
	return &testEnv{server: srv, hist: hist, sessions: sessions, metrics: m}
}

func leafPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := range 32 {
		for x := range 32 {
			img.Set(x, y, color.RGBA{R: 40, G: uint8(100 + x*3), B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, image []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "leaf.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/detections", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) detect(t *testing.T, fields map[string]string) DetectionResponse {
	t.Helper()
	rec := e.do(uploadRequest(t, leafPNG(t), fields))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp DetectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// phomaProbs peaks on index 3. Index 4 is reserved for unrecognized images.
var phomaProbs = []float32{0.05, 0.02, 0.03, 0.8, 0.1}

func TestCreateDetection_Diseased(t *testing.T) {
	t.Parallel()

	env := setupTestEnvironment(t, &stubPredictor{probs: phomaProbs}, nil)
	resp := env.detect(t, map[string]string{"user": "farmer@example.com", "language": "Swahili"})

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "phoma", resp.Label)
	assert.Equal(t, "diseased", resp.Kind)
	assert.InDelta(t, 0.8, resp.Confidence, 1e-6)
	assert.Contains(t, resp.Message, "The disease predicted here is phoma.")
	assert.True(t, resp.CanTranslate)
	assert.True(t, resp.CanChat)
	assert.True(t, resp.HistorySaved)
	assert.Equal(t, uint(1), resp.RecordID)
	require.Len(t, resp.Turns, 1)
	assert.Equal(t, conversation.SenderAssistant, resp.Turns[0].Sender)

	records, err := env.hist.List(context.Background(), "farmer@example.com", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "phoma", records[0].Label)
}

func TestCreateDetection_IndexFourIsUnrecognized(t *testing.T) {
	t.Parallel()

	env := setupTestEnvironment(t, &stubPredictor{probs: []float32{0.05, 0.02, 0.03, 0.1, 0.8}}, nil)
	resp := env.detect(t, map[string]string{"user": "farmer@example.com", "language": "Swahili"})

	assert.Equal(t, "rust", resp.Label)
	assert.Equal(t, "unrecognized", resp.Kind)
	assert.Contains(t, resp.Message, "The above photo cannot be recognized as a coffee leaf.")
	assert.False(t, resp.CanTranslate)
	assert.False(t, resp.CanChat)

	base := "/api/v1/sessions/" + resp.SessionID
	req := httptest.NewRequest(http.MethodPost, base+"/messages", strings.NewReader(`{"question":"rust?"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusConflict, env.do(req).Code)
	assert.Equal(t, http.StatusConflict, env.do(httptest.NewRequest(http.MethodGet, base+"/report", http.NoBody)).Code)
}

func TestCreateDetection_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		predictor *stubPredictor
		image     []byte
		wantCode  int
		wantMsg   string
	}{
		{
			name:      "missing image",
			predictor: &stubPredictor{probs: phomaProbs},
			wantCode:  http.StatusBadRequest,
			wantMsg:   detection.MessageNoImage,
		},
		{
			name:      "not an image",
			predictor: &stubPredictor{probs: phomaProbs},
			image:     []byte("definitely not a png"),
			wantCode:  http.StatusUnprocessableEntity,
			wantMsg:   "Could not load image: ",
		},
		{
			name:      "no model",
			predictor: &stubPredictor{err: classifier.ErrNoModelLoaded},
			wantCode:  http.StatusServiceUnavailable,
			wantMsg:   detection.MessageNoModel,
		},
		{
			name:      "inference failure",
			predictor: &stubPredictor{err: fmt.Errorf("%w: invoke failed", classifier.ErrInference)},
			wantCode:  http.StatusInternalServerError,
			wantMsg:   "Prediction error: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := setupTestEnvironment(t, tt.predictor, nil)
			img := tt.image
			if img == nil && tt.name != "missing image" {
				img = leafPNG(t)
			}
			rec := env.do(uploadRequest(t, img, map[string]string{"user": "u@example.com"}))

			assert.Equal(t, tt.wantCode, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.True(t, strings.HasPrefix(resp.Message, tt.wantMsg), resp.Message)
			assert.Len(t, resp.CorrelationID, 8)
		})
	}
}

func TestCreateDetection_ReusesSession(t *testing.T) {
	t.Parallel()

	env := setupTestEnvironment(t, &stubPredictor{probs: phomaProbs}, nil)
	first := env.detect(t, map[string]string{"user": "u@example.com"})
	second := env.detect(t, map[string]string{"session_id": first.SessionID})
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, env.sessions.Len())

	third := env.detect(t, map[string]string{"session_id": "gone"})
	assert.NotEqual(t, first.SessionID, third.SessionID)
}

func TestSessionEndpoints(t *testing.T) {
	t.Parallel()

	env := setupTestEnvironment(t, &stubPredictor{probs: phomaProbs}, nil)
	det := env.detect(t, map[string]string{"user": "farmer@example.com", "language": "Swahili"})
	base := "/api/v1/sessions/" + det.SessionID

	t.Run("translate", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodPost, base+"/translate", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["translated"])
		assert.Equal(t, "Swahili", body["language"])
		assert.Contains(t, body["message"], "The disease predicted here is phoma.")
	})

	t.Run("chat", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, base+"/messages", strings.NewReader(`{"question":"How do I treat rust?"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := env.do(req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp MessageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Reply)
		assert.True(t, resp.HistorySaved)
		require.Len(t, resp.Turns, 3)
		assert.Equal(t, conversation.SenderUser, resp.Turns[1].Sender)

		rec = env.do(httptest.NewRequest(http.MethodGet, base+"/messages", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
		var turns []conversation.Turn
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turns))
		assert.Len(t, turns, 3)
	})

	t.Run("empty question", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, base+"/messages", strings.NewReader(`{"question":"  "}`))
		req.Header.Set("Content-Type", "application/json")
		assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
	})

	t.Run("report", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, base+"/report", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=")
		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "Coffee Leaf Disease Detection Report")
		assert.Contains(t, string(body), "80.0%")
	})

	t.Run("analysis", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, base+"/analysis", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.InDelta(t, 32, body["width"], 0)
		assert.Contains(t, body["text"], "Advanced Image Analysis")
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/sessions/nope/translate", http.NoBody))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSessionEndpoints_HealthyLeaf(t *testing.T) {
	t.Parallel()

	env := setupTestEnvironment(t, &stubPredictor{probs: []float32{0.05, 0.9, 0.02, 0.01, 0.02}}, nil)
	det := env.detect(t, map[string]string{"user": "u@example.com", "language": "Swahili"})
	assert.Equal(t, "nodisease", det.Label)
	assert.False(t, det.CanChat)
	base := "/api/v1/sessions/" + det.SessionID

	rec := env.do(httptest.NewRequest(http.MethodPost, base+"/translate", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), detection.MessageNoRemedies)

	req := httptest.NewRequest(http.MethodPost, base+"/messages", strings.NewReader(`{"question":"rust?"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusConflict, env.do(req).Code)

	assert.Equal(t, http.StatusConflict, env.do(httptest.NewRequest(http.MethodGet, base+"/report", http.NoBody)).Code)
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	env := setupTestEnvironment(t, &stubPredictor{probs: phomaProbs}, nil)
	det := env.detect(t, map[string]string{"user": "u@example.com"})

	rec := env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+det.SessionID, http.NoBody))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+det.SessionID, http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryEndpoints(t *testing.T) {
	t.Parallel()

	env := setupTestEnvironment(t, &stubPredictor{probs: phomaProbs}, nil)
	env.detect(t, map[string]string{"user": "a@example.com"})
	env.detect(t, map[string]string{"user": "a@example.com"})
	env.detect(t, map[string]string{"user": "b@example.com"})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/history?user=a@example.com", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, uint(2), entries[0].ID)
	assert.Equal(t, "phoma", entries[0].Label)
	assert.NotNil(t, entries[0].Turns)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/history?user=a@example.com&limit=1", http.NoBody))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)

	assert.Equal(t, http.StatusBadRequest, env.do(httptest.NewRequest(http.MethodGet, "/api/v1/history", http.NoBody)).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(httptest.NewRequest(http.MethodGet, "/api/v1/history?user=a&limit=x", http.NoBody)).Code)

	assert.Equal(t, http.StatusNoContent, env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/history/1", http.NoBody)).Code)
	assert.Equal(t, http.StatusNotFound, env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/history/1", http.NoBody)).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/history/abc", http.NoBody)).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	env := setupTestEnvironment(t, &stubPredictor{probs: phomaProbs}, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "test", health["version"])
	assert.Equal(t, true, health["model_ready"])

	require.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/api/v1/languages", http.NoBody)).Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(),
		`leafscan_http_requests_total{method="GET",path="/api/v1/languages",status_code="200"} 1`)
}

func TestLabelsAndLanguages(t *testing.T) {
	t.Parallel()

	env := setupTestEnvironment(t, &stubPredictor{probs: phomaProbs}, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/labels", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	var labels []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &labels))
	require.Len(t, labels, 5)
	assert.Equal(t, "miner", labels[0]["label"])

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/languages", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Swahili")
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	env := setupTestEnvironment(t, &stubPredictor{probs: phomaProbs}, func(c *Config) {
		c.RateLimit = 0.001
		c.Burst = 1
	})

	req := func(path string) int {
		return env.do(httptest.NewRequest(http.MethodGet, path, http.NoBody)).Code
	}
	assert.Equal(t, http.StatusOK, req("/api/v1/languages"))
	assert.Equal(t, http.StatusTooManyRequests, req("/api/v1/languages"))
	assert.Equal(t, http.StatusOK, req("/health"))

	assert.Contains(t, env.do(httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)).Body.String(),
		"leafscan_http_rate_limited_total 1")
}

func TestConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Address())

	cfg.Port = ""
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.RateLimit = -1
	require.Error(t, cfg.Validate())
}
