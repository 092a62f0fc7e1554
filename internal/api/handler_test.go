package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"solvergen/internal/config"
	"solvergen/internal/gate"
	"solvergen/internal/health"
	"solvergen/internal/lifecycle"
	"solvergen/internal/remote"
	"solvergen/internal/session"
)

// stubClient is a remote client whose calls all succeed with empty results.
type stubClient struct {
	triggerErr error
}

func (s *stubClient) TriggerDispatch(ctx context.Context, inputs map[string]string) error {
	return s.triggerErr
}

func (s *stubClient) MostRecentRun(ctx context.Context) (*remote.Run, error) {
	return nil, nil
}

func (s *stubClient) GetRun(ctx context.Context, runID string) (*remote.Run, error) {
	return nil, nil
}

func (s *stubClient) ListArtifacts(ctx context.Context, runID string) ([]remote.Artifact, error) {
	return nil, nil
}

func (s *stubClient) DownloadArtifact(ctx context.Context, artifactID string) ([]byte, error) {
	return nil, nil
}

func (s *stubClient) DownloadLogs(ctx context.Context, runID string) ([]byte, error) {
	return nil, nil
}

func (s *stubClient) Ready(ctx context.Context) error { return nil }

// testHandler builds a handler around a real coordinator with short intervals.
func testHandler(client remote.Client) *Handler {
	coord := lifecycle.NewCoordinator(client, nil, config.PollingConfig{
		MinInterval:       10 * time.Millisecond,
		MaxInterval:       50 * time.Millisecond,
		Timeout:           time.Second,
		RunLookupAttempts: 1,
		RunLookupInterval: time.Millisecond,
	}, nil)

	return &Handler{
		coord:  coord,
		gate:   gate.New(coord, client, nil, gate.Config{}, nil),
		flags:  session.NewStore(),
		health: health.NewChecker(client),
	}
}

func validTriggerBody() string {
	return `{"mode":"upload","fileName":"robot.urdf","content":"PHJvYm90Lz4="}`
}

func TestHandler_Livez(t *testing.T) {
	t.Parallel()
	handler := &Handler{
		health: health.NewChecker(nil),
	}

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	w := httptest.NewRecorder()

	handler.Livez(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response health.Response
	json.NewDecoder(w.Body).Decode(&response)

	if response.Status != health.StatusHealthy {
		t.Errorf("Expected status healthy, got %s", response.Status)
	}
}

func TestHandler_Readyz_NoRemote(t *testing.T) {
	t.Parallel()
	handler := &Handler{
		health: health.NewChecker(nil), // No remote client
	}

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	handler.Readyz(w, req)

	// Should return 503 because the remote API is not available
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	var response health.Response
	json.NewDecoder(w.Body).Decode(&response)

	if response.Status != health.StatusUnhealthy {
		t.Errorf("Expected status unhealthy, got %s", response.Status)
	}
}

func TestHandler_TriggerGeneration_InvalidJSON(t *testing.T) {
	t.Parallel()
	handler := testHandler(&stubClient{})

	req := httptest.NewRequest(http.MethodPost, "/v1/generations", bytes.NewBufferString("invalid json"))
	w := httptest.NewRecorder()

	handler.TriggerGeneration(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandler_TriggerGeneration_ValidationError(t *testing.T) {
	t.Parallel()
	handler := testHandler(&stubClient{})

	body := `{"mode":"upload"}` // missing fileName and content
	req := httptest.NewRequest(http.MethodPost, "/v1/generations", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.TriggerGeneration(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["error"] == "" {
		t.Error("Expected error message in response")
	}
}

func TestHandler_TriggerGeneration_Accepted(t *testing.T) {
	t.Parallel()
	handler := testHandler(&stubClient{})

	req := httptest.NewRequest(http.MethodPost, "/v1/generations", bytes.NewBufferString(validTriggerBody()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.TriggerGeneration(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusAccepted, w.Code, w.Body.String())
	}

	var result lifecycle.TriggerResult
	json.NewDecoder(w.Body).Decode(&result)
	if !result.Success {
		t.Error("Expected success in trigger result")
	}
}

func TestHandler_TriggerGeneration_Conflict(t *testing.T) {
	t.Parallel()
	handler := testHandler(&stubClient{})

	req := httptest.NewRequest(http.MethodPost, "/v1/generations", bytes.NewBufferString(validTriggerBody()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.TriggerGeneration(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("first trigger: expected %d, got %d", http.StatusAccepted, w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/generations", bytes.NewBufferString(validTriggerBody()))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	handler.TriggerGeneration(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status %d for second trigger, got %d", http.StatusConflict, w.Code)
	}
}

func TestHandler_TriggerGeneration_RemoteFailure(t *testing.T) {
	t.Parallel()
	handler := testHandler(&stubClient{triggerErr: context.DeadlineExceeded})

	req := httptest.NewRequest(http.MethodPost, "/v1/generations", bytes.NewBufferString(validTriggerBody()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.TriggerGeneration(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status %d, got %d", http.StatusBadGateway, w.Code)
	}
}

func TestHandler_GetGeneration_Idle(t *testing.T) {
	t.Parallel()
	handler := testHandler(&stubClient{})

	req := httptest.NewRequest(http.MethodGet, "/v1/generations/current", nil)
	w := httptest.NewRecorder()

	handler.GetGeneration(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var status GenerationStatus
	json.NewDecoder(w.Body).Decode(&status)

	if status.State != lifecycle.StateUnknown {
		t.Errorf("Expected state unknown, got %s", status.State)
	}
	if status.DownloadReady {
		t.Error("Expected downloads to be locked while idle")
	}
	if status.Polling.IsPolling {
		t.Error("Expected no polling while idle")
	}
}

func TestHandler_StopGeneration(t *testing.T) {
	t.Parallel()
	handler := testHandler(&stubClient{})
	handler.flags.Set("run-id-warning", true)

	req := httptest.NewRequest(http.MethodDelete, "/v1/generations/current", nil)
	w := httptest.NewRecorder()

	handler.StopGeneration(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	if handler.flags.Get("run-id-warning") {
		t.Error("Expected session flags to be cleared")
	}
}

func TestHandler_DownloadFile_GateClosed(t *testing.T) {
	t.Parallel()
	handler := testHandler(&stubClient{})

	req := httptest.NewRequest(http.MethodGet, "/v1/generations/current/files/solver.zip", nil)
	req.SetPathValue("filename", "solver.zip")
	w := httptest.NewRecorder()

	handler.DownloadFile(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status %d while gate closed, got %d", http.StatusConflict, w.Code)
	}
}

func TestHandler_DownloadFile_EmptyFilename(t *testing.T) {
	t.Parallel()
	handler := testHandler(&stubClient{})

	req := httptest.NewRequest(http.MethodGet, "/v1/generations/current/files/", nil)
	w := httptest.NewRecorder()

	handler.DownloadFile(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandler_SessionFlags_Roundtrip(t *testing.T) {
	t.Parallel()
	handler := testHandler(&stubClient{})

	req := httptest.NewRequest(http.MethodPut, "/v1/session/flags/run-id-warning", bytes.NewBufferString(`{"value":true}`))
	req.SetPathValue("key", "run-id-warning")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.SetFlag(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/session/flags/run-id-warning", nil)
	req.SetPathValue("key", "run-id-warning")
	w = httptest.NewRecorder()

	handler.GetFlag(w, req)

	var resp map[string]any
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["value"] != true {
		t.Errorf("Expected flag to be true, got %v", resp["value"])
	}
}

func TestHandler_SetFlag_InvalidKey(t *testing.T) {
	t.Parallel()
	handler := testHandler(&stubClient{})

	req := httptest.NewRequest(http.MethodPut, "/v1/session/flags/", bytes.NewBufferString(`{"value":true}`))
	w := httptest.NewRecorder()

	handler.SetFlag(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestMiddleware_Logging(t *testing.T) {
	t.Parallel()
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	handler := LoggingMiddleware()(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !called {
		t.Error("Inner handler was not called")
	}
}

func TestMiddleware_Recovery(t *testing.T) {
	t.Parallel()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	handler := RecoveryMiddleware()(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	// Should not panic
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestMiddleware_ContentType(t *testing.T) {
	t.Parallel()
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	handler := ContentTypeMiddleware()(inner)

	// Test with wrong content type
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Expected status %d, got %d", http.StatusUnsupportedMediaType, w.Code)
	}

	// Test with correct content type
	called = false
	req = httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !called {
		t.Error("Inner handler was not called")
	}
}

func TestMiddleware_CORS(t *testing.T) {
	t.Parallel()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := CORSMiddleware()(inner)

	// Test OPTIONS preflight
	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}

func TestMiddleware_Auth(t *testing.T) {
	t.Parallel()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := AuthMiddleware("secret-key")(inner)

	// Missing header
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d without auth, got %d", http.StatusUnauthorized, w.Code)
	}

	// Wrong key
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d with wrong key, got %d", http.StatusUnauthorized, w.Code)
	}

	// Correct key
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d with correct key, got %d", http.StatusOK, w.Code)
	}
}

func TestRouter_HealthNoAuth(t *testing.T) {
	t.Parallel()
	client := &stubClient{}
	coord := lifecycle.NewCoordinator(client, nil, config.PollingConfig{}, nil)
	router := NewRouter(RouterConfig{
		Coordinator:   coord,
		Gate:          gate.New(coord, client, nil, gate.Config{}, nil),
		Flags:         session.NewStore(),
		HealthChecker: health.NewChecker(client),
		APIKey:        "secret",
	})

	// Health endpoints bypass auth
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d for /livez, got %d", http.StatusOK, w.Code)
	}

	// API endpoints require auth
	req = httptest.NewRequest(http.MethodGet, "/v1/generations/current", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d without auth, got %d", http.StatusUnauthorized, w.Code)
	}
}
