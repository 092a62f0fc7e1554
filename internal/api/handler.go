// Package api provides the HTTP API handlers and routing for the generation service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"solvergen/internal/apperrors"
	"solvergen/internal/gate"
	"solvergen/internal/health"
	"solvergen/internal/lifecycle"
	"solvergen/internal/remote"
	"solvergen/internal/session"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion.
// Uploaded robot descriptions are base64-encoded and capped well below this.
const maxRequestBodySize = 1 << 20 // 1 MB

// maxFlagKeyLength bounds session flag keys.
const maxFlagKeyLength = 64

// Handler contains HTTP handlers for the generation API
type Handler struct {
	coord  *lifecycle.Coordinator
	gate   *gate.Gate
	flags  *session.Store
	health *health.Checker
}

// NewHandler creates a new API handler
func NewHandler(coord *lifecycle.Coordinator, g *gate.Gate, flags *session.Store, healthChecker *health.Checker) *Handler {
	return &Handler{
		coord:  coord,
		gate:   g,
		flags:  flags,
		health: healthChecker,
	}
}

// GenerationStatus is the response body for GET /v1/generations/current.
type GenerationStatus struct {
	State         lifecycle.State        `json:"state"`
	Run           *remote.Run            `json:"run,omitempty"`
	RunID         string                 `json:"runId,omitempty"`
	Polling       lifecycle.PollingState `json:"polling"`
	Warning       string                 `json:"warning,omitempty"`
	TimedOut      bool                   `json:"timedOut,omitempty"`
	DownloadReady bool                   `json:"downloadReady"`
}

// TriggerGeneration handles POST /v1/generations
func (h *Handler) TriggerGeneration(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent memory exhaustion
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var params lifecycle.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.coord.Trigger(r.Context(), &params)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, result)
}

// GetGeneration handles GET /v1/generations/current
func (h *Handler) GetGeneration(w http.ResponseWriter, r *http.Request) {
	status := &GenerationStatus{
		State:         h.coord.State(),
		Run:           h.coord.Run(),
		RunID:         h.coord.RunID(),
		Polling:       h.coord.PollingState(),
		Warning:       h.coord.Warning(),
		TimedOut:      h.coord.Err() != nil,
		DownloadReady: h.gate.Unlocked(),
	}

	h.writeJSON(w, http.StatusOK, status)
}

// StopGeneration handles DELETE /v1/generations/current.
// Stops any active polling and clears the run snapshot back to idle.
func (h *Handler) StopGeneration(w http.ResponseWriter, r *http.Request) {
	h.coord.Stop()
	h.coord.Reset()
	h.flags.Clear()

	w.WriteHeader(http.StatusNoContent)
}

// DownloadFile handles GET /v1/generations/current/files/{filename}
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if filename == "" {
		h.writeError(w, http.StatusBadRequest, "Filename is required")
		return
	}

	result, err := h.gate.FetchNamedFile(r.Context(), filename)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(result.SizeBytes, 10))
	w.Header().Set("X-Checksum-Sha256", result.Digest)
	w.Header().Set("X-Checksum-Verified", strconv.FormatBool(result.Verified))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		slog.Warn("Failed to write file response", "file", result.Name, "error", err)
	}
}

// flagValue is the body for PUT /v1/session/flags/{key}.
type flagValue struct {
	Value bool `json:"value"`
}

// SetFlag handles PUT /v1/session/flags/{key}
func (h *Handler) SetFlag(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" || len(key) > maxFlagKeyLength {
		h.writeError(w, http.StatusBadRequest, "Invalid flag key")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var body flagValue
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	h.flags.Set(key, body.Value)
	h.writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": body.Value})
}

// GetFlag handles GET /v1/session/flags/{key}
func (h *Handler) GetFlag(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" || len(key) > maxFlagKeyLength {
		h.writeError(w, http.StatusBadRequest, "Invalid flag key")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": h.flags.Get(key)})
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 200 if the service is ready to accept traffic.
// Returns 503 if the remote pipelines API is unavailable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError handles errors from the service layer with appropriate HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}

	// Checksum mismatches carry both digests so the client can surface them.
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && errors.Is(err, apperrors.ErrChecksumMismatch) {
		h.writeJSON(w, status, map[string]string{
			"error":    err.Error(),
			"expected": appErr.Expected,
			"actual":   appErr.Actual,
		})
		return
	}

	h.writeError(w, status, err.Error())
}
