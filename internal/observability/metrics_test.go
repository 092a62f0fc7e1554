package observability

import (
	"context"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, handler, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	if metrics == nil {
		t.Fatal("Expected metrics to be non-nil")
	}

	if handler == nil {
		t.Fatal("Expected handler to be non-nil")
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordHTTPRequest(ctx, "GET", "/livez", 200, 0.001)
	metrics.RecordHTTPRequest(ctx, "POST", "/v1/generations", 202, 0.050)
	metrics.RecordHTTPRequest(ctx, "GET", "/v1/generations/current", 200, 0.010)
	metrics.RecordHTTPRequest(ctx, "GET", "/v1/generations/current/files/solver.zip", 409, 0.005)
	metrics.RecordHTTPRequest(ctx, "DELETE", "/v1/generations/current", 204, 0.100)
	metrics.RecordHTTPRequest(ctx, "POST", "/v1/generations", 500, 0.001)
}

func TestRecordGenerationMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordTriggered(ctx, "upload")
	metrics.RecordTriggered(ctx, "url")
	metrics.RecordPollTick(ctx)
	metrics.RecordPollTick(ctx)
	metrics.RecordGenerationFinished(ctx, "completed", 125.0)
	metrics.RecordGenerationFinished(ctx, "timeout", 900.0)
}

func TestRecordDownloadMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordDownload(ctx, true)
	metrics.RecordDownload(ctx, false)
	metrics.RecordVerifyFailure(ctx)
}

func TestRecordDispatcherMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordDispatcherDelivered(ctx, 0.25)
	metrics.RecordDispatcherFailed(ctx)
	metrics.RecordDispatcherDropped(ctx)
	metrics.RecordDispatcherRequeued(ctx)
	metrics.RecordDispatcherQueueSize(ctx, 3)
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{
			name:     "root path",
			path:     "/",
			expected: "/",
		},
		{
			name:     "livez path",
			path:     "/livez",
			expected: "/livez",
		},
		{
			name:     "generations list path",
			path:     "/v1/generations",
			expected: "/v1/generations",
		},
		{
			name:     "current generation path",
			path:     "/v1/generations/current",
			expected: "/v1/generations/current",
		},
		{
			name:     "file path with name",
			path:     "/v1/generations/current/files/solver.zip",
			expected: "/v1/generations/current/files/{filename}",
		},
		{
			name:     "file path with different name",
			path:     "/v1/generations/current/files/build.log",
			expected: "/v1/generations/current/files/{filename}",
		},
		{
			name:     "files prefix without name",
			path:     "/v1/generations/current/files/",
			expected: "/v1/generations/current/files/",
		},
		{
			name:     "session flag path",
			path:     "/v1/session/flags/run-id-warning",
			expected: "/v1/session/flags/{key}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := normalizePath(tt.path)
			if result != tt.expected {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, result, tt.expected)
			}
		})
	}
}
