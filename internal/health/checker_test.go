package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type fakeReadiness struct {
	err   error
	calls atomic.Int32
}

func (f *fakeReadiness) Ready(ctx context.Context) error {
	f.calls.Add(1)
	return f.err
}

func TestChecker_Liveness(t *testing.T) {
	t.Parallel()
	checker := NewChecker(nil)

	response := checker.Liveness(context.Background())

	if response.Status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s", response.Status)
	}
}

func TestChecker_Readiness_NoRemote(t *testing.T) {
	t.Parallel()
	checker := NewChecker(nil)

	response := checker.Readiness(context.Background())

	if response.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy status, got %s", response.Status)
	}

	if response.Checks == nil {
		t.Fatal("Expected checks to be present")
	}

	remoteCheck, ok := response.Checks["remote"]
	if !ok {
		t.Fatal("Expected remote check to be present")
	}

	if remoteCheck.Status != StatusUnhealthy {
		t.Errorf("Expected remote check to be unhealthy, got %s", remoteCheck.Status)
	}
}

func TestChecker_Readiness_RemoteHealthy(t *testing.T) {
	t.Parallel()
	checker := NewChecker(&fakeReadiness{})

	response := checker.Readiness(context.Background())

	if response.Status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s", response.Status)
	}
}

func TestChecker_Readiness_RemoteFailing(t *testing.T) {
	t.Parallel()
	checker := NewChecker(&fakeReadiness{err: errors.New("api unreachable")})

	response := checker.Readiness(context.Background())

	if response.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy status, got %s", response.Status)
	}

	remoteCheck := response.Checks["remote"]
	if remoteCheck.Message != "api unreachable" {
		t.Errorf("Expected error message in check, got %q", remoteCheck.Message)
	}
}

func TestChecker_Readiness_Cached(t *testing.T) {
	t.Parallel()
	remote := &fakeReadiness{}
	checker := NewChecker(remote)

	checker.Readiness(context.Background())
	checker.Readiness(context.Background())

	if remote.calls.Load() != 1 {
		t.Errorf("Expected second readiness check to be served from cache, got %d remote calls", remote.calls.Load())
	}
}

func TestChecker_SetShuttingDown(t *testing.T) {
	t.Parallel()
	checker := NewChecker(&fakeReadiness{})

	if !checker.Readiness(context.Background()).IsHealthy() {
		t.Fatal("Expected healthy before shutdown")
	}

	checker.SetShuttingDown()

	response := checker.Readiness(context.Background())
	if response.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy after shutdown, got %s", response.Status)
	}
	if _, ok := response.Checks["shutdown"]; !ok {
		t.Error("Expected shutdown check to be present")
	}
}

func TestResponse_IsHealthy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		status   Status
		expected bool
	}{
		{"healthy", StatusHealthy, true},
		{"unhealthy", StatusUnhealthy, false},
		{"degraded", StatusDegraded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			response := &Response{Status: tt.status}
			if response.IsHealthy() != tt.expected {
				t.Errorf("IsHealthy() = %v, want %v", response.IsHealthy(), tt.expected)
			}
		})
	}
}
