// Package gate is the single authority on whether generated artifacts are
// safe to fetch, and sequences the download, integrity check, and delivery
// once it opens.
package gate

import (
	"context"
	"log/slog"
	"sync"

	"solvergen/internal/apperrors"
	"solvergen/internal/lifecycle"
	"solvergen/internal/remote"
	"solvergen/internal/verify"
)

// Config holds the well-known names the gate needs to locate output.
type Config struct {
	BundleName  string // artifact bundle published by the pipeline
	ChecksumLog string // bundle entry carrying the digest line
}

// MetricsRecorder is an optional interface for recording download metrics.
type MetricsRecorder interface {
	RecordDownload(ctx context.Context, verified bool)
	RecordVerifyFailure(ctx context.Context)
}

// Subscriber registers observers for lifecycle state transitions.
// Satisfied by the coordinator.
type Subscriber interface {
	Subscribe(lifecycle.Observer)
}

// Gate tracks the coordinator's lifecycle state and performs the gated
// fetch→verify→deliver sequence.
//
// Register it as the coordinator's first observer so it re-locks before any
// other observer can react to a transition away from completed.
type Gate struct {
	client   remote.Client
	verifier *verify.Verifier
	cfg      Config
	logger   *slog.Logger
	metrics  MetricsRecorder

	mu       sync.Mutex
	unlocked bool
	runID    string
}

// New creates a gate and subscribes it to the coordinator.
func New(coord Subscriber, client remote.Client, verifier *verify.Verifier, cfg Config, metrics MetricsRecorder) *Gate {
	g := &Gate{
		client:   client,
		verifier: verifier,
		cfg:      cfg,
		logger:   slog.With("component", "gate"),
		metrics:  metrics,
	}
	coord.Subscribe(g.onStateChange)
	return g
}

// onStateChange re-locks or unlocks synchronously with the transition.
// Unlocking requires exactly the completed state for a known run id.
func (g *Gate) onStateChange(prev, next lifecycle.State, run *remote.Run) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if next == lifecycle.StateCompleted && run != nil && run.ID != "" {
		g.unlocked = true
		g.runID = run.ID
		g.logger.Info("Downloads unlocked", "runId", run.ID)
		return
	}
	if g.unlocked {
		g.logger.Info("Downloads re-locked", "state", next)
	}
	g.unlocked = false
	g.runID = ""
}

// Unlocked reports whether artifacts are currently safe to fetch.
func (g *Gate) Unlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlocked
}

// FetchResult is a delivered file plus its verification outcome.
type FetchResult struct {
	Name      string
	Data      []byte
	SizeBytes int64
	Digest    string
	// Expected is the digest mined from the companion log; empty means the
	// result is valid but unverified.
	Expected string
	Verified bool
}

// FetchNamedFile downloads the run's artifact bundle, extracts the named
// file, and verifies it against the checksum recorded in the companion log.
// Fails with a gate-closed error unless Unlocked; a checksum mismatch is
// returned as an error and the file is not delivered as trusted.
func (g *Gate) FetchNamedFile(ctx context.Context, filename string) (*FetchResult, error) {
	g.mu.Lock()
	unlocked, runID := g.unlocked, g.runID
	g.mu.Unlock()

	if !unlocked {
		return nil, apperrors.GateClosed("generation has not completed successfully")
	}

	artifacts, err := g.client.ListArtifacts(ctx, runID)
	if err != nil {
		return nil, apperrors.Unavailable("remote.listArtifacts", err)
	}

	bundle := findBundle(artifacts, g.cfg.BundleName)
	if bundle == nil {
		return nil, apperrors.NotFound("artifact", g.cfg.BundleName)
	}
	if bundle.Expired {
		return nil, apperrors.NotFound("artifact", g.cfg.BundleName+" (expired)")
	}

	data, err := g.client.DownloadArtifact(ctx, bundle.ID)
	if err != nil {
		return nil, apperrors.Unavailable("remote.downloadArtifact", err)
	}
	if _, err := verify.CheckNonEmpty(g.cfg.BundleName, data); err != nil {
		return nil, err
	}

	blob, err := bundleFile(data, filename)
	if err != nil {
		return nil, apperrors.Internal("gate.extract", err)
	}
	if blob == nil {
		return nil, apperrors.NotFound("file", filename)
	}

	logText, err := g.companionLog(ctx, data, runID)
	if err != nil {
		// The log is only the checksum source; its absence degrades to an
		// unverified result rather than failing the fetch.
		g.logger.Warn("Companion log unavailable", "error", err)
		logText = ""
	}

	result, err := g.verifier.Verify(filename, blob, logText)
	if err != nil {
		if g.metrics != nil {
			g.metrics.RecordVerifyFailure(ctx)
		}
		return nil, err
	}

	if g.metrics != nil {
		g.metrics.RecordDownload(ctx, result.Verified)
	}
	g.logger.Info("File delivered", "file", filename, "bytes", result.SizeBytes, "verified", result.Verified)

	return &FetchResult{
		Name:      filename,
		Data:      blob,
		SizeBytes: result.SizeBytes,
		Digest:    result.Digest,
		Expected:  result.Expected,
		Verified:  result.Verified,
	}, nil
}

// companionLog returns the checksum log from inside the artifact bundle,
// falling back to the run's log bundle.
func (g *Gate) companionLog(ctx context.Context, bundle []byte, runID string) (string, error) {
	blob, err := bundleFile(bundle, g.cfg.ChecksumLog)
	if err != nil {
		return "", err
	}
	if blob != nil {
		return string(blob), nil
	}

	logs, err := g.client.DownloadLogs(ctx, runID)
	if err != nil {
		return "", err
	}
	return scanBundleText(logs)
}

func findBundle(artifacts []remote.Artifact, name string) *remote.Artifact {
	for i := range artifacts {
		if artifacts[i].Name == name {
			return &artifacts[i]
		}
	}
	return nil
}
