// Package remote provides a typed client for the hosted pipelines API.
//
// The client is a thin binding: it shapes requests and decodes responses but
// holds no lifecycle state. Polling, retry, and timeout policy belong to the
// coordinator.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBundleBytes caps artifact and log downloads to guard against a
// misbehaving remote streaming unbounded data.
const maxBundleBytes = 256 << 20 // 256 MB

// Client is the interface the coordinator and download gate consume.
type Client interface {
	// TriggerDispatch asks the remote system to start a new workflow run.
	// The endpoint is fire-and-forget: no run id is returned.
	TriggerDispatch(ctx context.Context, inputs map[string]string) error

	// MostRecentRun returns the newest run for the configured workflow,
	// or nil if none exists yet.
	MostRecentRun(ctx context.Context) (*Run, error)

	// GetRun returns the current snapshot of a run.
	GetRun(ctx context.Context, runID string) (*Run, error)

	// ListArtifacts returns the artifacts published by a run.
	ListArtifacts(ctx context.Context, runID string) ([]Artifact, error)

	// DownloadArtifact returns an artifact's content as a zip bundle.
	DownloadArtifact(ctx context.Context, artifactID string) ([]byte, error)

	// DownloadLogs returns the run's log bundle. Optional alternate source
	// of the checksum line when the artifact bundle carries no log.
	DownloadLogs(ctx context.Context, runID string) ([]byte, error)

	// Ready checks that the remote API is reachable and the workflow exists.
	Ready(ctx context.Context) error
}

// Config holds connection settings for the pipelines API.
type Config struct {
	BaseURL  string
	Token    string
	Owner    string
	Repo     string
	Workflow string
	Ref      string
	Timeout  time.Duration // per-request timeout (default: 30s)
}

// HTTPClient is the HTTP implementation of Client.
type HTTPClient struct {
	cfg    Config
	client *http.Client
}

// NewHTTPClient creates a pipelines API client with standard transport settings.
func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &HTTPClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *HTTPClient) workflowPath(suffix string) string {
	return fmt.Sprintf("%s/repos/%s/%s/actions/workflows/%s%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.Owner), url.PathEscape(c.cfg.Repo),
		url.PathEscape(c.cfg.Workflow), suffix)
}

func (c *HTTPClient) repoPath(suffix string) string {
	return fmt.Sprintf("%s/repos/%s/%s/actions%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.Owner), url.PathEscape(c.cfg.Repo), suffix)
}

// TriggerDispatch implements Client.
func (c *HTTPClient) TriggerDispatch(ctx context.Context, inputs map[string]string) error {
	payload := map[string]any{
		"ref":    c.cfg.Ref,
		"inputs": inputs,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.workflowPath("/dispatches"), strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Op: "remote.triggerDispatch"}
	}
	return nil
}

// MostRecentRun implements Client.
func (c *HTTPClient) MostRecentRun(ctx context.Context) (*Run, error) {
	var list runList
	if err := c.getJSON(ctx, c.workflowPath("/runs?per_page=1"), "remote.mostRecentRun", &list); err != nil {
		return nil, err
	}
	if len(list.Runs) == 0 {
		return nil, nil
	}
	run := list.Runs[0]
	return &run, nil
}

// GetRun implements Client.
func (c *HTTPClient) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	path := c.repoPath("/runs/" + url.PathEscape(runID))
	if err := c.getJSON(ctx, path, "remote.getRun", &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListArtifacts implements Client.
func (c *HTTPClient) ListArtifacts(ctx context.Context, runID string) ([]Artifact, error) {
	var list artifactList
	path := c.repoPath("/runs/" + url.PathEscape(runID) + "/artifacts")
	if err := c.getJSON(ctx, path, "remote.listArtifacts", &list); err != nil {
		return nil, err
	}
	return list.Artifacts, nil
}

// DownloadArtifact implements Client.
func (c *HTTPClient) DownloadArtifact(ctx context.Context, artifactID string) ([]byte, error) {
	path := c.repoPath("/artifacts/" + url.PathEscape(artifactID) + "/zip")
	return c.getBytes(ctx, path, "remote.downloadArtifact")
}

// DownloadLogs implements Client.
func (c *HTTPClient) DownloadLogs(ctx context.Context, runID string) ([]byte, error) {
	path := c.repoPath("/runs/" + url.PathEscape(runID) + "/logs")
	return c.getBytes(ctx, path, "remote.downloadLogs")
}

// Ready implements Client.
func (c *HTTPClient) Ready(ctx context.Context) error {
	var workflow struct {
		ID any `json:"id"`
	}
	return c.getJSON(ctx, c.workflowPath(""), "remote.ready", &workflow)
}

func (c *HTTPClient) getJSON(ctx context.Context, rawURL, op string, out any) error {
	body, err := c.getBytes(ctx, rawURL, op)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

func (c *HTTPClient) getBytes(ctx context.Context, rawURL, op string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Op: op}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBundleBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", op, err)
	}
	return body, nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	req.Header.Set("Accept", "application/json")
}

// Verify HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
