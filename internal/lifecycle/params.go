package lifecycle

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"solvergen/internal/apperrors"
)

// Trigger modes: the robot description is either uploaded inline or fetched
// by the pipeline from a URL.
const (
	ModeUpload = "upload"
	ModeURL    = "url"
)

// Validation limits
const (
	maxFileNameLength = 128
	maxContentBytes   = 48 * 1024 // dispatch inputs are size-limited remotely
	maxOptionKeyLen   = 64
	maxOptionValueLen = 256
	maxOptionEntries  = 16
)

// fileNamePattern allows alphanumeric, dots, hyphens, and underscores
var fileNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Params describes one generation request.
type Params struct {
	Mode      string            `json:"mode"`
	FileName  string            `json:"fileName,omitempty"`  // upload mode
	Content   string            `json:"content,omitempty"`   // upload mode, base64 robot description
	SourceURL string            `json:"sourceUrl,omitempty"` // url mode
	Solver    string            `json:"solver,omitempty"`    // optional generator selection
	Options   map[string]string `json:"options,omitempty"`
}

// Validate checks the params. Does not modify them.
func (p *Params) Validate() error {
	switch p.Mode {
	case ModeUpload:
		if p.FileName == "" {
			return apperrors.Validation("fileName", "file name is required in upload mode")
		}
		if len(p.FileName) > maxFileNameLength {
			return apperrors.Validation("fileName", fmt.Sprintf("file name exceeds maximum length of %d", maxFileNameLength))
		}
		if !fileNamePattern.MatchString(p.FileName) {
			return apperrors.Validation("fileName", "file name must be alphanumeric (dots, hyphens and underscores allowed)")
		}
		if p.Content == "" {
			return apperrors.Validation("content", "content is required in upload mode")
		}
		if len(p.Content) > maxContentBytes {
			return apperrors.Validation("content", fmt.Sprintf("content exceeds maximum of %d bytes", maxContentBytes))
		}
		if _, err := base64.StdEncoding.DecodeString(p.Content); err != nil {
			return apperrors.Validation("content", "content must be base64 encoded")
		}
	case ModeURL:
		if p.SourceURL == "" {
			return apperrors.Validation("sourceUrl", "source URL is required in url mode")
		}
		if err := validateURL(p.SourceURL); err != nil {
			return apperrors.Validation("sourceUrl", fmt.Sprintf("invalid source URL: %v", err))
		}
	case "":
		return apperrors.Validation("mode", "mode is required")
	default:
		return apperrors.Validation("mode", fmt.Sprintf("unknown mode %q", p.Mode))
	}

	if len(p.Options) > maxOptionEntries {
		return apperrors.Validation("options", fmt.Sprintf("options exceed maximum of %d entries", maxOptionEntries))
	}
	for k, v := range p.Options {
		if len(k) > maxOptionKeyLen {
			return apperrors.Validation("options", fmt.Sprintf("option key exceeds maximum length of %d", maxOptionKeyLen))
		}
		if len(v) > maxOptionValueLen {
			return apperrors.Validation("options", fmt.Sprintf("option value exceeds maximum length of %d", maxOptionValueLen))
		}
	}

	return nil
}

// Inputs flattens the params into the string map the dispatch endpoint expects.
func (p *Params) Inputs() map[string]string {
	inputs := map[string]string{
		"mode": p.Mode,
	}
	switch p.Mode {
	case ModeUpload:
		inputs["file_name"] = p.FileName
		inputs["content"] = p.Content
	case ModeURL:
		inputs["source_url"] = p.SourceURL
	}
	if p.Solver != "" {
		inputs["solver"] = p.Solver
	}
	for k, v := range p.Options {
		inputs["opt_"+k] = v
	}
	return inputs
}

func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
