package lifecycle

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestParamsValidate(t *testing.T) {
	t.Parallel()
	content := base64.StdEncoding.EncodeToString([]byte("<robot name=\"arm\"/>"))

	tests := []struct {
		name    string
		params  *Params
		wantErr bool
		errMsg  string
	}{
		{
			name:    "missing mode",
			params:  &Params{},
			wantErr: true,
			errMsg:  "mode is required",
		},
		{
			name:    "unknown mode",
			params:  &Params{Mode: "ftp"},
			wantErr: true,
			errMsg:  "unknown mode",
		},
		{
			name:    "upload without file name",
			params:  &Params{Mode: ModeUpload, Content: content},
			wantErr: true,
			errMsg:  "file name is required",
		},
		{
			name:    "upload without content",
			params:  &Params{Mode: ModeUpload, FileName: "arm.urdf"},
			wantErr: true,
			errMsg:  "content is required",
		},
		{
			name:    "upload with invalid base64",
			params:  &Params{Mode: ModeUpload, FileName: "arm.urdf", Content: "not base64!!"},
			wantErr: true,
			errMsg:  "base64",
		},
		{
			name:    "upload with bad file name",
			params:  &Params{Mode: ModeUpload, FileName: "../etc/passwd", Content: content},
			wantErr: true,
			errMsg:  "file name must be alphanumeric",
		},
		{
			name:    "upload with oversized content",
			params:  &Params{Mode: ModeUpload, FileName: "arm.urdf", Content: strings.Repeat("A", maxContentBytes+4)},
			wantErr: true,
			errMsg:  "content exceeds maximum",
		},
		{
			name:   "valid upload",
			params: &Params{Mode: ModeUpload, FileName: "arm.urdf", Content: content},
		},
		{
			name:    "url mode without url",
			params:  &Params{Mode: ModeURL},
			wantErr: true,
			errMsg:  "source URL is required",
		},
		{
			name:    "url mode with bad scheme",
			params:  &Params{Mode: ModeURL, SourceURL: "ftp://example.com/arm.urdf"},
			wantErr: true,
			errMsg:  "scheme must be http or https",
		},
		{
			name:   "valid url mode",
			params: &Params{Mode: ModeURL, SourceURL: "https://example.com/arm.urdf"},
		},
		{
			name: "too many options",
			params: &Params{Mode: ModeURL, SourceURL: "https://example.com/arm.urdf",
				Options: func() map[string]string {
					m := make(map[string]string)
					for i := 0; i < maxOptionEntries+1; i++ {
						m[strings.Repeat("k", i+1)] = "v"
					}
					return m
				}()},
			wantErr: true,
			errMsg:  "options exceed maximum",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.params.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q", tt.errMsg)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestParamsInputs(t *testing.T) {
	t.Parallel()
	content := base64.StdEncoding.EncodeToString([]byte("<robot/>"))
	p := &Params{
		Mode:     ModeUpload,
		FileName: "arm.urdf",
		Content:  content,
		Solver:   "analytic",
		Options:  map[string]string{"dof": "6"},
	}

	inputs := p.Inputs()
	if inputs["mode"] != ModeUpload {
		t.Errorf("unexpected mode input: %q", inputs["mode"])
	}
	if inputs["file_name"] != "arm.urdf" || inputs["content"] != content {
		t.Error("upload fields missing from inputs")
	}
	if inputs["solver"] != "analytic" {
		t.Errorf("unexpected solver input: %q", inputs["solver"])
	}
	if inputs["opt_dof"] != "6" {
		t.Errorf("unexpected option input: %q", inputs["opt_dof"])
	}
}
