package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile describes the remote pipeline this service drives and the
// well-known names used to locate and verify its output.
type Profile struct {
	BaseURL  string `yaml:"baseUrl"`  // pipelines API base URL
	Owner    string `yaml:"owner"`    // repository owner
	Repo     string `yaml:"repo"`     // repository name
	Workflow string `yaml:"workflow"` // workflow file name (e.g. generate.yml)
	Ref      string `yaml:"ref"`      // git ref the workflow runs on

	// BundleName is the artifact bundle the pipeline publishes.
	BundleName string `yaml:"bundleName"`
	// ChecksumLog is the bundle entry holding the build log with the digest line.
	ChecksumLog string `yaml:"checksumLog"`
	// OutputPath is the fixed relative path the digest line refers to.
	OutputPath string `yaml:"outputPath"`

	TokenFile string `yaml:"tokenFile,omitempty"` // API token file (overridden by REMOTE_TOKEN_FILE)
}

// LoadProfile reads and validates a pipeline profile from a YAML file.
// Environment variables REMOTE_BASE_URL and REMOTE_TOKEN_FILE override the
// profile's baseUrl and tokenFile.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline profile: %w", err)
	}

	p.BaseURL = GetEnv("REMOTE_BASE_URL", p.BaseURL)
	if tf := GetEnv("REMOTE_TOKEN_FILE", ""); tf != "" {
		p.TokenFile = tf
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) validate() error {
	if p.BaseURL == "" {
		return fmt.Errorf("pipeline profile: baseUrl is required")
	}
	if p.Owner == "" || p.Repo == "" {
		return fmt.Errorf("pipeline profile: owner and repo are required")
	}
	if p.Workflow == "" {
		return fmt.Errorf("pipeline profile: workflow is required")
	}
	if p.Ref == "" {
		p.Ref = "main"
	}
	if p.BundleName == "" {
		return fmt.Errorf("pipeline profile: bundleName is required")
	}
	if p.ChecksumLog == "" {
		p.ChecksumLog = "build.log"
	}
	if p.OutputPath == "" {
		return fmt.Errorf("pipeline profile: outputPath is required")
	}
	return nil
}

// Token reads the remote API token from the configured token file.
func (p *Profile) Token() string {
	return GetSecretFile(p.TokenFile)
}
