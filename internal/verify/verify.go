// Package verify provides pure integrity checks for downloaded artifacts.
// No network, no state: the same bytes always produce the same result.
package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"solvergen/internal/apperrors"
)

// Verifier checks downloaded blobs against the digest line a build log
// records for a fixed output path.
type Verifier struct {
	outputPath string
	digestLine *regexp.Regexp
}

// New creates a verifier for the given fixed relative output path.
// The expected log line format is the sha256sum convention:
//
//	<64 hex chars>  <output path>
func New(outputPath string) *Verifier {
	pattern := fmt.Sprintf(`(?mi)^([0-9a-f]{64})\s{2}%s\s*$`, regexp.QuoteMeta(outputPath))
	return &Verifier{
		outputPath: outputPath,
		digestLine: regexp.MustCompile(pattern),
	}
}

// Result is the outcome of verifying a blob.
type Result struct {
	SizeBytes int64
	Digest    string // computed digest, lowercase hex
	Expected  string // digest mined from the log, empty if none was found
	Verified  bool   // true only when an expected digest was found and matched
}

// CheckNonEmpty fails if the blob is absent or has zero length,
// otherwise returns the observed size.
func CheckNonEmpty(name string, blob []byte) (int64, error) {
	if len(blob) == 0 {
		return 0, apperrors.EmptyArtifact(name)
	}
	return int64(len(blob)), nil
}

// ComputeDigest returns the SHA-256 digest of the blob, hex-encoded lowercase.
func ComputeDigest(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// ExtractExpectedDigest scans log text for the first digest line matching the
// configured output path. A missing line is not an error: it means there is
// no reference to check against.
func (v *Verifier) ExtractExpectedDigest(logText string) (string, bool) {
	m := v.digestLine.FindStringSubmatch(logText)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// Verify composes the size check, digest computation, and log extraction.
// A legitimate mismatch is returned as a ChecksumMismatch error alongside the
// result carrying both digests; the caller decides policy. When the log has
// no digest line the result is valid but unverified.
func (v *Verifier) Verify(name string, blob []byte, logText string) (*Result, error) {
	size, err := CheckNonEmpty(name, blob)
	if err != nil {
		return nil, err
	}

	result := &Result{
		SizeBytes: size,
		Digest:    ComputeDigest(blob),
	}

	expected, found := v.ExtractExpectedDigest(logText)
	if !found {
		return result, nil
	}

	result.Expected = expected
	if !strings.EqualFold(result.Digest, expected) {
		return result, apperrors.ChecksumMismatch(name, expected, result.Digest)
	}

	result.Verified = true
	return result, nil
}
