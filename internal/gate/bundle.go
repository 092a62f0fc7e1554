package gate

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// maxEntryBytes caps a single extracted bundle entry.
const maxEntryBytes = 128 << 20 // 128 MB

// bundleFile reads a single named entry out of a zip bundle. The name is
// matched against the cleaned entry path and, as a fallback, its basename,
// since pipelines differ in whether they nest outputs under a directory.
func bundleFile(bundle []byte, name string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(bundle), int64(len(bundle)))
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle: %w", err)
	}

	want := path.Clean(name)
	for _, entry := range reader.File {
		clean := path.Clean(entry.Name)
		if strings.HasPrefix(clean, "..") {
			return nil, fmt.Errorf("invalid path in bundle: %s", entry.Name)
		}
		if clean != want && path.Base(clean) != want {
			continue
		}
		return readEntry(entry)
	}
	return nil, nil
}

func readEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle entry %s: %w", entry.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntryBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle entry %s: %w", entry.Name, err)
	}
	return data, nil
}

// scanBundleText concatenates the text entries of a zip bundle (used for log
// bundles where the digest line may live in any of several log files).
func scanBundleText(bundle []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(bundle), int64(len(bundle)))
	if err != nil {
		return "", fmt.Errorf("failed to open log bundle: %w", err)
	}

	var sb strings.Builder
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(entry.Name))
		if ext != ".log" && ext != ".txt" {
			continue
		}
		data, err := readEntry(entry)
		if err != nil {
			return "", err
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
