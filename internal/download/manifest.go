// File: internal/download/manifest.go
package download

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ManifestName is the JSON-lines file appended to after every successful
// download in a working directory.
const ManifestName = "downloads.jsonl"

// ManifestRecord is one completed download.
type ManifestRecord struct {
	URL          string    `json:"url"`
	File         string    `json:"file"`
	Size         int64     `json:"size"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// appendManifest appends one record to the manifest in dir.
func appendManifest(dir string, rec ManifestRecord) error {
	path := filepath.Join(dir, ManifestName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open manifest %q: %w", path, err)
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode manifest record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write manifest record: %w", err)
	}
	return nil
}

// ReadManifest returns all records from the manifest in dir, oldest first.
// A missing manifest yields an empty slice.
func ReadManifest(dir string) ([]ManifestRecord, error) {
	path := filepath.Join(dir, ManifestName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open manifest %q: %w", path, err)
	}
	defer f.Close()

	var records []ManifestRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec ManifestRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("malformed manifest line: %w", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return records, nil
}
