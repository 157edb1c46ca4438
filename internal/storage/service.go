package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const filePrefix = "interview_"

// Results keeps export records as JSON files in a directory.
type Results struct {
	dir string
}

func NewResults(dir string) *Results {
	return &Results{dir: dir}
}

// SaveResult writes the export record to <dir>/interview_<sessionId>.json.
func (r *Results) SaveResult(record *ExportRecord) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", r.dir, err)
	}

	path := r.path(record.SessionID)

	jsonData, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export record: %w", err)
	}

	// write then rename so readers never see a partial file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return fmt.Errorf("write file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}

	return nil
}

// LoadResult reads a stored export record.
func (r *Results) LoadResult(sessionID string) (*ExportRecord, error) {
	path := r.path(sessionID)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	var record ExportRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}

	return &record, nil
}

// ListResults returns the session IDs of all stored records.
func (r *Results) ListResults() ([]string, error) {
	if _, err := os.Stat(r.dir); os.IsNotExist(err) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", r.dir, err)
	}

	var results []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || !strings.HasPrefix(name, filePrefix) {
			continue
		}
		results = append(results, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), ".json"))
	}

	return results, nil
}

func (r *Results) path(sessionID string) string {
	return filepath.Join(r.dir, filePrefix+sessionID+".json")
}
