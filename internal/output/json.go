// Package output renders command reports and writes report files.
//
// Reports go to stdout as CSV by default, or as a table, markdown or JSON.
// Files are written atomically (temp file + fsync + rename) so an
// interrupted run never leaves a truncated report behind.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// jsonReport is the JSON shape of a Report: one object per row keyed by
// header.
type jsonReport struct {
	Comments []string            `json:"comments,omitempty"`
	Columns  []string            `json:"columns"`
	Rows     []map[string]string `json:"rows"`
}

func renderJSON(w io.Writer, r Report) error {
	doc := jsonReport{Comments: r.Comments, Columns: r.Header, Rows: make([]map[string]string, 0, len(r.Rows))}
	for _, cells := range r.Rows {
		obj := make(map[string]string, len(cells))
		for i, c := range cells {
			key := fmt.Sprintf("col%d", i)
			if i < len(r.Header) {
				key = r.Header[i]
			}
			obj[key] = c
		}
		doc.Rows = append(doc.Rows, obj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteFileAtomic writes data to path through a temp file in the same
// directory, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte) (err error) {
	// 1. Write to temporary file first
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpFile := file.Name()

	// Ensure cleanup on error
	defer func() {
		if err != nil {
			_ = file.Close()
			_ = os.Remove(tmpFile)
		}
	}()

	if _, err = file.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpFile, err)
	}

	// 2. Flush and sync to disk to ensure data is written
	if err = file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file %s: %w", tmpFile, err)
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %w", tmpFile, err)
	}
	if err = os.Chmod(tmpFile, 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmpFile, err)
	}

	// 3. Atomic rename (POSIX guarantees atomicity)
	if err = os.Rename(tmpFile, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}
