// Package state implements the State Store and Buffer Store: atomic,
// crash-safe persistence of the scan/dedup state and of records awaiting
// delivery.
//
// Grounded on the teacher's internal/config/config.go atomic-write
// discipline (temp file + rename, 0600 permissions, tolerant
// load-with-defaults-on-absence), generalized from a single TOML config
// document to JSON documents with schema migration on load.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// writeAtomic serializes v to JSON and commits it to path via a sibling
// temp file followed by rename. The rename is the commit point: a reader
// either sees the old file in full or the new one in full, never a
// partial write (spec.md P6).
func writeAtomic(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed away

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// readJSON decodes path into v. It reports whether the file existed at
// all, distinct from a decode failure, so callers can tell "first run"
// apart from "corrupt file".
func readJSON(path string, v interface{}) (existed bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	if decErr := json.NewDecoder(f).Decode(v); decErr != nil {
		return true, decErr
	}
	return true, nil
}
