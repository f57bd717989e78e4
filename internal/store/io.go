package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"ciphersync/internal/domain"
)

// getJSON loads the record under k into out; a missing key is not an error.
func getJSON(tx domain.Txn, k []byte, out any) (bool, error) {
	b, ok, err := tx.Get(k)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("decode %q: %w", k, err)
	}
	return true, nil
}

// putJSON encodes v and stores it under k.
func putJSON(tx domain.Txn, k []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Set(k, b)
}

// scanJSON decodes every record under prefix lazily. The scan stops when the
// consumer breaks out of the loop.
func scanJSON[T any](tx domain.Txn, prefix []byte) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		err := tx.Scan(prefix, func(k, v []byte) error {
			var rec T
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode %q: %w", k, err)
			}
			if !yield(rec, nil) {
				return domain.ErrStopScan
			}
			return nil
		})
		if err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

// collectKeys returns every key under prefix.
func collectKeys(tx domain.Txn, prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := tx.Scan(prefix, func(k, _ []byte) error {
		keys = append(keys, k)
		return nil
	})
	return keys, err
}

// readFile reads the file at path into b; a missing file is not an error.
func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// writeFile writes bytes via a temp file, then atomically replaces the target.
func writeFile(path string, b []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	// Best-effort cleanup if anything fails before rename.
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
