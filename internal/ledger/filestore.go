package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists the usage period as a JSON file on local disk.
// Suitable for single-process deployments; the Ledger mutex provides the
// single-writer discipline, and writes go through a temp-file rename so a
// crash mid-write cannot corrupt the record.
type FileStore struct {
	path string
}

// NewFileStore builds a store at the given path, creating parent
// directories on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) (UsagePeriod, bool, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return UsagePeriod{}, false, nil
	}
	if err != nil {
		return UsagePeriod{}, false, err
	}
	var period UsagePeriod
	if err := json.Unmarshal(raw, &period); err != nil {
		return UsagePeriod{}, false, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return period, true, nil
}

func (s *FileStore) Save(ctx context.Context, period UsagePeriod) error {
	raw, err := json.MarshalIndent(period, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
