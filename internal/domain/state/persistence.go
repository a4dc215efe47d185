package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// SnapshotFile is the name of the snapshot inside the state directory
const SnapshotFile = "Session.json"

// SnapshotPath returns the well-known snapshot path inside dir
func SnapshotPath(dir string) string {
	return filepath.Join(dir, SnapshotFile)
}

// SaveToFile serializes the whole state to path, overwriting it. The file is
// written next to path and renamed, so readers never see a partial snapshot.
func (s *Store) SaveToFile(path string) error {
	snap := s.Snapshot()

	data, err := sonic.ConfigStd.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// LoadFromFile replaces the in-memory state wholesale with the snapshot at
// path. On any error the store is left untouched; a missing file yields an
// error matching os.ErrNotExist.
func (s *Store) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	st := types.NewPlatformState()
	if err := sonic.ConfigStd.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}

	s.Replace(st)
	return nil
}
