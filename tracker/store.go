package tracker

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/opsmind/pulseguard/core"
)

// FileStore persists TrackerState as JSON, writing through a temp file and
// rename so a crash mid-write can never corrupt the on-disk state.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted state, or returns (nil, nil) if no file exists yet.
func (s *FileStore) Load() (*core.TrackerState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state core.TrackerState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.CurrentErrors == nil {
		state.CurrentErrors = make(map[string]core.CheckResult)
	}
	if state.PreviousErrors == nil {
		state.PreviousErrors = make(map[string]core.CheckResult)
	}
	if state.Acknowledged == nil {
		state.Acknowledged = make(map[string]struct{})
	}
	return &state, nil
}

// Save writes state atomically via a temp file in the same directory.
func (s *FileStore) Save(state *core.TrackerState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".tracker-state-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.path)
}
