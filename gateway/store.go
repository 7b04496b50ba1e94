// Package gateway is the watchdog's external-interface boundary: config and
// token-vault persistence, the inbound HTTP API, the messenger command
// dispatcher, and CSV/JSON export writing. None of these own domain logic —
// they translate between the outside world and the scheduler/tracker/policy
// packages.
package gateway

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/opsmind/pulseguard/core"
)

// Store persists a core.Config document to a fixed path using a
// rename-to-backup discipline: the previous file is renamed to *.bak before
// the new content is written, the backup is removed on success, and it is
// restored in place of a partial write on failure.
type Store struct {
	mu   sync.RWMutex
	path string
}

// NewStore opens a Store rooted at path. The file is not read until Load is
// called.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads and unmarshals the config document. A missing file is not an
// error: it returns a fresh default configuration so a new install can run
// until the first Save.
func (s *Store) Load() (*core.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, err := core.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("gateway: build default config: %w", err)
	}

	// Non-JSON extensions (yaml, toml, ...) go through viper, which reads
	// whatever format its file extension names; JSON keeps the hand-rolled
	// path so Save's backup discipline round-trips it byte-for-byte.
	if ext := strings.ToLower(filepath.Ext(s.path)); ext != "" && ext != ".json" {
		if err := s.loadViper(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gateway: read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("gateway: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gateway: validate config: %w", err)
	}
	return cfg, nil
}

// loadViper reads a non-JSON config document through viper and decodes it
// onto cfg via a JSON round-trip, since cfg's struct tags are "json", not
// viper's default "mapstructure".
func (s *Store) loadViper(cfg *core.Config) error {
	v := viper.New()
	v.SetConfigFile(s.path)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("gateway: read config (viper): %w", err)
	}

	raw, err := json.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("gateway: remarshal viper settings: %w", err)
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("gateway: decode config (viper): %w", err)
	}
	return cfg.Validate()
}

// Save writes cfg to the store's path under the backup discipline described
// on Store.
func (s *Store) Save(cfg *core.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("gateway: marshal config: %w", err)
	}
	return writeWithBackup(s.path, data)
}

// writeWithBackup implements the §6.1 write discipline: rename current file
// to *.bak, write new content, delete *.bak on success, restore from *.bak
// on failure. A missing current file is not a failure — there's simply
// nothing to back up.
func writeWithBackup(path string, data []byte) error {
	backup := path + ".bak"

	hadOriginal := true
	if err := os.Rename(path, backup); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("gateway: backup %s: %w", path, err)
		}
		hadOriginal = false
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		if hadOriginal {
			os.Rename(backup, path)
		}
		return fmt.Errorf("gateway: write %s: %w", path, err)
	}

	if hadOriginal {
		if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("gateway: remove backup %s: %w", backup, err)
		}
	}
	return nil
}
