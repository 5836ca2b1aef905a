package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/nao1215/wikiacrawl/internal/model"
)

// StateFileName is the file name of the checkpoint inside crawl_state/.
const StateFileName = "crawl_state.json"

var (
	// ErrNoState is returned by Load when no checkpoint exists.
	ErrNoState = errors.New("no saved crawl state")

	// ErrCorruptState is returned by Load for an unreadable checkpoint.
	ErrCorruptState = errors.New("corrupt crawl state")
)

// StateStore persists the CrawlState checkpoint of a project.
type StateStore struct {
	path string
}

// NewStateStore creates a StateStore writing to path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the checkpoint file path.
func (s *StateStore) Path() string {
	return s.path
}

// Exists reports whether a checkpoint exists.
func (s *StateStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Save writes state atomically.
func (s *StateStore) Save(state *model.CrawlState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode crawl state: %w", err)
	}
	if err := WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save crawl state: %w", err)
	}
	return nil
}

// Load reads the checkpoint and verifies its invariants.
func (s *StateStore) Load() (*model.CrawlState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("failed to read crawl state: %w", err)
	}

	var state model.CrawlState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	if state.Visited == nil {
		state.Visited = make(map[string]model.VisitedRecord)
	}
	if err := state.Check(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	return &state, nil
}

// Clear removes the checkpoint. A missing checkpoint is not an error.
func (s *StateStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove crawl state: %w", err)
	}
	return nil
}
