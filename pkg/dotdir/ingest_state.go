package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	ingestStateFile = "last_ingest.json"
)

// IngestState records the outcome of the most recent ingestion run so that
// later CLI invocations can report on it.
type IngestState struct {
	Collection string    `json:"collection"`
	Sources    []string  `json:"sources"`
	Documents  int       `json:"documents"`
	Planned    int       `json:"chunks_planned"`
	Added      int       `json:"chunks_added"`
	Failed     int       `json:"failed_embedding_batches"`
	Completed  time.Time `json:"completed_at"`
}

// LoadIngestState loads the state from a target .vellum/last_ingest.json.
// Returns nil, nil if nothing has been ingested yet.
func (m *Manager) LoadIngestState(overrideDir string) (*IngestState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, ingestStateFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading ingest state: %w", err)
	}

	state := &IngestState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing ingest state: %w", err)
	}

	return state, nil
}

// SaveIngestState persists state to a target .vellum/last_ingest.json.
func (m *Manager) SaveIngestState(state *IngestState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil ingest state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ingest state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ingestStateFile), data, 0o600); err != nil {
		return fmt.Errorf("writing ingest state: %w", err)
	}

	return nil
}

// ClearIngestState removes the state file. Returns nil if it does not exist.
func (m *Manager) ClearIngestState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, ingestStateFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing ingest state: %w", err)
	}

	return nil
}
