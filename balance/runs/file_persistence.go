package runs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilePersistence implements Persistence with one JSON file per run
type FilePersistence struct {
	runsDir string
}

// NewFilePersistence creates runsDir if needed
func NewFilePersistence(runsDir string) (*FilePersistence, error) {
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runs directory: %w", err)
	}
	return &FilePersistence{runsDir: runsDir}, nil
}

// Save writes the run to <runsDir>/<id>.json
func (fp *FilePersistence) Save(run Run) error {
	if err := validateID(run.ID); err != nil {
		return err
	}

	jsonData, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	if err := os.WriteFile(fp.getFilePath(run.ID), jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}
	return nil
}

// Load reads a run back from disk
func (fp *FilePersistence) Load(id string) (Run, error) {
	if err := validateID(id); err != nil {
		return Run{}, err
	}

	jsonData, err := os.ReadFile(fp.getFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, fmt.Errorf("failed to read run file: %w", err)
	}

	var run Run
	if err := json.Unmarshal(jsonData, &run); err != nil {
		return Run{}, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return run, nil
}

// Delete removes a run file
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return ErrRunNotFound
	}
	if err := os.Remove(fp.getFilePath(id)); err != nil {
		return fmt.Errorf("failed to remove run file: %w", err)
	}
	return nil
}

// ListAll returns all persisted run IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.runsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		if validateID(id) == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Exists checks if a run file exists
func (fp *FilePersistence) Exists(id string) bool {
	if validateID(id) != nil {
		return false
	}
	_, err := os.Stat(fp.getFilePath(id))
	return err == nil
}

func (fp *FilePersistence) getFilePath(id string) string {
	return filepath.Join(fp.runsDir, id+".json")
}
