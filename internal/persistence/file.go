package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cityforge/server/internal/world"
)

// SaveFile writes the world to a JSON file, creating parent directories
// as needed. The write goes through a temp file and rename so a crash
// mid-save never truncates a good save.
func SaveFile(s *world.State, path string) error {
	data, err := Marshal(Snapshot(s))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating save directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing save file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("committing save file: %w", err)
	}
	return nil
}

// LoadFile reads a world from a JSON file.
func LoadFile(path string) (*world.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading save file: %w", err)
	}
	doc, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("parsing save file %s: %w", path, err)
	}
	return Restore(doc)
}
