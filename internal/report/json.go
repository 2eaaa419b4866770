package report

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/json-iterator/go"
)

// WriteJSON persists the run report as indented JSON at path.
func WriteJSON(run *Run, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	data, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write run report: %w", err)
	}
	return nil
}
