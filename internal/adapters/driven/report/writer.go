package report

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Write serializes the recorder's report to <dir>/<name> as indented
// JSON, creating the directory if needed. The report is written once, at
// the end of a validation run.
func Write(dir, name string, rec *Recorder) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec.Report(), "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}
