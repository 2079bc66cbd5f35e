package util

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/spf13/afero"

	"github.com/ppiankov/poseprep/internal/logger"
)

// CreateDirs creates every directory in paths, including parents.
func CreateDirs(fs afero.Fs, paths []string, verbose bool) error {
	for _, p := range paths {
		if err := fs.MkdirAll(p, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", p, err)
		}
		if verbose {
			logger.Default().Info("directory created", "path", p)
		}
	}
	return nil
}

// SaveJSON writes data as JSON with a one-space indent.
func SaveJSON(fs afero.Fs, path string, data any) error {
	out, err := json.MarshalIndent(data, "", " ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := afero.WriteFile(fs, path, out, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logger.Default().Debug("json file saved", "path", path)
	return nil
}

// LoadJSON decodes the JSON file at path into v.
func LoadJSON(fs afero.Fs, path string, v any) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	logger.Default().Debug("json file loaded", "path", path)
	return nil
}

// GetSize returns the file size rounded to kilobytes, as "~ N KB".
func GetSize(fs afero.Fs, path string) (string, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return "", err
	}
	kb := int64(math.Round(float64(info.Size()) / 1024))
	return fmt.Sprintf("~ %d KB", kb), nil
}
