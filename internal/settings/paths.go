package settings

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir resolves the app data directory. An explicit override wins over the user config directory.
func Dir(override, appName string) (string, error) {
	if override != "" {
		return filepath.Join(override, appName), nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config directory: %w", err)
	}
	return filepath.Join(base, appName), nil
}
