package fsutil

import (
	"os"
	"path/filepath"
)

const (
	// AppName is the name of the application used in paths
	AppName = "alpmdb"
)

// GetConfigDir returns the platform-specific configuration directory for the application.
// On Linux: ~/.config/alpmdb/
// On macOS: ~/Library/Application Support/alpmdb/
// On Windows: %AppData%\alpmdb\
func GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, AppName), nil
}
