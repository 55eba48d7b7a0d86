// utils.go: config path helpers shared by the cli and tests.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// GetDefaultConfigPaths returns a list of directories searched for config.yaml,
// in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user directory: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(homeDir, "AppData", "Roaming")
		}
		configPaths = []string{
			filepath.Join(appData, "villrein"),
			".",
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "villrein"),
			".",
		}
	}

	return configPaths, nil
}

// GetBasePath expands a possibly relative path against the working directory
// and ensures the directory exists.
func GetBasePath(path string) string {
	basePath := filepath.Dir(path)
	if basePath == "." || basePath == "" {
		return "."
	}
	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		_ = os.MkdirAll(basePath, 0o755)
	}
	return basePath
}
