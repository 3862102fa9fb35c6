package database

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AppDirName       = ".tsp-search"
	SQLiteDBFileName = "data.db"
	ConfigFileName   = "config.yaml"
	LogFileName      = "tsp-search.log"
)

// GetAppDir returns ~/.tsp-search, creating it if needed
func GetAppDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	appDir := filepath.Join(homeDir, AppDirName)
	if err := os.MkdirAll(appDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create app directory: %w", err)
	}

	return appDir, nil
}

// GetDefaultDBPath returns the default SQLite database path: ~/.tsp-search/data.db
func GetDefaultDBPath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, SQLiteDBFileName), nil
}

// GetConfigFilePath returns ~/.tsp-search/config.yaml
func GetConfigFilePath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, ConfigFileName), nil
}

// GetLogFilePath returns ~/.tsp-search/tsp-search.log, used when the
// terminal is owned by the interactive view
func GetLogFilePath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, LogFileName), nil
}
