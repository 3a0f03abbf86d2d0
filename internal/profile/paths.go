package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.taverna.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".taverna")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// DBPath returns the store file path for a profile. The exclusivity lock
// lives next to it as a ".lock" sidecar.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "taverna.db")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "tavernad.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with restrictive permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
