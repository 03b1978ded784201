package session

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// HomeEnv relocates the base directory, mainly for tests and containers.
const HomeEnv = "SOCIALSYNC_HOME"

// BaseDir returns ~/.socialsync, or $SOCIALSYNC_HOME when set.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".socialsync")
}

func sessionsDir() string { return filepath.Join(BaseDir(), "sessions") }

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(sessionsDir(), name)
}

// List returns the names of the sessions that have a directory, sorted.
// Entries that are not valid session names are skipped.
func List() ([]string, error) {
	entries, err := os.ReadDir(sessionsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && ValidateName(e.Name()) == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// SocketPath returns the UDS socket path for a session.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "syncd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
