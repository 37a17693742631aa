package config

import (
	"os"
	"path/filepath"
)

// SettingsFileName is the settings file inside the data directory
const SettingsFileName = "settings.json"

// Paths holds all resolved paths for myrepo operations
type Paths struct {
	Dir          string // data directory (also the git working tree)
	SettingsPath string // <Dir>/settings.json
}

// ResolvePaths resolves the data directory. An explicit dir wins, then
// MYREPO_DIR, then the current working directory.
func ResolvePaths(dir string) (*Paths, error) {
	if dir == "" {
		dir = os.Getenv("MYREPO_DIR")
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = wd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	return &Paths{
		Dir:          abs,
		SettingsPath: filepath.Join(abs, SettingsFileName),
	}, nil
}

// Resolve makes a settings path absolute relative to the data directory
func (p *Paths) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Dir, path)
}

// IsInitialized checks if a settings file exists in the data directory
func (p *Paths) IsInitialized() bool {
	info, err := os.Stat(p.SettingsPath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
