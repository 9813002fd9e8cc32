// Package pathutils resolves the file paths given in flags and config files.
package pathutils

import (
	"os/user"
	"path/filepath"
	"strings"
)

// HomeDir returns the home directory of the current user, or "" when it
// cannot be determined.
func HomeDir() string {
	usr, err := user.Current()
	if err != nil {
		return ""
	}
	return usr.HomeDir
}

// ExpandHome converts a leading "~/" to the home directory of the current
// user. Other paths are returned unchanged.
func ExpandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home := HomeDir()
	if home == "" {
		return path
	}
	return filepath.Join(home, rest)
}
