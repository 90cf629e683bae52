package config

import (
	"os"
	"path"
)

const appDir = "digitalink"

// DataDir returns the directory for model bundles and the database,
// creating it if needed. The user cache dir is preferred, with
// ~/.digitalink-cache as the fallback.
func DataDir() (string, error) {
	cachedir, err := os.UserCacheDir()
	if err == nil {
		dir := path.Join(cachedir, appDir)
		if err = os.MkdirAll(dir, 0700); err == nil {
			return dir, nil
		}
	}

	// Fallback to home directory if cache dir cannot be used
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := path.Join(home, ".digitalink-cache")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}
