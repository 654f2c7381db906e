package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves environment variables and a leading "~" in path.
func ExpandPath(path string) (string, error) {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}

		path = filepath.Join(homeDir, path[1:])
	}

	return filepath.Clean(path), nil
}
