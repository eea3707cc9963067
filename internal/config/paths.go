package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/metaco/metaco/internal/models"
)

// StateFileEnv overrides the platform state path when set.
const StateFileEnv = "METACO_STATE_FILE"

// platformDir describes where a platform keeps the state file: the base
// directory comes from an environment variable and the rest is fixed.
type platformDir struct {
	env  string
	elem []string
}

var platformDirs = map[string]platformDir{
	"windows": {env: "LOCALAPPDATA", elem: []string{"metaCo", "state.json"}},
	"linux":   {env: "HOME", elem: []string{".local", "share", "metaCo", "state.json"}},
	"darwin":  {env: "HOME", elem: []string{"Library", "Application Support", "metaCo", "state.json"}},
}

// ResolvePath maps an operating system identifier (runtime.GOOS values) to
// the state file path. Unknown systems fail with models.ErrUnsupportedPlatform.
func ResolvePath(goos string, getenv func(string) string) (string, error) {
	dir, ok := platformDirs[goos]
	if !ok {
		return "", models.ErrUnsupportedPlatform
	}
	base := getenv(dir.env)
	if base == "" {
		return "", models.ErrIO.Wrap(fmt.Errorf("%s is not set", dir.env))
	}
	return filepath.Join(append([]string{base}, dir.elem...)...), nil
}

// DefaultStatePath returns the state path for the running system, honouring
// METACO_STATE_FILE.
func DefaultStatePath() (string, error) {
	if p := os.Getenv(StateFileEnv); p != "" {
		return p, nil
	}
	return ResolvePath(runtime.GOOS, os.Getenv)
}
