// Package envf loads the layered .env files that feed every subprocess the
// CLI spawns: the project base file first, then the target-specific file
// (.env.local, .env.dev, ...) which wins on conflicts.
package envf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
)

const DefaultTarget = "local"

// Target resolves the active environment target: explicit flag value first,
// then the ENV variable, then fallback (the user-level config), then "local".
func Target(flagValue, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("ENV"); v != "" {
		return v
	}
	if fallback != "" {
		return fallback
	}
	return DefaultTarget
}

// File returns the .env filename for a target. The base file has no suffix.
func File(dir, target string) string {
	if target == "" {
		return filepath.Join(dir, ".env")
	}
	return filepath.Join(dir, ".env."+target)
}

// Load reads the project's base .env and the target-specific overlay from
// dir. Missing files are skipped. Overlay values win over base values.
func Load(dir, target string) (map[string]string, error) {
	merged := map[string]string{}

	for _, path := range []string{File(dir, ""), File(dir, target)} {
		vars, err := read(path)
		if err != nil {
			return nil, err
		}
		for k, v := range vars {
			merged[k] = v
		}
	}
	return merged, nil
}

// ReadFile reads a single dotenv file. Missing files yield an empty map.
func ReadFile(path string) (map[string]string, error) {
	return read(path)
}

func read(path string) (map[string]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return vars, nil
}

// Apply exports vars into the current process so child processes inherit
// them. Already-set variables are left alone unless override is true.
func Apply(vars map[string]string, override bool) {
	for k, v := range vars {
		if !override {
			if _, exists := os.LookupEnv(k); exists {
				continue
			}
		}
		os.Setenv(k, v)
	}
}

// Render flattens vars into sorted KEY=VALUE pairs for subprocess env slices.
func Render(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+vars[k])
	}
	return pairs
}

// Write persists vars to path in dotenv format, sorted for stable diffs.
func Write(vars map[string]string, path string) error {
	if err := godotenv.Write(vars, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
