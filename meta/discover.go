package meta

import (
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// skipDirs are never descended into during a recursive scan.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".terraform":   true,
	"vendor":       true,
	"dist":         true,
}

// Find walks up from dir to the nearest directory containing meta.json.
func Find(dir string) (*Meta, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	for d := abs; ; d = filepath.Dir(d) {
		if _, err := os.Stat(filepath.Join(d, FileName)); err == nil {
			return Load(d)
		}
		if d == filepath.Dir(d) {
			break
		}
	}
	return nil, fmt.Errorf("no %s found in %s or any parent directory", FileName, abs)
}

// Scan walks the tree under root and loads every meta.json, sorted by path.
// A descriptor that fails to parse aborts the scan with its error.
func Scan(root string) ([]*Meta, error) {
	var metas []*Meta

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] || (strings.HasPrefix(d.Name(), "_") && path != root) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != FileName {
			return nil
		}
		m, err := Load(filepath.Dir(path))
		if err != nil {
			return err
		}
		metas = append(metas, m)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].Dir < metas[j].Dir })
	return metas, nil
}

// RepoRoot returns the Git repository root for the given path, or the path
// itself if it is not inside a Git repository.
func RepoRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if out, err := exec.Command("git", "-C", abs, "rev-parse", "--show-toplevel").Output(); err == nil {
		if root := strings.TrimSpace(string(out)); root != "" {
			return root, nil
		}
	}
	return abs, nil
}
