package meta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	t.Run("walks up to the nearest descriptor", func(t *testing.T) {
		root := t.TempDir()
		writeMeta(t, root, `{"id": "x", "name": "api"}`)
		nested := filepath.Join(root, "src", "handlers")
		require.NoError(t, os.MkdirAll(nested, 0o755))

		m, err := Find(nested)
		require.NoError(t, err)
		assert.Equal(t, "api", m.Name)
	})

	t.Run("errors when nothing is found", func(t *testing.T) {
		_, err := Find(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), FileName)
	})
}

func TestScan(t *testing.T) {
	root := t.TempDir()

	for _, p := range []string{"apps/api", "apps/web", "infra"} {
		dir := filepath.Join(root, p)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		writeMeta(t, dir, `{"id": "x", "name": "`+filepath.Base(p)+`"}`)
	}

	// Descriptors under ignored directories must not be picked up.
	ignored := filepath.Join(root, "apps", "api", "node_modules", "dep")
	require.NoError(t, os.MkdirAll(ignored, 0o755))
	writeMeta(t, ignored, `{"id": "x", "name": "dep"}`)

	metas, err := Scan(root)
	require.NoError(t, err)
	require.Len(t, metas, 3)

	var names []string
	for _, m := range metas {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"api", "web", "infra"}, names)
}

func TestScanInvalidDescriptorAborts(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "broken")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeMeta(t, dir, `{"name": "no-id"}`)

	_, err := Scan(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id")
}
