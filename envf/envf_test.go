package envf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("target overlay wins over base", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, ".env"), []byte("A=base\nB=base\n"), 0o644)
		os.WriteFile(filepath.Join(dir, ".env.dev"), []byte("B=dev\nC=dev\n"), 0o644)

		vars, err := Load(dir, "dev")
		require.NoError(t, err)
		assert.Equal(t, "base", vars["A"])
		assert.Equal(t, "dev", vars["B"])
		assert.Equal(t, "dev", vars["C"])
	})

	t.Run("missing files are skipped", func(t *testing.T) {
		vars, err := Load(t.TempDir(), "prod")
		require.NoError(t, err)
		assert.Empty(t, vars)
	})

	t.Run("malformed file is an error naming the file", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, ".env"), []byte("not a dotenv line\x00"), 0o644)

		_, err := Load(dir, "local")
		require.Error(t, err)
		assert.Contains(t, err.Error(), ".env")
	})
}

func TestTarget(t *testing.T) {
	t.Setenv("ENV", "")
	assert.Equal(t, "local", Target("", ""))
	assert.Equal(t, "dev", Target("", "dev"))
	assert.Equal(t, "prod", Target("prod", "dev"))

	t.Setenv("ENV", "staging")
	assert.Equal(t, "staging", Target("", "dev"))
	assert.Equal(t, "prod", Target("prod", ""))
}

func TestApply(t *testing.T) {
	t.Setenv("ENVF_KEEP", "original")

	Apply(map[string]string{"ENVF_KEEP": "changed", "ENVF_NEW": "set"}, false)
	assert.Equal(t, "original", os.Getenv("ENVF_KEEP"))
	assert.Equal(t, "set", os.Getenv("ENVF_NEW"))
	t.Cleanup(func() { os.Unsetenv("ENVF_NEW") })

	Apply(map[string]string{"ENVF_KEEP": "changed"}, true)
	assert.Equal(t, "changed", os.Getenv("ENVF_KEEP"))
}

func TestRender(t *testing.T) {
	pairs := Render(map[string]string{"B": "2", "A": "1"})
	assert.Equal(t, []string{"A=1", "B=2"}, pairs)
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env.local")
	require.NoError(t, Write(map[string]string{"KEY": "value with spaces"}, path))

	vars, err := Load(filepath.Dir(path), "local")
	require.NoError(t, err)
	assert.Equal(t, "value with spaces", vars["KEY"])
}
