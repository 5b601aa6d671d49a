package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("missing file yields zero values", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
		require.NoError(t, err)
		assert.Equal(t, &Global{}, cfg)
	})

	t.Run("parses the settings file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"target: staging\ntemplates_url: https://example.com/templates\nstate_bucket: my-states\n"), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "staging", cfg.Target)
		assert.Equal(t, "https://example.com/templates", cfg.TemplatesURL)
		assert.Equal(t, "my-states", cfg.StateBucket)
		assert.Empty(t, cfg.StatePrefix)
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("target: [unclosed"), 0o644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
	})
}
