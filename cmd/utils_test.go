package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadTemplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/devcontainer.json":
			w.Write([]byte(`{"name": "base"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	t.Run("writes the fetched file", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "sub", "devcontainer.json")
		require.NoError(t, downloadTemplate(context.Background(), srv.URL+"/devcontainer.json", dest))

		body, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Contains(t, string(body), "base")
	})

	t.Run("refuses to clobber an existing file", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "devcontainer.json")
		require.NoError(t, os.WriteFile(dest, []byte("local edits"), 0o644))

		err := downloadTemplate(context.Background(), srv.URL+"/devcontainer.json", dest)
		assert.ErrorContains(t, err, "already exists")
	})

	t.Run("404 surfaces the status", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "missing.txt")
		err := downloadTemplate(context.Background(), srv.URL+"/missing.txt", dest)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})
}

func TestSecretKeyPattern(t *testing.T) {
	for _, key := range []string{"API_KEY", "DB_PASSWORD", "GITHUB_TOKEN", "client_secret", "AWS_CREDENTIALS"} {
		assert.True(t, secretKeyPattern.MatchString(key), key)
	}
	for _, key := range []string{"PORT", "DATABASE_URL", "LOG_LEVEL"} {
		assert.False(t, secretKeyPattern.MatchString(key), key)
	}
}
