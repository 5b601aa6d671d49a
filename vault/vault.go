// Package vault moves secrets between the team's Vault KV store and the
// project's .env files, shelling out to the vault CLI.
package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/ghostmind-dev/run-sub002/envf"
	"github.com/ghostmind-dev/run-sub002/shell"
)

// Client reads and writes one KV path.
type Client struct {
	Path string

	capture  func(ctx context.Context, c *shell.Command) (string, error)
	cacheDir string
}

func New(path string) *Client {
	return &Client{
		Path:     path,
		capture:  func(ctx context.Context, c *shell.Command) (string, error) { return c.Capture(ctx) },
		cacheDir: filepath.Join(xdg.CacheHome, "run", "vault"),
	}
}

// Preflight fails with an actionable message before any vault CLI call when
// the environment can't possibly work.
func Preflight() error {
	if !shell.Exists("vault") {
		return fmt.Errorf("vault CLI not found on PATH")
	}
	if os.Getenv("VAULT_ADDR") == "" {
		return fmt.Errorf("VAULT_ADDR is not set (run vault login needs a server address)")
	}
	if os.Getenv("VAULT_TOKEN") == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		if _, err := os.Stat(filepath.Join(home, ".vault-token")); err != nil {
			return fmt.Errorf("no VAULT_TOKEN and no ~/.vault-token; run `run vault login` first")
		}
	}
	return nil
}

// kvResponse covers both KV v2 ({"data":{"data":{...}}}) and v1
// ({"data":{...}}) JSON layouts.
type kvResponse struct {
	Data struct {
		Data map[string]any `json:"data"`
	} `json:"data"`
}

// parseKV extracts the secret map from `vault kv get -format=json` output.
func parseKV(out string) (map[string]string, error) {
	var resp kvResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		return nil, fmt.Errorf("parse vault output: %w", err)
	}

	raw := resp.Data.Data
	if raw == nil {
		// KV v1: the secret map sits directly under "data".
		var v1 struct {
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal([]byte(out), &v1); err != nil {
			return nil, fmt.Errorf("parse vault output: %w", err)
		}
		raw = v1.Data
	}
	if raw == nil {
		return nil, fmt.Errorf("vault output has no data section")
	}

	vars := make(map[string]string, len(raw))
	for k, v := range raw {
		vars[k] = fmt.Sprintf("%v", v)
	}
	return vars, nil
}

// Export fetches the secret and writes it as dir/.env.<target>, keeping a
// cache copy of the raw response for offline inspection.
func (c *Client) Export(ctx context.Context, dir, target string) (int, error) {
	out, err := c.capture(ctx, shell.New("vault", "kv", "get", "-format=json", c.Path))
	if err != nil {
		return 0, fmt.Errorf("vault kv get %s: %w", c.Path, err)
	}

	vars, err := parseKV(out)
	if err != nil {
		return 0, err
	}

	if err := envf.Write(vars, envf.File(dir, target)); err != nil {
		return 0, err
	}
	c.cache(out)
	return len(vars), nil
}

// cache stores the raw response best-effort; export never fails on it.
func (c *Client) cache(out string) {
	if err := os.MkdirAll(c.cacheDir, 0o700); err != nil {
		return
	}
	name := strings.ReplaceAll(c.Path, "/", "_") + ".json"
	os.WriteFile(filepath.Join(c.cacheDir, name), []byte(out), 0o600)
}

// Import pushes dir/.env.<target> to the KV path, replacing the stored
// secret.
func (c *Client) Import(ctx context.Context, dir, target string) (int, error) {
	path := envf.File(dir, target)
	vars, err := envf.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if len(vars) == 0 {
		return 0, fmt.Errorf("nothing to import: %s is missing or empty", path)
	}

	args := []string{"kv", "put", c.Path}
	args = append(args, envf.Render(vars)...)
	if _, err := c.capture(ctx, shell.New("vault", args...)); err != nil {
		return 0, fmt.Errorf("vault kv put %s: %w", c.Path, err)
	}
	return len(vars), nil
}
