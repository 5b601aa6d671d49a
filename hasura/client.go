// Package hasura gates hasura CLI invocations behind an HTTP health check
// and assembles the common connection flags.
package hasura

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client holds the GraphQL engine connection details read from the env vars
// named in meta.json.
type Client struct {
	Endpoint    string
	AdminSecret string

	http *http.Client
}

func New(endpoint, adminSecret string) *Client {
	return &Client{
		Endpoint:    strings.TrimRight(endpoint, "/"),
		AdminSecret: adminSecret,
		http:        &http.Client{Timeout: 5 * time.Second},
	}
}

// WaitHealthy polls GET /healthz until the engine answers 200 or the
// context expires. Connection errors and non-200s keep the loop going; the
// timeout error includes the last observed state.
func (c *Client) WaitHealthy(ctx context.Context, interval time.Duration) error {
	if c.Endpoint == "" {
		return fmt.Errorf("no hasura endpoint configured")
	}
	url := c.Endpoint + "/healthz"

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := "no response yet"
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			last = err.Error()
		} else {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			last = resp.Status
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("hasura at %s not healthy: %s: %w", c.Endpoint, last, ctx.Err())
		case <-ticker.C:
		}
	}
}

// CLIArgs assembles the hasura CLI arguments for a subcommand, appending
// the project path and connection flags.
func (c *Client) CLIArgs(projectPath string, sub ...string) []string {
	args := append([]string{}, sub...)
	args = append(args, "--project", projectPath)
	if c.Endpoint != "" {
		args = append(args, "--endpoint", c.Endpoint)
	}
	if c.AdminSecret != "" {
		args = append(args, "--admin-secret", c.AdminSecret)
	}
	return args
}
