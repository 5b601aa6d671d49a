package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ghostmind-dev/run-sub002/hasura"
	"github.com/ghostmind-dev/run-sub002/meta"
	"github.com/ghostmind-dev/run-sub002/shell"
	"github.com/ghostmind-dev/run-sub002/tui"
	"github.com/urfave/cli/v3"
)

const (
	defaultEndpointEnv    = "HASURA_GRAPHQL_ENDPOINT"
	defaultAdminSecretEnv = "HASURA_GRAPHQL_ADMIN_SECRET"
)

func HasuraCommand() *cli.Command {
	healthTimeout := &cli.DurationFlag{
		Name:  "health-timeout",
		Value: 60 * time.Second,
		Usage: "How long to wait for the engine's /healthz",
	}

	return &cli.Command{
		Name:  "hasura",
		Usage: "Wrap the hasura CLI against the project's engine",
		Flags: []cli.Flag{healthTimeout},
		Commands: []*cli.Command{
			{
				Name:  "console",
				Usage: "Open the hasura console",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return hasuraRun(ctx, cmd, "console")
				},
			},
			{
				Name:      "migrate",
				Usage:     "Run migrations (apply, status, ...)",
				ArgsUsage: "<subcommand> [args...]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					args := append([]string{"migrate"}, cmd.Args().Slice()...)
					if cmd.Args().Len() == 0 {
						args = append(args, "apply", "--all-databases")
					}
					return hasuraRun(ctx, cmd, args...)
				},
			},
			{
				Name:      "metadata",
				Usage:     "Manage engine metadata (apply, export, ...)",
				ArgsUsage: "<subcommand>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					sub := cmd.Args().First()
					if sub == "" {
						sub = "apply"
					}
					return hasuraRun(ctx, cmd, "metadata", sub)
				},
			},
		},
	}
}

// hasuraRun waits for the engine to answer healthy, then shells to the
// hasura CLI with the project's connection flags.
func hasuraRun(ctx context.Context, cmd *cli.Command, sub ...string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	cfg := p.Meta.Hasura
	if cfg == nil {
		return fmt.Errorf("no hasura section in %s", filepath.Join(p.Meta.Dir, meta.FileName))
	}

	client := hasura.New(hasuraEnv(cfg.EndpointEnv, defaultEndpointEnv),
		hasuraEnv(cfg.AdminSecretEnv, defaultAdminSecretEnv))

	waitCtx, cancel := context.WithTimeout(ctx, cmd.Duration("health-timeout"))
	defer cancel()
	tui.Status("waiting", "for hasura at %s", client.Endpoint)
	if err := client.WaitHealthy(waitCtx, 2*time.Second); err != nil {
		return err
	}

	projectPath := filepath.Join(p.Meta.Dir, cfg.Path)
	return shell.New("hasura", client.CLIArgs(projectPath, sub...)...).
		Env(p.EnvPairs()...).
		Run(ctx)
}

// hasuraEnv reads the env var named in meta.json, falling back to the
// conventional variable name.
func hasuraEnv(name, fallback string) string {
	if name == "" {
		name = fallback
	}
	return os.Getenv(name)
}
