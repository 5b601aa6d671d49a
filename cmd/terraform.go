package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ghostmind-dev/run-sub002/config"
	"github.com/ghostmind-dev/run-sub002/envf"
	"github.com/ghostmind-dev/run-sub002/meta"
	"github.com/ghostmind-dev/run-sub002/shell"
	tf "github.com/ghostmind-dev/run-sub002/terraform"
	"github.com/ghostmind-dev/run-sub002/tui"
	"github.com/rs/xid"
	"github.com/urfave/cli/v3"
)

const (
	reviewFlag = "review"

	stateBucketEnv = "RUN_TF_STATE_BUCKET"
	statePrefixEnv = "RUN_TF_STATE_PREFIX"
)

func TerraformCommand() *cli.Command {
	return &cli.Command{
		Name:  "terraform",
		Usage: "Wrap terraform for the project's components",
		Commands: []*cli.Command{
			terraformOpCommand("init", "Initialize the component's providers and backend"),
			terraformOpCommand("plan", "Show the execution plan"),
			terraformOpCommand("apply", "Apply the component"),
			terraformOpCommand("destroy", "Destroy the component"),
			terraformUnlockCommand(),
		},
	}
}

func terraformOpCommand(op, usage string) *cli.Command {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  allFlag,
			Usage: "Run the operation for every component in the repo, global components first",
		},
	}
	if op == "apply" || op == "destroy" {
		flags = append(flags, &cli.BoolFlag{
			Name:  reviewFlag,
			Usage: "Ask for interactive approval instead of -auto-approve",
		})
	}
	return &cli.Command{
		Name:      op,
		Usage:     usage,
		ArgsUsage: "[component]",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool(allFlag) {
				return terraformRunAll(ctx, cmd, op)
			}
			return terraformRun(ctx, cmd, op)
		},
	}
}

func terraformRun(ctx context.Context, cmd *cli.Command, op string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	name, component, err := p.Meta.TerraformChosen(cmd.Args().First())
	if err != nil {
		return err
	}
	return terraformComponent(ctx, cmd, op, p.Meta, p.Config, name, component, p.Env)
}

// terraformRunAll runs the operation for every terraform component under
// the repo root. Global components (shared infrastructure) go first so the
// per-app components can depend on them.
func terraformRunAll(ctx context.Context, cmd *cli.Command, op string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	root, err := meta.RepoRoot(wd)
	if err != nil {
		return err
	}
	metas, err := meta.Scan(root)
	if err != nil {
		return err
	}
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	target := envf.Target(cmd.String(targetFlag), cfg.Target)

	type ref struct {
		m    *meta.Meta
		name string
		c    meta.TerraformComponent
	}
	var globals, apps []ref
	for _, m := range metas {
		names := make([]string, 0, len(m.Terraform))
		for name := range m.Terraform {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c := m.Terraform[name]
			if c.Global {
				globals = append(globals, ref{m, name, c})
			} else {
				apps = append(apps, ref{m, name, c})
			}
		}
	}
	if len(globals)+len(apps) == 0 {
		fmt.Println("No terraform components found.")
		return nil
	}

	for _, r := range append(globals, apps...) {
		env, err := envf.Load(r.m.Dir, target)
		if err != nil {
			return err
		}
		tui.Status("terraform", "%s %s/%s", op, r.m.Name, r.name)
		if err := terraformComponent(ctx, cmd, op, r.m, cfg, r.name, r.c, env); err != nil {
			return fmt.Errorf("%s %s/%s: %w", op, r.m.Name, r.name, err)
		}
	}
	return nil
}

func terraformComponent(ctx context.Context, cmd *cli.Command, op string, m *meta.Meta, cfg *config.Global, name string, component meta.TerraformComponent, env map[string]string) error {
	dir := filepath.Join(m.Dir, component.Path)

	// Keep the component's variable declarations in sync with the env
	// before anything that reads the configuration.
	if op == "plan" || op == "apply" {
		if err := spliceComponentVariables(dir, env); err != nil {
			return err
		}
	}

	// Mutating operations hold the component's remote-state lock.
	if op == "apply" || op == "destroy" {
		if lock := stateLock(cfg); lock != nil {
			id := lockID()
			if err := lock.Acquire(ctx, name, id); err != nil {
				return err
			}
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx), name); err != nil {
					tui.Warn("release lock for %q: %v", name, err)
				}
			}()
		}
	}

	args := []string{"-chdir=" + dir, op}
	if (op == "apply" || op == "destroy") && !cmd.Bool(reviewFlag) {
		args = append(args, "-auto-approve")
	}

	return shell.New("terraform", args...).
		Env(tf.VarEnv(env)...).
		Run(ctx)
}

// spliceComponentVariables rewrites the managed variables block in the
// component's variables.tf from the loaded env keys.
func spliceComponentVariables(dir string, env map[string]string) error {
	path := filepath.Join(dir, "variables.tf")
	src, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", path, err)
	}

	out, err := tf.SpliceVariables(string(src), tf.VariableKeys(env))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if out == string(src) {
		return nil
	}
	tui.Status("splicing", "%s (%d variables)", path, len(tf.VariableKeys(env)))
	return os.WriteFile(path, []byte(out), 0o644)
}

// stateLock builds the remote-state lock from the environment or the user
// config, or nil when no bucket is configured anywhere.
func stateLock(cfg *config.Global) *tf.Lock {
	bucket := os.Getenv(stateBucketEnv)
	if bucket == "" {
		bucket = cfg.StateBucket
	}
	if bucket == "" {
		return nil
	}
	prefix := os.Getenv(statePrefixEnv)
	if prefix == "" {
		prefix = cfg.StatePrefix
	}
	return tf.NewLock(bucket, prefix)
}

func lockID() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s/%s", host, xid.New())
}

func terraformUnlockCommand() *cli.Command {
	return &cli.Command{
		Name:      "unlock",
		Usage:     "Force-clear a component's remote-state lock",
		ArgsUsage: "[component]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			name, _, err := p.Meta.TerraformChosen(cmd.Args().First())
			if err != nil {
				return err
			}
			lock := stateLock(p.Config)
			if lock == nil {
				return fmt.Errorf("no state bucket configured (%s or config state_bucket), nothing to unlock", stateBucketEnv)
			}

			holder, err := lock.Holder(ctx, name)
			if err != nil {
				return err
			}
			if holder == "" {
				fmt.Printf("Component %q is not locked.\n", name)
				return nil
			}
			if err := lock.Release(ctx, name); err != nil {
				return err
			}
			tui.Status("unlocked", "%s (was held by %s)", name, holder)
			return nil
		},
	}
}
