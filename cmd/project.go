package cmd

import (
	"os"

	"github.com/ghostmind-dev/run-sub002/config"
	"github.com/ghostmind-dev/run-sub002/envf"
	"github.com/ghostmind-dev/run-sub002/meta"
	"github.com/ghostmind-dev/run-sub002/tui"
	"github.com/urfave/cli/v3"
)

// project is the resolved working context every component starts from: the
// nearest descriptor plus the layered env files next to it.
type project struct {
	Meta   *meta.Meta
	Config *config.Global
	Target string
	Env    map[string]string
}

// loadProject locates the nearest meta.json, loads the env layers for the
// active target, and exports them to the process so every subprocess
// inherits them.
func loadProject(cmd *cli.Command) (*project, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	m, err := meta.Find(wd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		return nil, err
	}

	target := envf.Target(cmd.String(targetFlag), cfg.Target)
	vars, err := envf.Load(m.Dir, target)
	if err != nil {
		return nil, err
	}
	envf.Apply(vars, false)
	os.Setenv("RUN_PROJECT_ROOT", m.Dir)
	os.Setenv("RUN_TARGET", target)

	if cmd.Bool(debugFlag) {
		tui.Debug("project %s (%s) target=%s env=%d vars", m.Name, m.Dir, target, len(vars))
	}

	return &project{Meta: m, Config: cfg, Target: target, Env: vars}, nil
}

// EnvPairs renders the loaded env as KEY=VALUE pairs for subprocesses.
func (p *project) EnvPairs() []string {
	return envf.Render(p.Env)
}

// ComposeProject is the docker compose project name: the descriptor name
// suffixed with the target so parallel targets don't collide.
func (p *project) ComposeProject() string {
	return p.Meta.Name + "-" + p.Target
}
