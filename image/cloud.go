package image

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ghostmind-dev/run-sub002/shell"
	"github.com/ghostmind-dev/run-sub002/tui"
	"gopkg.in/yaml.v3"
)

const (
	cloudPollInterval = 10 * time.Second
	cloudBuildTimeout = 30 * time.Minute
)

// cloudBuildSpec mirrors the cloudbuild.yaml schema for a single buildx step.
type cloudBuildSpec struct {
	Steps   []cloudBuildStep `yaml:"steps"`
	Timeout string           `yaml:"timeout"`
}

type cloudBuildStep struct {
	Name string   `yaml:"name"`
	Args []string `yaml:"args"`
}

// cloudConfig renders the Cloud Build config that reproduces the local
// buildx invocation on a cloud worker. The step args are taken from the
// built command verbatim so build-arg values with whitespace survive.
func cloudConfig(opts Options, arch string) ([]byte, error) {
	spec := cloudBuildSpec{
		Steps: []cloudBuildStep{
			{Name: "gcr.io/cloud-builders/docker", Args: buildxCommand(opts, arch).Args()},
		},
		Timeout: fmt.Sprintf("%ds", int(cloudBuildTimeout.Seconds())),
	}
	return yaml.Marshal(spec)
}

// cloudBuild submits one per-arch build to Cloud Build and polls until it
// reaches a terminal status.
func (r *Registrar) cloudBuild(ctx context.Context, opts Options, arch string) error {
	cfg, err := cloudConfig(opts, arch)
	if err != nil {
		return fmt.Errorf("render cloudbuild config: %w", err)
	}

	cfgFile, err := os.CreateTemp("", "run-cloudbuild-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(cfgFile.Name())
	if _, err := cfgFile.Write(cfg); err != nil {
		cfgFile.Close()
		return err
	}
	cfgFile.Close()

	ctxDir := opts.Context
	if ctxDir == "" {
		ctxDir = "."
	}

	tui.Status("submitting", "%s (linux/%s) to Cloud Build", opts.ArchRef(arch), arch)
	buildID, err := r.capture(ctx, shell.New("gcloud", "builds", "submit",
		"--async",
		"--config", cfgFile.Name(),
		"--format", "value(id)",
		ctxDir,
	))
	if err != nil {
		return fmt.Errorf("submit build: %w", err)
	}

	return r.waitCloudBuild(ctx, buildID)
}

// waitCloudBuild polls the build status until it reaches a terminal state.
func (r *Registrar) waitCloudBuild(ctx context.Context, buildID string) error {
	ctx, cancel := context.WithTimeout(ctx, cloudBuildTimeout)
	defer cancel()

	ticker := time.NewTicker(cloudPollInterval)
	defer ticker.Stop()

	last := "UNKNOWN"
	for {
		status, err := r.capture(ctx, shell.New("gcloud", "builds", "describe", buildID,
			"--format", "value(status)"))
		if err == nil {
			last = status
			switch status {
			case "SUCCESS":
				tui.Status("built", "cloud build %s", buildID)
				return nil
			case "FAILURE", "CANCELLED", "TIMEOUT", "INTERNAL_ERROR", "EXPIRED":
				return fmt.Errorf("cloud build %s ended with status %s", buildID, status)
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("cloud build %s: last status %s: %w", buildID, last, ctx.Err())
		case <-ticker.C:
		}
	}
}
