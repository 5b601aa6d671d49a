// Package image implements the multi-architecture image registration
// workflow: per-arch buildx builds, combined manifest assembly and push,
// and optional delegation of the builds to Cloud Build.
package image

import (
	"context"
	"fmt"
	"strings"

	"github.com/ghostmind-dev/run-sub002/shell"
	"github.com/ghostmind-dev/run-sub002/tui"
)

const (
	builderName = "run-multiarch"

	DefaultTag = "latest"
)

// Options describes one registration run.
type Options struct {
	Image      string   // repository ref without tag
	Tag        string   // defaults to DefaultTag
	Context    string   // build context directory
	Dockerfile string   // optional explicit Dockerfile path
	Archs      []string // e.g. amd64, arm64
	BuildArgs  []string // KEY=VALUE pairs passed as --build-arg
	NoCache    bool
	Cloud      bool // delegate arch builds to Cloud Build
}

// Registrar sequences the external commands of a registration. The exec
// hooks are swappable for tests.
type Registrar struct {
	run     func(ctx context.Context, c *shell.Command) error
	capture func(ctx context.Context, c *shell.Command) (string, error)
}

func NewRegistrar() *Registrar {
	return &Registrar{
		run:     func(ctx context.Context, c *shell.Command) error { return c.Run(ctx) },
		capture: func(ctx context.Context, c *shell.Command) (string, error) { return c.Capture(ctx) },
	}
}

// Ref returns the tagged ref for the combined manifest.
func (o Options) Ref() string {
	tag := o.Tag
	if tag == "" {
		tag = DefaultTag
	}
	return o.Image + ":" + tag
}

// ArchRef returns the per-architecture ref (tag suffixed with the arch).
func (o Options) ArchRef(arch string) string {
	return o.Ref() + "-" + arch
}

// Register builds and pushes one image per requested architecture, then
// assembles and pushes the combined manifest. With Cloud set, the arch
// builds run on Cloud Build instead of the local daemon.
func (r *Registrar) Register(ctx context.Context, opts Options) error {
	if opts.Image == "" {
		return fmt.Errorf("no image ref configured")
	}
	if len(opts.Archs) == 0 {
		opts.Archs = []string{"amd64", "arm64"}
	}

	if opts.Cloud {
		for _, arch := range opts.Archs {
			if err := r.cloudBuild(ctx, opts, arch); err != nil {
				return fmt.Errorf("cloud build %s: %w", arch, err)
			}
		}
	} else {
		if err := r.ensureBuilder(ctx); err != nil {
			return err
		}
		for _, arch := range opts.Archs {
			tui.Status("building", "%s (linux/%s)", opts.ArchRef(arch), arch)
			if err := r.run(ctx, buildxCommand(opts, arch)); err != nil {
				return fmt.Errorf("build %s: %w", arch, err)
			}
		}
	}

	return r.pushManifest(ctx, opts)
}

// ensureBuilder creates the buildx builder on first use. An existing
// builder is reused; any other inspect failure bubbles up from create.
func (r *Registrar) ensureBuilder(ctx context.Context) error {
	if _, err := r.capture(ctx, shell.New("docker", "buildx", "inspect", builderName)); err == nil {
		return r.run(ctx, shell.New("docker", "buildx", "use", builderName).Quiet())
	}

	if err := r.run(ctx, shell.New("docker", "buildx", "create", "--name", builderName, "--use")); err != nil {
		return fmt.Errorf("create buildx builder: %w", err)
	}
	return r.run(ctx, shell.New("docker", "buildx", "inspect", "--bootstrap"))
}

func buildxCommand(opts Options, arch string) *shell.Command {
	args := []string{
		"buildx", "build",
		"--platform", "linux/" + arch,
		"-t", opts.ArchRef(arch),
		"--push",
	}
	if opts.Dockerfile != "" {
		args = append(args, "-f", opts.Dockerfile)
	}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	for _, ba := range opts.BuildArgs {
		args = append(args, "--build-arg", ba)
	}
	ctxDir := opts.Context
	if ctxDir == "" {
		ctxDir = "."
	}
	args = append(args, ctxDir)
	return shell.New("docker", args...)
}

// pushManifest assembles the combined manifest from the per-arch refs,
// annotates each entry, and pushes. When a manifest of the same name
// already exists locally, create is retried with --amend.
func (r *Registrar) pushManifest(ctx context.Context, opts Options) error {
	ref := opts.Ref()
	createArgs := append([]string{"manifest", "create", ref}, archRefs(opts)...)

	tui.Status("manifest", "%s", ref)
	if _, err := r.capture(ctx, shell.New("docker", createArgs...)); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("manifest create: %w", err)
		}
		amendArgs := append([]string{"manifest", "create", "--amend", ref}, archRefs(opts)...)
		if _, err := r.capture(ctx, shell.New("docker", amendArgs...)); err != nil {
			return fmt.Errorf("manifest amend: %w", err)
		}
	}

	for _, arch := range opts.Archs {
		annotate := shell.New("docker", "manifest", "annotate",
			"--os", "linux", "--arch", arch, ref, opts.ArchRef(arch))
		if arch == "arm64" {
			annotate.Arg("--variant", "v8")
		}
		if _, err := r.capture(ctx, annotate); err != nil {
			return fmt.Errorf("manifest annotate %s: %w", arch, err)
		}
	}

	if err := r.run(ctx, shell.New("docker", "manifest", "push", "--purge", ref)); err != nil {
		return fmt.Errorf("manifest push: %w", err)
	}
	tui.Status("pushed", "%s", ref)
	return nil
}

func archRefs(opts Options) []string {
	refs := make([]string, 0, len(opts.Archs))
	for _, arch := range opts.Archs {
		refs = append(refs, opts.ArchRef(arch))
	}
	return refs
}
