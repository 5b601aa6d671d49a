package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	ctr "github.com/ghostmind-dev/run-sub002/container"
	"github.com/ghostmind-dev/run-sub002/image"
	"github.com/ghostmind-dev/run-sub002/meta"
	"github.com/ghostmind-dev/run-sub002/shell"
	"github.com/urfave/cli/v3"
)

const (
	tagFlag     = "tag"
	noCacheFlag = "no-cache"
	amd64Flag   = "amd64"
	arm64Flag   = "arm64"
	cloudFlag   = "cloud"
)

func DockerCommand() *cli.Command {
	return &cli.Command{
		Name:  "docker",
		Usage: "Build, register, and compose container images",
		Commands: []*cli.Command{
			dockerBuildCommand(),
			dockerRegisterCommand(),
			dockerPullCommand(),
			composeCommand(),
		},
	}
}

func dockerBuildCommand() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Build a single-arch image locally",
		ArgsUsage: "[component]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: tagFlag, Usage: "Image tag (defaults to latest, or the target for env-based images)"},
			&cli.BoolFlag{Name: noCacheFlag, Usage: "Build without cache"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			target, opts, err := buildOptions(p, cmd)
			if err != nil {
				return err
			}

			args := []string{"build", "-t", opts.Ref()}
			if opts.Dockerfile != "" {
				args = append(args, "-f", opts.Dockerfile)
			}
			if opts.NoCache {
				args = append(args, "--no-cache")
			}
			for _, ba := range opts.BuildArgs {
				args = append(args, "--build-arg", ba)
			}
			args = append(args, opts.Context)

			return shell.New("docker", args...).In(buildRoot(p.Meta, target)).Run(ctx)
		},
	}
}

func dockerRegisterCommand() *cli.Command {
	return &cli.Command{
		Name:      "register",
		Usage:     "Build and push a multi-arch image with a combined manifest",
		ArgsUsage: "[component]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: tagFlag, Usage: "Image tag (defaults to latest, or the target for env-based images)"},
			&cli.BoolFlag{Name: noCacheFlag, Usage: "Build without cache"},
			&cli.BoolFlag{Name: amd64Flag, Usage: "Build linux/amd64 only"},
			&cli.BoolFlag{Name: arm64Flag, Usage: "Build linux/arm64 only"},
			&cli.BoolFlag{Name: cloudFlag, Usage: "Delegate the arch builds to Cloud Build"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			target, opts, err := buildOptions(p, cmd)
			if err != nil {
				return err
			}
			opts.Archs = requestedArchs(cmd)
			opts.Cloud = cmd.Bool(cloudFlag)
			opts.Context = filepath.Join(buildRoot(p.Meta, target), opts.Context)

			return image.NewRegistrar().Register(ctx, opts)
		},
	}
}

func dockerPullCommand() *cli.Command {
	return &cli.Command{
		Name:      "pull",
		Usage:     "Pull the component's image unless it is already present",
		ArgsUsage: "[component]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: tagFlag, Usage: "Image tag (defaults to latest, or the target for env-based images)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			_, opts, err := buildOptions(p, cmd)
			if err != nil {
				return err
			}

			client, err := ctr.NewClient()
			if err != nil {
				return err
			}
			defer client.Close()
			return client.EnsureImage(ctx, opts.Ref(), false)
		},
	}
}

// buildOptions translates the meta docker target plus CLI flags into image
// build options. Build args named in the descriptor are resolved from the
// loaded env.
func buildOptions(p *project, cmd *cli.Command) (meta.DockerBuild, image.Options, error) {
	target, err := p.Meta.DockerTarget(cmd.Args().First())
	if err != nil {
		return meta.DockerBuild{}, image.Options{}, err
	}

	tag := cmd.String(tagFlag)
	if tag == "" && target.EnvBased {
		tag = p.Target
	}

	var buildArgs []string
	for _, key := range target.BuildArgs {
		val, ok := p.Env[key]
		if !ok {
			return meta.DockerBuild{}, image.Options{}, fmt.Errorf("build arg %q not present in the loaded env", key)
		}
		buildArgs = append(buildArgs, key+"="+val)
	}

	ctxDir := target.Context
	if ctxDir == "" {
		ctxDir = "."
	}

	return target, image.Options{
		Image:      target.Image,
		Tag:        tag,
		Context:    ctxDir,
		Dockerfile: target.Dockerfile,
		BuildArgs:  buildArgs,
		NoCache:    cmd.Bool(noCacheFlag),
	}, nil
}

func buildRoot(m *meta.Meta, target meta.DockerBuild) string {
	return filepath.Join(m.Dir, target.Root)
}

// requestedArchs maps the arch flags to the build list; neither flag means
// both architectures.
func requestedArchs(cmd *cli.Command) []string {
	var archs []string
	if cmd.Bool(amd64Flag) {
		archs = append(archs, "amd64")
	}
	if cmd.Bool(arm64Flag) {
		archs = append(archs, "arm64")
	}
	if len(archs) == 0 {
		archs = []string{"amd64", "arm64"}
	}
	return archs
}
