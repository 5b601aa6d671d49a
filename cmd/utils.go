package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ghostmind-dev/run-sub002/config"
	"github.com/ghostmind-dev/run-sub002/meta"
	"github.com/ghostmind-dev/run-sub002/shell"
	"github.com/ghostmind-dev/run-sub002/tui"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

const (
	messageFlag   = "message"
	pushFlag      = "push"
	forcePushFlag = "force-push"
	countFlag     = "count"
	templateFlag  = "template"

	templatesBaseEnv     = "RUN_TEMPLATES_URL"
	defaultTemplatesBase = "https://raw.githubusercontent.com/ghostmind-dev/templates/main"
)

func UtilsCommand() *cli.Command {
	return &cli.Command{
		Name:  "utils",
		Usage: "Everyday helpers (git, uuid, scaffolding, installs)",
		Commands: []*cli.Command{
			utilsCommitCommand(),
			utilsAmendCommand(),
			utilsUUIDCommand(),
			utilsScaffoldCommand(),
			utilsInstallCommand(),
			utilsTemplateCommand(),
		},
	}
}

func utilsCommitCommand() *cli.Command {
	return &cli.Command{
		Name:  "commit",
		Usage: "Stage everything and commit",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: messageFlag, Aliases: []string{"m"}, Usage: "Commit message"},
			&cli.BoolFlag{Name: pushFlag, Usage: "Push after committing"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := shell.New("git", "add", "-A").Run(ctx); err != nil {
				return err
			}
			msg := cmd.String(messageFlag)
			if msg == "" {
				msg = "quick commit " + time.Now().Format("2006-01-02 15:04")
			}
			if err := shell.New("git", "commit", "-m", msg).Run(ctx); err != nil {
				return err
			}
			if cmd.Bool(pushFlag) {
				return shell.New("git", "push").Run(ctx)
			}
			return nil
		},
	}
}

func utilsAmendCommand() *cli.Command {
	return &cli.Command{
		Name:  "amend",
		Usage: "Fold staged changes into the last commit",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: forcePushFlag, Usage: "Force-push (with lease) after amending"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := shell.New("git", "add", "-A").Run(ctx); err != nil {
				return err
			}
			if err := shell.New("git", "commit", "--amend", "--no-edit").Run(ctx); err != nil {
				return err
			}
			if cmd.Bool(forcePushFlag) {
				return shell.New("git", "push", "--force-with-lease").Run(ctx)
			}
			return nil
		},
	}
}

func utilsUUIDCommand() *cli.Command {
	return &cli.Command{
		Name:  "uuid",
		Usage: "Print random UUIDv4s",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: countFlag, Aliases: []string{"n"}, Value: 1, Usage: "How many to print"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			n := int(cmd.Int(countFlag))
			if n < 1 {
				n = 1
			}
			for range n {
				fmt.Println(uuid.NewString())
			}
			return nil
		},
	}
}

func utilsScaffoldCommand() *cli.Command {
	return &cli.Command{
		Name:      "scaffold",
		Usage:     "Create a meta.json for the current directory",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: templateFlag, Usage: "Template (app, infra, library); prompts when omitted"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				return fmt.Errorf("usage: run utils scaffold <name>")
			}

			template := cmd.String(templateFlag)
			if template == "" {
				var err error
				template, err = meta.PromptTemplate()
				if err != nil {
					return err
				}
				if template == "" {
					return fmt.Errorf("scaffold cancelled")
				}
			}

			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			m, err := meta.Scaffold(wd, name, template)
			if err != nil {
				return err
			}
			tui.Status("created", "%s (%s, id %s)", filepath.Join(wd, meta.FileName), m.Type, m.ID)
			return nil
		},
	}
}

func utilsInstallCommand() *cli.Command {
	return &cli.Command{
		Name:  "install",
		Usage: "Run every project's install command",
		Action: func(ctx context.Context, cmd *cli.Command) error {
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

			ran := 0
			for _, m := range metas {
				install, ok := m.Custom["install"]
				if !ok {
					continue
				}
				tui.Status("installing", "%s", m.Name)
				dir := filepath.Join(m.Dir, install.Dir)
				if err := shell.New("sh", "-c", install.Command).In(dir).Run(ctx); err != nil {
					return fmt.Errorf("install %s: %w", m.Name, err)
				}
				ran++
			}
			if ran == 0 {
				fmt.Println("No project declares a custom install command.")
			}
			return nil
		},
	}
}

func utilsTemplateCommand() *cli.Command {
	return &cli.Command{
		Name:      "template",
		Usage:     "Download a static template file into the project",
		ArgsUsage: "<name> [dest]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				return fmt.Errorf("usage: run utils template <name> [dest]")
			}
			dest := cmd.Args().Get(1)
			if dest == "" {
				dest = filepath.Base(name)
			}

			base := os.Getenv(templatesBaseEnv)
			if base == "" {
				cfg, err := config.Load(config.Path())
				if err != nil {
					return err
				}
				base = cfg.TemplatesURL
			}
			if base == "" {
				base = defaultTemplatesBase
			}
			if err := downloadTemplate(ctx, base+"/"+name, dest); err != nil {
				return err
			}
			tui.Status("downloaded", "%s -> %s", name, dest)
			return nil
		},
	}
}

// downloadTemplate fetches url into dest, refusing to clobber existing files.
func downloadTemplate(ctx context.Context, url, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("%s already exists", dest)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(dest, body, 0o644)
}
