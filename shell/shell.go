// Package shell builds and executes the external command lines that every
// component dispatches to (docker, terraform, hasura, gcloud, git, ssh,
// tmux, vault).
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ExitError reports a subprocess that exited with a non-zero status code.
// main unwraps it so `run` exits with the same code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Command is a subprocess invocation under construction.
type Command struct {
	prog  string
	args  []string
	dir   string
	env   []string
	stdin io.Reader
	quiet bool
}

func New(prog string, args ...string) *Command {
	return &Command{prog: prog, args: args}
}

// Arg appends additional arguments.
func (c *Command) Arg(args ...string) *Command {
	c.args = append(c.args, args...)
	return c
}

// In sets the working directory.
func (c *Command) In(dir string) *Command {
	c.dir = dir
	return c
}

// Env appends KEY=VALUE pairs on top of the inherited environment.
func (c *Command) Env(env ...string) *Command {
	c.env = append(c.env, env...)
	return c
}

// Stdin connects r to the subprocess stdin instead of the terminal.
func (c *Command) Stdin(r io.Reader) *Command {
	c.stdin = r
	return c
}

// Quiet suppresses the echoed command line.
func (c *Command) Quiet() *Command {
	c.quiet = true
	return c
}

func (c *Command) String() string {
	return strings.Join(append([]string{c.prog}, c.args...), " ")
}

// Args returns a copy of the accumulated arguments, without the program
// name. Use this instead of re-splitting String() when an argument may
// contain whitespace.
func (c *Command) Args() []string {
	return append([]string(nil), c.args...)
}

func (c *Command) build(ctx context.Context) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.prog, c.args...)
	cmd.Dir = c.dir
	if len(c.env) > 0 {
		cmd.Env = append(os.Environ(), c.env...)
	}
	return cmd
}

// Run executes the command with stdio connected to the terminal. A non-zero
// exit is returned as *ExitError so the status code can propagate.
func (c *Command) Run(ctx context.Context) error {
	if !c.quiet {
		fmt.Printf("+ %s\n", c.String())
	}
	cmd := c.build(ctx)
	if c.stdin != nil {
		cmd.Stdin = c.stdin
	} else {
		cmd.Stdin = os.Stdin
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if wrapped := wrap(err); wrapped != err {
		return wrapped
	}
	return fmt.Errorf("%s: %w", c.prog, err)
}

// Capture executes the command and returns its trimmed stdout. Stderr is
// collected and included in the error on failure.
func (c *Command) Capture(ctx context.Context) (string, error) {
	cmd := c.build(ctx)
	if c.stdin != nil {
		cmd.Stdin = c.stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s: %w: %s", c.prog, wrap(err), msg)
		}
		return "", fmt.Errorf("%s: %w", c.prog, wrap(err))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// wrap converts exec's exit error into our ExitError. Other failures (bad
// binary, ctx cancellation) pass through untouched; the callers add the
// program-name prefix, exactly once.
func wrap(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode()}
	}
	return err
}

// Exists reports whether the named program is available on PATH.
func Exists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
