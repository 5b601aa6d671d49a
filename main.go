package main

import (
	"context"
	"errors"
	"os"

	"github.com/ghostmind-dev/run-sub002/cmd"
	"github.com/ghostmind-dev/run-sub002/shell"
	"github.com/ghostmind-dev/run-sub002/tui"
)

func main() {
	app := cmd.RootCommand()

	if err := app.Run(context.Background(), os.Args); err != nil {
		var exitErr *shell.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		tui.Error("%v", err)
		os.Exit(1)
	}
}
