// Command autostart-tui follows a proxy's autostart of a project in the
// terminal: it registers the project, starts it and shows each service's
// progress until the project is up.
package main

import (
	"context"
	"os"

	"github.com/riptide-proxy/autostart-tui/internal/ctxlog"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	if err := newRootCmd().Run(ctx, os.Args); err != nil {
		ctxlog.Error(ctx, "command failed", "error", err)
		cancel()
		os.Exit(1)
	}
}
