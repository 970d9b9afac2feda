package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/riptide-proxy/autostart-tui/internal/app"
	"github.com/riptide-proxy/autostart-tui/internal/client"
	"github.com/riptide-proxy/autostart-tui/internal/config"
	"github.com/riptide-proxy/autostart-tui/internal/ctxlog"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

type runOptions struct {
	headless bool
	out      io.Writer
	errOut   io.Writer
}

// startSession runs one autostart session. Tests replace it.
var startSession = runSession

// isTerminal reports whether stdout is a terminal. Tests replace it.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func runSession(ctx context.Context, cfg *config.Config, opts runOptions) error {
	headless := opts.headless || !isTerminal()

	logger, closeLog, err := sessionLogger(FsFactory(), cfg, headless, opts.errOut)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer closeLog()
	if level, ok := ctxlog.ParseLevel(cfg.Log.Level); ok {
		ctxlog.LevelVar.Set(level)
	}
	ctx = ctxlog.New(ctx, logger)

	var reload *client.HTTPClient
	if cfg.Reload.Enabled {
		pageURL := cfg.PageURL
		if pageURL == "" {
			if pageURL, err = client.DerivePageURL(cfg.URL); err != nil {
				return cli.Exit(err.Error(), exitUsage)
			}
		}
		reload = client.NewHTTPClient(pageURL, cfg.Reload.Timeout)
	}

	ws := client.NewWSClient(cfg.URL, client.WSOptions{
		PingInterval: cfg.Transport.PingInterval,
		WriteTimeout: cfg.Transport.WriteTimeout,
		Logger:       logger,
	})
	m := app.New(ws, reload, app.Options{
		Project:         cfg.Project,
		Services:        cfg.Services,
		ExitAfterReload: cfg.Reload.Exit,
		Headless:        headless,
		Animate:         cfg.UI.Animate && !headless,
		Logger:          logger,
	})

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	switch {
	case headless:
		progOpts = append(progOpts, tea.WithInput(nil), tea.WithoutRenderer())
	case cfg.UI.AltScreen:
		progOpts = append(progOpts, tea.WithAltScreen())
	}

	ctxlog.Info(ctx, "starting session", "url", cfg.URL, "project", cfg.Project, "headless", headless)
	final, err := tea.NewProgram(m, progOpts...).Run()
	if err != nil && !errors.Is(err, tea.ErrInterrupted) {
		return fmt.Errorf("run ui: %w", err)
	}
	if fm, ok := final.(app.Model); ok {
		m = fm
	}

	res := m.Result()
	report(opts.out, res)
	if errors.Is(err, tea.ErrInterrupted) {
		return cli.Exit("interrupted", exitFailed)
	}
	if !res.OK() {
		return cli.Exit(failure(res), exitFailed)
	}
	return nil
}

// sessionLogger picks where logs go: stderr when headless, the configured
// log file while the TUI owns the terminal, nowhere otherwise.
func sessionLogger(fsys afero.Fs, cfg *config.Config, headless bool, errOut io.Writer) (*slog.Logger, func(), error) {
	if headless {
		if errOut == nil {
			errOut = os.Stderr
		}
		return ctxlog.NewLogger(errOut), func() {}, nil
	}
	if cfg.Log.File == "" {
		return ctxlog.DiscardLogger, func() {}, nil
	}
	f, err := fsys.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return ctxlog.NewLogger(f), func() { f.Close() }, nil
}

// report prints the one-line outcome and, if the channel closed early, the
// diagnostic.
func report(w io.Writer, res app.Result) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "%s: %s\n", res.Project, res.Phase)
	if res.Diagnostic != "" {
		fmt.Fprintln(w, res.Diagnostic)
	}
	if len(res.Failed) > 0 {
		fmt.Fprintf(w, "failed services: %s\n", strings.Join(res.Failed, ", "))
	}
	if r := res.Reload; r != nil && r.URL != "" {
		if r.Err != nil {
			fmt.Fprintf(w, "reload %s failed: %v\n", r.URL, r.Err)
		} else {
			fmt.Fprintf(w, "reloaded %s (%d)\n", r.URL, r.StatusCode)
		}
	}
}

func failure(res app.Result) string {
	switch {
	case len(res.Failed) > 0:
		return fmt.Sprintf("autostart of %s failed", res.Project)
	case res.Diagnostic != "":
		return res.Diagnostic
	default:
		return fmt.Sprintf("autostart of %s did not complete", res.Project)
	}
}
