package main

import (
	"context"
	"fmt"
	"os"

	"github.com/riptide-proxy/autostart-tui/internal/config"
	"github.com/riptide-proxy/autostart-tui/internal/ctxlog"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
)

const (
	configFlag    = "config"
	urlFlag       = "url"
	projectFlag   = "project"
	serviceFlag   = "service"
	pageURLFlag   = "page-url"
	logLevelFlag  = "log-level"
	logFileFlag   = "log-file"
	noReloadFlag  = "no-reload"
	noExitFlag    = "no-exit"
	noAnimateFlag = "no-animate"
	headlessFlag  = "headless"
	altScreenFlag = "alt-screen"

	defaultConfigFile = "autostart.yaml"

	exitFailed = 1
	exitUsage  = 2
)

// FsFactory returns the filesystem config and log files are read from and
// written to.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

func newRootCmd() *cli.Command {
	return &cli.Command{
		Name:  "autostart-tui",
		Usage: "follow a project's autostart on a riptide proxy",
		Description: `Connects to the proxy's autostart endpoint, registers the project and asks
the proxy to start it. Every service of the project gets a row showing its
current step. Once the proxy reports success the project page is requested
again, the terminal equivalent of the browser reload.`,
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Flags:     sessionFlags(),
		Action:    runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "follow an autostart (the default)",
				Action: runAction,
			},
			demoCmd(),
		},
		EnableShellCompletion: true,
	}
}

// sessionFlags are defined on the root command and inherited by every
// subcommand.
func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:      configFlag,
			Aliases:   []string{"c"},
			Usage:     "YAML config file",
			Value:     defaultConfigFile,
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:    urlFlag,
			Usage:   "autostart WebSocket URL",
			Sources: cli.EnvVars("AUTOSTART_URL"),
		},
		&cli.StringFlag{
			Name:    projectFlag,
			Aliases: []string{"p"},
			Usage:   "project to start",
			Sources: cli.EnvVars("AUTOSTART_PROJECT"),
		},
		&cli.StringSliceFlag{
			Name:    serviceFlag,
			Aliases: []string{"s"},
			Usage:   "service row to show; repeat for each service",
		},
		&cli.StringFlag{
			Name:  pageURLFlag,
			Usage: "page to reload after a successful start (default: derived from --url)",
		},
		&cli.StringFlag{
			Name:    logLevelFlag,
			Usage:   "DEBUG, INFO, WARN or ERROR",
			Sources: cli.EnvVars(ctxlog.EnvName()),
		},
		&cli.StringFlag{
			Name:      logFileFlag,
			Usage:     "write logs to this file while the TUI is shown",
			TakesFile: true,
		},
		&cli.BoolFlag{
			Name:  noReloadFlag,
			Usage: "do not reload the page after a successful start",
		},
		&cli.BoolFlag{
			Name:  noExitFlag,
			Usage: "keep the TUI open after the reload",
		},
		&cli.BoolFlag{
			Name:  noAnimateFlag,
			Usage: "draw progress bars without animation",
		},
		&cli.BoolFlag{
			Name:  headlessFlag,
			Usage: "log progress instead of drawing the TUI (the default when stdout is not a terminal)",
		},
		&cli.BoolFlag{
			Name:  altScreenFlag,
			Usage: "draw the TUI in the alternate screen",
		},
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(FsFactory(), cmd)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	return startSession(ctx, cfg, sessionOptions(cmd))
}

// loadConfig reads the config file and applies flag overrides. The default
// file may be missing; a file named with --config may not.
func loadConfig(fsys afero.Fs, cmd *cli.Command) (*config.Config, error) {
	path := cmd.String(configFlag)
	var (
		cfg *config.Config
		err error
	)
	if cmd.IsSet(configFlag) {
		cfg, err = config.Load(fsys, path)
	} else {
		cfg, err = config.LoadOrDefault(fsys, path)
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	applyFlags(cfg, cmd)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, cmd *cli.Command) {
	if cmd.IsSet(urlFlag) {
		cfg.URL = cmd.String(urlFlag)
	}
	if cmd.IsSet(projectFlag) {
		cfg.Project = cmd.String(projectFlag)
	}
	if cmd.IsSet(serviceFlag) {
		cfg.Services = cmd.StringSlice(serviceFlag)
	}
	if cmd.IsSet(pageURLFlag) {
		cfg.PageURL = cmd.String(pageURLFlag)
	}
	if cmd.IsSet(logLevelFlag) {
		cfg.Log.Level = cmd.String(logLevelFlag)
	}
	if cmd.IsSet(logFileFlag) {
		cfg.Log.File = cmd.String(logFileFlag)
	}
	if cmd.Bool(noReloadFlag) {
		cfg.Reload.Enabled = false
	}
	if cmd.Bool(noExitFlag) {
		cfg.Reload.Exit = false
	}
	if cmd.Bool(noAnimateFlag) {
		cfg.UI.Animate = false
	}
	if cmd.Bool(altScreenFlag) {
		cfg.UI.AltScreen = true
	}
}

func sessionOptions(cmd *cli.Command) runOptions {
	return runOptions{
		headless: cmd.Bool(headlessFlag),
		out:      cmd.Root().Writer,
		errOut:   cmd.Root().ErrWriter,
	}
}
