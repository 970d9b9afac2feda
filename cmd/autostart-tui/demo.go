package main

import (
	"context"
	"fmt"
	"time"

	"github.com/riptide-proxy/autostart-tui/internal/config"
	"github.com/riptide-proxy/autostart-tui/internal/ctxlog"
	"github.com/riptide-proxy/autostart-tui/internal/mock"
	"github.com/urfave/cli/v3"
)

const (
	demoProject      = "demo"
	demoServicesFlag = "demo-service"
	demoFailFlag     = "fail"
	demoIntervalFlag = "interval"
	demoAddrFlag     = "addr"
)

func demoCmd() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "run against a local scripted proxy",
		Description: `Starts a local stand-in for the proxy that plays a scripted autostart of
the "demo" project and follows it like a real one.`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  demoServicesFlag,
				Usage: "services of the demo project",
				Value: []string{"postgres", "redis", "api", "web"},
			},
			&cli.StringFlag{
				Name:  demoFailFlag,
				Usage: "service whose start fails",
			},
			&cli.DurationFlag{
				Name:  demoIntervalFlag,
				Usage: "delay between scripted frames",
				Value: 400 * time.Millisecond,
			},
			&cli.StringFlag{
				Name:  demoAddrFlag,
				Usage: "listen address of the scripted proxy",
				Value: "127.0.0.1:0",
			},
		},
		Action: demoAction,
	}
}

func demoAction(ctx context.Context, cmd *cli.Command) error {
	services := cmd.StringSlice(demoServicesFlag)
	script := mock.DemoScript(services, cmd.Duration(demoIntervalFlag), cmd.String(demoFailFlag))

	// The TUI owns the terminal unless headless.
	logger := ctxlog.DiscardLogger
	if cmd.Bool(headlessFlag) {
		logger = ctxlog.Logger(ctx)
	}
	proxy := mock.NewServer(demoProject, script, logger)
	addr, shutdown, err := mock.ListenAndServe(cmd.String(demoAddrFlag), proxy)
	if err != nil {
		return cli.Exit(fmt.Sprintf("start demo proxy: %v", err), exitUsage)
	}
	defer shutdown()

	cfg := config.Default()
	applyFlags(cfg, cmd)
	cfg.URL = fmt.Sprintf("ws://%s%s", addr, mock.Path)
	cfg.Project = demoProject
	cfg.Services = services
	cfg.PageURL = ""
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	return startSession(ctx, cfg, sessionOptions(cmd))
}
