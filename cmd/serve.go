package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/mixtape-app/mixtape/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	addr := cmd.String("addr")
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	}

	app, err := r.bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	srv := server.New(app.engine, app.playlists, app.users, app.jobs, app.notifications, app.fanout, r.logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx, addr)
}
