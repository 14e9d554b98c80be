package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/kriya/internal/db"
	"github.com/zulandar/kriya/internal/digest"
	"github.com/zulandar/kriya/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Kriya HTTP server",
		Long: `Migrates the database, then serves the chat, bus, tasks, overview, and
bridge endpoints until interrupted. When digest.schedule is set, a backlog
digest is posted through the configured notifiers on that schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	if err := db.AutoMigrate(a.db); err != nil {
		return err
	}
	if port > 0 {
		a.cfg.Server.Port = port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if schedule := a.cfg.Digest.Schedule; schedule != "" {
		if err := digest.ValidateSchedule(schedule); err != nil {
			return err
		}
		if a.notifier.Len() == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: digest.schedule is set but no notifier is configured")
		} else {
			d := digest.New(a.queue, a.bus, a.notifier, a.cfg.Digest.StaleAfter, a.log.Named("digest"))
			if err := d.Start(ctx, schedule); err != nil {
				return err
			}
		}
	}

	srv := server.New(server.Deps{
		Store:    a.store,
		Agents:   a.agents,
		Bus:      a.bus,
		Bridge:   a.queue,
		Overview: a.overview,
		Relay:    a.relay,
		Logger:   a.log.Named("server"),
	}, server.Options{
		UserHeader:   a.cfg.Server.UserHeader,
		DefaultUser:  a.cfg.Server.DefaultUser,
		BridgeSecret: a.cfg.Bridge.Secret,
	})
	return server.Start(ctx, srv, server.StartOpts{
		Port:            a.cfg.Server.Port,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		Out:             cmd.OutOrStdout(),
	})
}
