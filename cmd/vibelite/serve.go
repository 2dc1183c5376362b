package main

import (
	"github.com/spf13/cobra"

	"github.com/vibesql/vibelite/internal/query"
	"github.com/vibesql/vibelite/internal/server"
	"github.com/vibesql/vibelite/internal/version"
)

func newServeCommand(a *app) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /v1/query over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return runServe(cmd, a)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "override server.host")
	cmd.Flags().IntVar(&port, "port", 0, "override server.port")
	return cmd
}

func runServe(cmd *cobra.Command, a *app) error {
	a.log.Info().Str("version", version.Get().Short()).Msg("starting vibelite")

	executor := query.NewExecutor(
		query.WithLogger(a.log),
		query.WithBusyTimeout(a.cfg.Database.BusyTimeout),
		query.WithMaxRows(a.cfg.Limits.MaxResultRows),
	)

	httpServer := server.NewServer(a.cfg, executor, a.log)
	if err := httpServer.Start(); err != nil {
		return err
	}

	successColor.Fprintf(cmd.OutOrStdout(), "vibelite listening on http://%s\n", httpServer.Addr())

	return httpServer.WaitForShutdown(cmd.Context())
}
