package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kerbaras/mangafetch/pkg/server"
	"github.com/spf13/cobra"
)

var addr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sources, queues and library over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr == "" {
			addr = cfg.Address
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return server.New(controller, logger).Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address, defaults to the configured address")
}
