package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/redwren/redwrenlib/service"
)

var serveFlags struct {
	url         string
	subject     string
	metricsAddr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve match requests over NATS",
	Long: `Load the gesture file and answer match requests on the configured NATS
subject until interrupted. Requests and replies are JSON; see the service
package for the wire format.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("url") {
			cfg.Service.URL = serveFlags.url
		}
		if cmd.Flags().Changed("subject") {
			cfg.Service.Subject = serveFlags.subject
		}
		if cmd.Flags().Changed("metrics-addr") {
			cfg.Service.MetricsAddr = serveFlags.metricsAddr
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := service.New(cfg.Service, newStore(), service.WithLogger(slog.Default()))
		if err := svc.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		slog.Info("shutting down")
		if err := svc.Stop(10 * time.Second); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.url, "url", "", "NATS server URL")
	serveCmd.Flags().StringVar(&serveFlags.subject, "subject", "", "request subject")
	serveCmd.Flags().StringVar(&serveFlags.metricsAddr, "metrics-addr", "", "address for the /metrics listener")
	rootCmd.AddCommand(serveCmd)
}
