package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/syncsentinel/syncsentinel/internal/dashboard"
	"github.com/syncsentinel/syncsentinel/internal/history"
	"github.com/syncsentinel/syncsentinel/internal/logging"
	"github.com/syncsentinel/syncsentinel/internal/pipeline"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "inspect",
	Short:   "Serve the last recorded result over HTTP",
	Long: `Start the dashboard server without watching for logs.

The server answers with the most recent run from the history:
  /last       last result as JSON
  /last.tsv   last result as tab-separated rows
  /events     recent status events (empty unless 'watch --dashboard')
  /ws         WebSocket status feed
  /healthz    health check

To receive live events, run 'sentinel watch --dashboard' instead.

Example usage:
  sentinel dashboard                 # dashboard.host:dashboard.port
  sentinel dashboard --port 9000`,
	Run: func(cmd *cobra.Command, args []string) {
		addr := cfg.Dashboard.Addr()
		if cmd.Flags().Changed("port") {
			port, _ := cmd.Flags().GetInt("port")
			addr = fmt.Sprintf("%s:%d", cfg.Dashboard.Host, port)
		}

		store, err := openHistory(cfg)
		if err != nil {
			fatalf("%v", err)
		}
		defer store.Close()

		logger := logging.Component("dashboard")
		server := dashboard.NewServer(&dashboard.Config{
			Addr: addr,
			Last: func() *pipeline.Result {
				last, err := store.LastRun(context.Background())
				if err != nil {
					if !errors.Is(err, history.ErrNoRuns) {
						logger.Warn("failed to read history", "error", err)
					}
					return nil
				}
				return last
			},
			Logger: logger,
		})

		if err := server.Start(); err != nil {
			fatalf("failed to start dashboard: %v", err)
		}

		fmt.Printf("Dashboard server started on http://%s\n", server.Addr())
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", server.Addr())
		fmt.Printf("Health check: http://%s/healthz\n", server.Addr())
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		<-ctx.Done()

		fmt.Println("\nShutting down dashboard server...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Dashboard server stopped")
	},
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", 8080, "Port to listen on (overrides dashboard.port)")
	rootCmd.AddCommand(dashboardCmd)
}
