package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/syncsentinel/syncsentinel/internal/daemon"
	"github.com/syncsentinel/syncsentinel/internal/dashboard"
	"github.com/syncsentinel/syncsentinel/internal/logging"
	"github.com/syncsentinel/syncsentinel/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "run",
	Short:   "Watch the log folder and record every new sync log",
	Long: `Watch the configured log folder (watch.path) for new FreeFileSync logs.

Each new .log or .html file is read once it has settled, reduced to the list
of created files and written to every configured sink. Logs are processed one
at a time in the order they appear.

Examples:
  sentinel watch                         # Watch watch.path
  sentinel watch --dir "D:\Sync\Logs"    # Watch another folder
  sentinel watch --poll 5s               # Scan a network share every 5s
  sentinel watch --dashboard             # Also serve the status feed`,
	Run: runWatch,
}

func init() {
	watchCmd.Flags().String("dir", "", "Log folder to watch (overrides watch.path)")
	watchCmd.Flags().Duration("poll", 0, "Scan the folder at this interval instead of using file system events")
	watchCmd.Flags().Bool("dashboard", false, "Serve the status feed (overrides dashboard.enabled)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.Watch.Path
	}
	if dir == "" {
		fatalf("no log folder configured; use --dir or 'sentinel config set watch.path <folder>'")
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		fatalf("log folder %s is not accessible", dir)
	}

	poll := cfg.Watch.PollInterval
	if cmd.Flags().Changed("poll") {
		poll, _ = cmd.Flags().GetDuration("poll")
	}
	withDashboard := cfg.Dashboard.Enabled
	if cmd.Flags().Changed("dashboard") {
		withDashboard, _ = cmd.Flags().GetBool("dashboard")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, os.Stdout)
	if err != nil {
		fatalf("%v", err)
	}
	defer a.Close()

	if withDashboard {
		server := dashboard.NewServer(&dashboard.Config{
			Addr:   cfg.Dashboard.Addr(),
			Last:   a.pipe.Last,
			Logger: logging.Component("dashboard"),
		})
		if err := server.Start(); err != nil {
			fatalf("failed to start dashboard: %v", err)
		}
		defer func() {
			if err := server.Stop(); err != nil {
				fmt.Fprintf(os.Stderr, "Error stopping dashboard: %v\n", err)
			}
		}()
		a.pipe.AddReporter(server)
		fmt.Printf("%s Dashboard on http://%s (WebSocket: ws://%s/ws)\n",
			ui.RenderAccent("●"), server.Addr(), server.Addr())
	}

	d, err := daemon.NewWithConfig(a.pipe, dir, &daemon.Config{
		SettleDelay:  cfg.Watch.SettleDelay,
		PollInterval: poll,
		Logger:       logging.Component("daemon"),
	})
	if err != nil {
		fatalf("%v", err)
	}

	mode := "file system events"
	if poll > 0 {
		mode = fmt.Sprintf("polling every %s", poll.Round(time.Millisecond))
	}
	fmt.Printf("%s Watching %s (%s)\n", ui.RenderAccent("●"), dir, mode)
	for _, b := range a.pipe.Bindings() {
		fmt.Printf("   → %s (prepend=%t, separator=%t)\n", b.Sink.Name(), b.Policy.Prepend, b.Policy.Separator)
	}
	fmt.Println(ui.RenderMuted("Press Ctrl+C to stop..."))

	if err := d.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Watcher stopped with error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nStopped.")
}
