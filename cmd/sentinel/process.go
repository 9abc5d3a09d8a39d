package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/huh"
	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/syncsentinel/syncsentinel/internal/daemon"
	"github.com/syncsentinel/syncsentinel/internal/pipeline"
	"github.com/syncsentinel/syncsentinel/internal/ui"
)

var processCmd = &cobra.Command{
	Use:     "process [log...]",
	GroupID: "run",
	Short:   "Process existing sync logs",
	Long: `Process sync logs that already exist, once.

With log files as arguments, each is processed in the order given. Without
arguments the logs in watch.path are listed newest first and, on a terminal,
offered for selection. Selected logs are processed oldest first so that the
newest run ends up at the top of prepending sinks.

Examples:
  sentinel process "D:\Sync\Logs\Nightly 2025-09-13.log"
  sentinel process                 # Pick from watch.path
  sentinel process --all           # Every log in watch.path
  sentinel process --latest 3      # The three newest logs`,
	Run: runProcess,
}

func init() {
	processCmd.Flags().Bool("all", false, "Process every log in watch.path")
	processCmd.Flags().Int("latest", 0, "Process the N newest logs in watch.path")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) {
	paths := args
	if len(paths) == 0 {
		paths = pickLogs(cmd)
	}
	if len(paths) == 0 {
		fmt.Println("Nothing to process.")
		return
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// The progress bar owns the terminal for batches; per-event lines would
	// tear it.
	showBar := len(paths) > 1 && term.IsTerminal(int(os.Stderr.Fd()))
	var out io.Writer = os.Stdout
	if showBar {
		out = nil
	}

	a, err := newApp(ctx, cfg, out)
	if err != nil {
		fatalf("%v", err)
	}
	defer a.Close()

	var bar *pb.ProgressBar
	if showBar {
		bar = pb.New(len(paths)).SetWriter(os.Stderr)
		bar.Start()
	}

	var results []*pipeline.Result
	failed := 0
	for _, p := range paths {
		res, err := a.pipe.Process(ctx, p)
		if bar != nil {
			bar.Increment()
		}
		if err != nil {
			failed++
			if bar == nil {
				continue
			}
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", ui.RenderFail("✗"), filepath.Base(p), err)
			continue
		}
		results = append(results, res)
	}
	if bar != nil {
		bar.Finish()
	}

	fmt.Println()
	for _, r := range results {
		fmt.Println(summarize(r))
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%s %d of %d logs could not be read\n", ui.RenderWarn("⚠"), failed, len(paths))
		os.Exit(1)
	}
}

// summarize renders one line per processed log.
func summarize(r *pipeline.Result) string {
	failed := r.FailedSinks()
	line := ui.Status(len(failed) == 0, "%s: %d files (%s)", filepath.Base(r.Path), len(r.Records), r.Date())
	for _, f := range failed {
		line += fmt.Sprintf("\n    %s %s: %v", ui.RenderFail("✗"), f.Sink, f.Err)
	}
	return line
}

// pickLogs chooses logs from watch.path according to the flags, or
// interactively.
func pickLogs(cmd *cobra.Command) []string {
	if cfg.Watch.Path == "" {
		fatalf("no log files given and watch.path is not set")
	}
	logs, err := daemon.ListLogs(cfg.Watch.Path)
	if err != nil {
		fatalf("%v", err)
	}
	if len(logs) == 0 {
		return nil
	}

	all, _ := cmd.Flags().GetBool("all")
	latest, _ := cmd.Flags().GetInt("latest")

	var chosen []string
	switch {
	case all:
		chosen = logPaths(logs)
	case latest > 0:
		chosen = logPaths(logs[:min(latest, len(logs))])
	case term.IsTerminal(int(os.Stdin.Fd())):
		chosen = selectLogs(logs)
	default:
		fmt.Println(ui.Table([]string{"Log", "Modified", "Size"}, logRows(logs)))
		fatalf("not a terminal; pass log files, --all or --latest N")
	}

	return oldestFirst(logs, chosen)
}

func selectLogs(logs []daemon.LogFile) []string {
	options := make([]huh.Option[string], 0, len(logs))
	for _, l := range logs {
		label := fmt.Sprintf("%s  %s", filepath.Base(l.Path), ui.RenderMuted(humanize.Time(l.ModTime)))
		options = append(options, huh.NewOption(label, l.Path))
	}

	var selected []string
	form := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title("Select logs to process").
			Description("Space to toggle, enter to confirm").
			Options(options...).
			Value(&selected),
	))
	if err := form.Run(); err != nil {
		fatalf("selection cancelled: %v", err)
	}
	return selected
}

func logPaths(logs []daemon.LogFile) []string {
	out := make([]string, len(logs))
	for i, l := range logs {
		out[i] = l.Path
	}
	return out
}

func logRows(logs []daemon.LogFile) [][]string {
	rows := make([][]string, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, []string{
			filepath.Base(l.Path),
			humanize.Time(l.ModTime),
			humanize.Bytes(uint64(l.Size)),
		})
	}
	return rows
}

// oldestFirst orders chosen by the reverse of the newest-first listing.
func oldestFirst(logs []daemon.LogFile, chosen []string) []string {
	var out []string
	for i := len(logs) - 1; i >= 0; i-- {
		if slices.Contains(chosen, logs[i].Path) {
			out = append(out, logs[i].Path)
		}
	}
	return out
}
