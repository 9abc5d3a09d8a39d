package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/syncsentinel/syncsentinel/internal/history"
	"github.com/syncsentinel/syncsentinel/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	GroupID: "inspect",
	Short:   "List processed sync logs",
	Long: `List the sync logs processed so far, newest first.

--since accepts a duration ("48h") or a phrase ("2 days ago", "last monday").

Examples:
  sentinel history
  sentinel history --since "3 days ago"
  sentinel history --limit 5
  sentinel history --jsonl > runs.jsonl   # Export runs with their files`,
	Run: runHistory,
}

func init() {
	historyCmd.Flags().String("since", "", "Only runs processed after this time")
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to show (0 = all)")
	historyCmd.Flags().Bool("jsonl", false, "Export runs and their files as JSON lines")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	sinceText, _ := cmd.Flags().GetString("since")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonl, _ := cmd.Flags().GetBool("jsonl")

	filter := history.ListFilter{Limit: limit}
	if sinceText != "" {
		since, err := parseSince(sinceText, time.Now())
		if err != nil {
			fatalf("%v", err)
		}
		filter.Since = since
	}

	store, err := openHistory(cfg)
	if err != nil {
		fatalf("%v", err)
	}
	defer store.Close()

	if jsonl {
		if _, err := store.Export(context.Background(), os.Stdout, filter); err != nil {
			fatalf("%v", err)
		}
		return
	}

	runs, err := store.ListRuns(context.Background(), filter)
	if err != nil {
		fatalf("%v", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}

	fmt.Print(ui.Table(
		[]string{"Processed", "Log", "Run date", "Files", "Took", "Sinks"},
		historyRows(runs),
	))
}

func historyRows(runs []history.RunSummary) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		sinks := ui.RenderPass("ok")
		if r.FailedSinks > 0 {
			sinks = ui.RenderFail(strconv.Itoa(r.FailedSinks) + " failed")
		}
		rows = append(rows, []string{
			humanize.Time(r.ProcessedAt),
			filepath.Base(r.Path),
			r.Date,
			humanize.Comma(int64(r.Records)),
			r.Duration.Round(time.Millisecond).String(),
			sinks,
		})
	}
	return rows
}

// parseSince turns a duration or a natural language phrase into a time
// before now.
func parseSince(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if d, err := time.ParseDuration(text); err == nil {
		return now.Add(-d), nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: not a time", text)
	}
	return r.Time, nil
}
