package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/syncsentinel/syncsentinel/internal/history"
	"github.com/syncsentinel/syncsentinel/internal/ui"
)

var copyCmd = &cobra.Command{
	Use:     "copy",
	GroupID: "inspect",
	Short:   "Copy the files of the last processed log to the clipboard",
	Long: `Copy the records of the most recently processed log to the clipboard as
tab-separated rows (Date, Time, Type, Section, File Name), ready to paste into
a spreadsheet.

Examples:
  sentinel copy            # To the clipboard
  sentinel copy --stdout   # Print instead`,
	Run: runCopy,
}

func init() {
	copyCmd.Flags().Bool("stdout", false, "Print the rows instead of copying them")
	rootCmd.AddCommand(copyCmd)
}

func runCopy(cmd *cobra.Command, args []string) {
	toStdout, _ := cmd.Flags().GetBool("stdout")

	store, err := openHistory(cfg)
	if err != nil {
		fatalf("%v", err)
	}
	defer store.Close()

	last, err := store.LastRun(context.Background())
	if errors.Is(err, history.ErrNoRuns) {
		fmt.Printf("%s No log has been processed yet\n", ui.RenderWarn("⚠"))
		return
	}
	if err != nil {
		fatalf("%v", err)
	}

	tsv := last.TSV()
	if tsv == "" {
		fmt.Printf("%s The last log (%s) recorded no files\n", ui.RenderWarn("⚠"), last.Path)
		return
	}

	if toStdout {
		fmt.Print(tsv)
		return
	}

	if clipboard.Unsupported {
		fatalf("no clipboard available; use --stdout")
	}
	if err := clipboard.WriteAll(tsv); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to copy to clipboard: %v (try --stdout)\n", err)
		os.Exit(1)
	}
	fmt.Println(ui.Status(true, "Copied %d files from %s to the clipboard", len(last.Records), last.Date()))
}
