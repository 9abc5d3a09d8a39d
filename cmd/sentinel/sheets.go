package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/syncsentinel/syncsentinel/internal/sink/sheets"
	"github.com/syncsentinel/syncsentinel/internal/ui"
)

var sheetsCmd = &cobra.Command{
	Use:     "sheets",
	GroupID: "setup",
	Short:   "Inspect the Google Sheets target",
	Long: `Inspect the spreadsheet configured in sheets.target, or one given as an
argument. The target may be a spreadsheet ID or a sheet URL; a #gid=N or
#<sheet name> fragment selects the sheet.`,
}

var sheetsListCmd = &cobra.Command{
	Use:   "list [url-or-id]",
	Short: "List the sheets of the spreadsheet",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := connectSheets(args)

		infos, err := s.ListSheets(context.Background())
		if err != nil {
			fatalf("%v", err)
		}

		rows := make([][]string, 0, len(infos))
		for _, info := range infos {
			rows = append(rows, []string{strconv.Itoa(info.Index), info.Title, strconv.FormatInt(info.ID, 10)})
		}
		fmt.Print(ui.Table([]string{"#", "Title", "gid"}, rows))
	},
}

var sheetsResolveCmd = &cobra.Command{
	Use:   "resolve [url-or-id]",
	Short: "Show which sheet rows would be written to",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := connectSheets(args)

		info, err := s.ResolveTarget(context.Background())
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Println(ui.Status(true, "%s → %q (gid %d)", s.Name(), info.Title, info.ID))
	},
}

func connectSheets(args []string) *sheets.Sink {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}
	if target == "" && cfg.Sheets.Target == "" {
		fatalf("no spreadsheet given and sheets.target is not set")
	}

	s, err := remoteSink(context.Background(), cfg, target)
	if err != nil {
		fatalf("%v", err)
	}
	return s
}

func init() {
	sheetsCmd.AddCommand(sheetsListCmd)
	sheetsCmd.AddCommand(sheetsResolveCmd)
	rootCmd.AddCommand(sheetsCmd)
}
