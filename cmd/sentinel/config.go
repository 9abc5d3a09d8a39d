package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syncsentinel/syncsentinel/internal/config"
	"github.com/syncsentinel/syncsentinel/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Show and change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")

		var (
			out []byte
			err error
		)
		switch strings.ToLower(format) {
		case "yaml", "yml":
			out, err = config.YAML(cfg)
		case "toml":
			out, err = config.TOML(cfg)
		default:
			fatalf("--format must be 'yaml' or 'toml'")
		}
		if err != nil {
			fatalf("%v", err)
		}
		os.Stdout.Write(out)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting in the config file",
	Long: `Change a setting in the config file.

Keys:
  ` + strings.Join(config.Keys(), "\n  ") + `

Examples:
  sentinel config set watch.path "D:\Sync\Logs"
  sentinel config set local.path "D:\Reports\sync-log.xlsx"
  sentinel config set sheets.target "https://docs.google.com/spreadsheets/d/<id>/edit#gid=0"
  sentinel config set sheets.enabled true
  sentinel config set policy.prepend false`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := loader.Set(args[0], args[1]); err != nil {
			fatalf("%v", err)
		}
		fmt.Println(ui.Status(true, "%s = %s", args[0], args[1]))
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(loader.Path())
	},
}

func init() {
	configShowCmd.Flags().String("format", "yaml", "Output format: yaml or toml")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
