// Command sentinel records the files created by FreeFileSync runs into
// spreadsheets.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/syncsentinel/syncsentinel/internal/config"
	"github.com/syncsentinel/syncsentinel/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	// Set by the root command before any subcommand runs.
	loader    *config.Loader
	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Record files created by FreeFileSync runs into spreadsheets",
	Long: `sentinel watches a folder of FreeFileSync logs. For every new log it
extracts the files created during the run, classifies them and adds them to a
local CSV or Excel file and, optionally, a Google Sheet.

Configuration is read from the config file (see 'sentinel config path') and
SYNCSENTINEL_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loader = config.NewLoader(cfgFile)
		c, err := loader.Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		cfg = c

		_, logCloser = logging.Setup(logging.Options{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddGroup(
		&cobra.Group{ID: "run", Title: "Processing:"},
		&cobra.Group{ID: "inspect", Title: "Results:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)
}

// fatalf prints an error and exits.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
