// Command formsheet serves the submission endpoint and runs the interactive
// multi-step form in a terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formsheet/internal/config"
	"github.com/goliatone/go-formsheet/internal/logging"
)

// app carries the state shared by every subcommand.
type app struct {
	configFile string
	envFiles   []string
	logLevel   string

	cfg *config.Config
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "formsheet",
		Short: "Multi-step form that lands as one spreadsheet row",
		Long: `formsheet collects a multi-step form section by section, keeps a
resumable draft between runs, and appends the finished answers as a single
flattened row to a Google spreadsheet (or a local SQLite table).

Run "formsheet serve" to expose POST /api/submit and "formsheet fill" to
answer the form in the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.LoadOptions{
				ConfigFile: a.configFile,
				DotEnv:     a.envFiles,
			})
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.Log.Level = a.logLevel
			}
			a.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: ./formsheet.yaml when present)")
	flags.StringSliceVar(&a.envFiles, "env-file", []string{".env"}, ".env files to load; missing files are skipped")
	flags.StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		a.newServeCmd(),
		a.newFillCmd(),
		a.newFlattenCmd(),
		a.newSectionsCmd(),
	)
	return root
}

// logger builds the configured logger with console output sent to console.
func (a *app) logger(console io.Writer) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:      a.cfg.Log.Level,
		File:       a.cfg.Log.File,
		MaxSizeMB:  a.cfg.Log.MaxSizeMB,
		MaxBackups: a.cfg.Log.MaxBackups,
		MaxAgeDays: a.cfg.Log.MaxAgeDays,
		Console:    console,
	})
}
