// Package cmd implements the dubhe command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dubhe-dev/dubhe/pkg/config"
	"github.com/dubhe-dev/dubhe/pkg/observability"
	"github.com/dubhe-dev/dubhe/pkg/version"
)

// app carries what PersistentPreRunE prepares for the subcommands.
type app struct {
	configFile string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "dubhe",
		Short: "Threat analysis for UML activity diagrams",
		Long: `Dubhe reads a UML activity diagram, recommends where a data sanitizer
would best limit the spread of corrupted data, and reports which STRIDE
threats the design is exposed to and how well they are mitigated.`,
		Version:       version.GetVersionWithCommit(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default is ./"+config.FileName+" or the built-in defaults)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logger.level (debug, info, warn, error)")

	root.AddCommand(newAnalyzeCmd(a))
	root.AddCommand(newPatternsCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logger.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	a.cfg = cfg
	a.logger = observability.NewLogger(cfg.Logger, cmd.ErrOrStderr())
	a.logger.Debug("Configuration loaded",
		zap.String("config_file", a.configFile),
		zap.String("version", version.GetVersion()))
	return nil
}

// Execute runs the command line with ctx, which is cancelled on shutdown
// signals.
func Execute(ctx context.Context) error {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		if ctx.Err() == nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}
