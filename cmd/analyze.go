package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dubhe-dev/dubhe/pkg/engine"
	"github.com/dubhe-dev/dubhe/pkg/models"
	"github.com/dubhe-dev/dubhe/pkg/output"
	"github.com/dubhe-dev/dubhe/pkg/utils"
)

// ErrFlagged is returned by analyze --fail-on-flagged when the risk policy
// flagged at least one element.
var ErrFlagged = errors.New("risk policy flagged critical elements")

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		format          string
		outputFile      string
		patternDir      string
		classifications string
		failOnFlagged   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <diagram>",
		Short: "Analyze an activity diagram (.xmi or .json)",
		Long: `Analyze reads the diagram, runs sanitizer placement and the STRIDE
classification workers concurrently, and writes the report.`,
		Example: `  dubhe analyze order_flow.xmi
  dubhe analyze order_flow.json --format text
  dubhe analyze order_flow.xmi -o reports/order_flow.yaml -f yaml --classifications tampering,spoofing`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !utils.FileExists(path) {
				return fmt.Errorf("diagram %s does not exist", path)
			}

			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			classes, err := parseClassifications(classifications)
			if err != nil {
				return err
			}
			if patternDir != "" {
				a.cfg.Patterns.Dir = patternDir
			}

			e, err := engine.New(a.cfg, engine.WithLogger(a.logger), engine.WithClassifications(classes...))
			if err != nil {
				return fmt.Errorf("failed to create engine: %w", err)
			}

			report, err := e.AnalyzeFile(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			if err := output.NewGenerator(a.logger, f).Generate(report, outputFile, cmd.OutOrStdout()); err != nil {
				return err
			}

			if failOnFlagged {
				if n := countFlagged(report.RiskIndex); n > 0 {
					a.logger.Warn("Critical elements flagged", zap.Int("count", n))
					return fmt.Errorf("%w: %d", ErrFlagged, n)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format (json, yaml, text)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().StringVar(&patternDir, "patterns", "", "pattern library directory (overrides patterns.dir)")
	cmd.Flags().StringVar(&classifications, "classifications", "", "comma separated classifications to run (default all)")
	cmd.Flags().BoolVar(&failOnFlagged, "fail-on-flagged", false, "exit with an error when the risk policy flags any element")
	return cmd
}

func parseClassifications(list string) ([]models.Classification, error) {
	var classes []models.Classification
	for _, item := range utils.ParseCommaDelimited(list) {
		c, err := models.ParseClassification(item)
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, nil
}

func countFlagged(index []models.RiskEntry) int {
	n := 0
	for _, e := range index {
		if e.Flagged {
			n++
		}
	}
	return n
}
