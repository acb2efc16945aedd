package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dubhe-dev/dubhe/pkg/models"
	"github.com/dubhe-dev/dubhe/pkg/patterns"
)

func newPatternsCmd(a *app) *cobra.Command {
	var patternDir string

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect threat pattern libraries",
	}
	cmd.PersistentFlags().StringVar(&patternDir, "patterns", "", "pattern library directory (overrides patterns.dir)")

	openStore := func() (*patterns.Store, error) {
		dir := a.cfg.Patterns.Dir
		if patternDir != "" {
			dir = patternDir
		}
		if dir == "" {
			return patterns.NewDefaultStore(a.logger, a.cfg.Patterns.MinVersion), nil
		}
		return patterns.NewDirStore(dir, a.logger, a.cfg.Patterns.MinVersion)
	}

	var classification string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the threats of each classification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			classes := models.Classifications()
			if classification != "" {
				c, err := models.ParseClassification(classification)
				if err != nil {
					return err
				}
				classes = []models.Classification{c}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CLASSIFICATION\tID\tTECHNIQUE\tMITIGATION\tANCHOR\tDETECT PATTERN")
			for _, c := range classes {
				threats, err := store.Load(cmd.Context(), c)
				if err != nil {
					return err
				}
				for _, t := range threats {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
						c, t.TechniqueID, t.Technique, t.MitigationID, t.MitigationAnchor, models.FormatPattern(t.DetectPattern))
				}
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&classification, "classification", "", "only list this classification")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Parse every pattern file and check its version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			files := store.Files()
			total := 0
			for _, c := range models.Classifications() {
				threats, err := store.Load(cmd.Context(), c)
				if err != nil {
					return err
				}
				total += len(threats)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pattern files, %d threats OK\n", len(files), total)
			return nil
		},
	}

	cmd.AddCommand(list, validate)
	return cmd
}
