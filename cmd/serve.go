package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dubhe-dev/dubhe/pkg/engine"
	"github.com/dubhe-dev/dubhe/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis engine over HTTP",
		Long: `Serve exposes GET /health and POST /analyze. The request body is the
diagram; send Content-Type: application/json for the JSON graph format,
anything else is read as XMI. Add ?format=yaml or ?format=text to change the
report encoding.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			e, err := engine.New(a.cfg, engine.WithLogger(a.logger))
			if err != nil {
				return fmt.Errorf("failed to create engine: %w", err)
			}
			return server.New(e, a.logger, a.cfg.Server).ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
