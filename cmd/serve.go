package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"hostconfd/internal/app"
)

// serveCmd runs the daemon.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciliation daemon",
	Long: `Starts every reconciler enabled in the configuration, converges the host
once and then keeps converging whenever the data store, the watched files or
the periodic ticker report a change.

The daemon reports readiness to systemd (Type=notify) after the first passes
have been scheduled and the notification sources are listening. On SIGINT or
SIGTERM it stops accepting notifications and waits for passes in flight to
finish before exiting.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(debug, configPath)
	cfg.Output = cmd.ErrOrStderr()

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
