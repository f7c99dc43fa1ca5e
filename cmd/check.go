package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"hostconfd/internal/app"
	"hostconfd/internal/formatting"
)

var (
	checkOutputFormat string
	checkQuiet        bool
	checkNoColor      bool
)

// reconcilerNames is offered for shell completion.
var reconcilerNames = []string{"dns", "ftp", "mailfilter", "jails", "timezone", "groups", "shareddirs"}

var checkCmd = &cobra.Command{
	Use:   "check [reconciler...]",
	Short: "Run one pass of each reconciler and report the outcome",
	Long: `Runs one synchronous pass of each named reconciler, or of every enabled
reconciler when none is named, and prints a summary. Passes of different
reconcilers run concurrently.

The passes are real: files are written and services restarted exactly as
the daemon would. A running daemon is not disturbed beyond seeing its next
pass find nothing to change.

Exits with code 2 when any pass failed.`,
	Args:      cobra.ArbitraryArgs,
	ValidArgs: reconcilerNames,
	RunE:      runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := formatting.ParseFormat(checkOutputFormat)
	if err != nil {
		return err
	}

	cfg := app.NewConfig(debug, configPath)
	cfg.Interactive = true
	cfg.Output = cmd.ErrOrStderr()
	if checkQuiet {
		cfg.Output = io.Discard
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	outcomes, err := application.Check(ctx, args...)
	if err != nil {
		return err
	}

	reports := make([]formatting.Report, 0, len(outcomes))
	for _, out := range outcomes {
		reports = append(reports, formatting.NewReport(out))
	}

	w := cmd.OutOrStdout()
	formatter := formatting.NewFormatter(formatting.Options{
		Format: format,
		Color:  !checkNoColor && isTerminal(w),
	})
	if err := formatter.FormatReports(w, reports); err != nil {
		return err
	}

	if failed := formatting.Failed(reports); failed > 0 {
		return &PassFailedError{Failed: failed, Total: len(reports)}
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	_, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	return err == nil
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	checkCmd.Flags().BoolVarP(&checkQuiet, "quiet", "q", false, "Suppress log output")
	checkCmd.Flags().BoolVar(&checkNoColor, "no-color", false, "Disable colored output")
}
