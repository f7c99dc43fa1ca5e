package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hostconfd/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (bad configuration, invalid arguments).
	ExitCodeError = 1
	// ExitCodePassFailed indicates that at least one reconciler did not converge.
	ExitCodePassFailed = 2
)

var (
	configPath string
	debug      bool
)

// rootCmd represents the base command for the hostconfd application.
var rootCmd = &cobra.Command{
	Use:   "hostconfd",
	Short: "Converge host configuration with the central data store",
	Long: `hostconfd keeps a host's service configuration in line with the central
data store. Each subsystem reconciler (name server zones, FTP virtual hosts,
mail limits, fail2ban jails, timezone, groups, shared directories) rebuilds
its files whenever the store notifies a change, writes them atomically and
restarts the owning service only when something actually changed.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// PassFailedError reports reconcilers that did not converge in a one-shot run.
type PassFailedError struct {
	Failed int
	Total  int
}

func (e *PassFailedError) Error() string {
	return fmt.Sprintf("%d of %d reconcilers failed", e.Failed, e.Total)
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "hostconfd version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	var failed *PassFailedError
	if errors.As(err, &failed) {
		return ExitCodePassFailed
	}
	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
