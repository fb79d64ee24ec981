// Package app provides the consent-gateway command line.
package app

import (
	"github.com/goliatone/go-consent-gateway/adapters/gologger"
	"github.com/spf13/cobra"
)

const (
	flagLogLevel = "log-level"
	flagLogDev   = "log-dev"
)

// NewRootCmd creates the root command with its subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "consent-gateway",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Serve the consent gateway in front of the Leegality consent runner",
		Long: `consent-gateway accepts browser consent requests, authenticates against
Leegality with cached client credentials and returns the consent or privacy
center URL. Configuration comes from the environment; flags override it.`,
	}

	rootCmd.PersistentFlags().String(flagLogLevel, "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool(flagLogDev, false, "Use human readable development logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

func loggerProvider(cmd *cobra.Command) (*gologger.ZapProvider, error) {
	level, err := cmd.Flags().GetString(flagLogLevel)
	if err != nil {
		return nil, err
	}
	dev, err := cmd.Flags().GetBool(flagLogDev)
	if err != nil {
		return nil, err
	}
	return gologger.NewProductionProvider(level, dev)
}
