package app

import (
	"encoding/json"
	"fmt"

	consentgateway "github.com/goliatone/go-consent-gateway"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	flags := &configFlags{}
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := consentgateway.ResolveConfig(flags.runtime(cmd.Flags()))
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(cfg.Redacted(), "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	flags.register(cmd.Flags())
	return cmd
}
