package cli

import (
	"github.com/spf13/cobra"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults and flag overrides are applied.
The command fails when the result is invalid, so it also checks a file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			if f.Format == "json" {
				return f.Success(cfg)
			}
			data, err := cfg.Marshal()
			if err != nil {
				return WrapExitError(ExitFailure, "encode config", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	return cmd
}
