package cmd

import (
	"github.com/spf13/cobra"
)

// NewProfileCommand prints the effective profile as YAML.
func NewProfileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Print the effective profile as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.loadProfile()
			if err != nil {
				return err
			}
			data, err := p.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
