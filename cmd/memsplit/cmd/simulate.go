package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"memsplit/scenario"
)

// NewSimulateCommand replays a scenario file and prints the trace.
func NewSimulateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run a scripted scenario and print the timer commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.loadProfile()
			if err != nil {
				return err
			}
			s, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			result, err := scenario.Run(s, p)
			if err != nil {
				return fmt.Errorf("run %s: %w", s.Name, err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), result.String())
			return err
		},
	}
}
