package cmd

import (
	"fmt"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/spf13/cobra"

	"memsplit/profile"
)

// RootOptions holds flags shared by all commands.
type RootOptions struct {
	ProfilePath string
	ProcessName string
}

var log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "memsplit"))

// NewRootCommand creates the memsplit command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "memsplit",
		Short:         "Memory-reading autosplitter",
		Long:          "Polls a game's memory and drives a stopwatch from what it sees.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&opts.ProfilePath, "profile", "p", "", "profile YAML (default: built-in BioShock Infinite layout)")
	cmd.PersistentFlags().StringVarP(&opts.ProcessName, "name", "n", "", "override the profile's process name")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewPeekCommand(opts))
	cmd.AddCommand(NewProfileCommand(opts))

	return cmd
}

// loadProfile returns the profile selected by the flags.
func (o *RootOptions) loadProfile() (profile.Profile, error) {
	p := profile.Default()
	if o.ProfilePath != "" {
		var err error
		if p, err = profile.Load(o.ProfilePath); err != nil {
			return profile.Profile{}, err
		}
	}
	if o.ProcessName != "" {
		p.ProcessName = o.ProcessName
	}
	if err := p.Validate(); err != nil {
		return profile.Profile{}, fmt.Errorf("invalid profile: %w", err)
	}
	return p, nil
}
