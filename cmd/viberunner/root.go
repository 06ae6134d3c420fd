package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"viberunner/pkg/version"
)

type rootOptions struct {
	configFile string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "viberunner",
		Short: "Autonomous agent orchestration with local and CI verification",
		Long: `viberunner launches a remote coding agent for a task, pulls its result into
the working tree and verifies it with security scans, code review and CI. Failed
attempts are retried with the failure fed back to the agent. Campaigns repeat the
cycle and squash-merge every passing iteration onto an aggregation branch.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default is ./viberunner.yaml)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newRunCmd(opts),
		newCampaignCmd(opts),
		newSecretsCmd(opts),
		newHistoryCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
			},
		},
	)
	return root
}
