package main

import (
	"github.com/spf13/cobra"
)

func newCampaignCmd(root *rootOptions) *cobra.Command {
	var (
		base  string
		count int
	)

	cmd := &cobra.Command{
		Use:   "campaign TASK",
		Short: "Run repeated cycles and aggregate passing iterations",
		Long: `campaign creates an aggregation branch from --base and runs one cycle per
iteration, each on its own branch. Passing iterations are squash-merged onto the
aggregation branch. --count 0 runs until the agent reports the mission complete
or campaign.max_iterations is reached.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := args[0]
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("base") {
				base = a.cfg.BaseBranch
			}
			a.logger.Info("🚀 Starting Campaign. Task: %s, Base: %s, Count: %d", task, base, count)

			res, err := a.orch.RunCampaign(cmd.Context(), task, base, count)
			a.writeMetrics()
			if err != nil {
				return err
			}
			a.logger.Info("🎉 Campaign %s completed on %s: %d merged, %d failed, %d errored in %d iterations",
				res.RunID, res.Branch, res.Merged, res.Failed, res.Errored, res.Iterations)
			return nil
		},
	}

	cmd.Flags().StringVar(&base, "base", "develop", "base branch for the campaign")
	cmd.Flags().IntVar(&count, "count", 0, "number of iterations (0 for open-ended)")
	return cmd
}
