package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"viberunner/pkg/eventlog"
	"viberunner/pkg/persistence"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent campaigns from the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openLedger(root)
			if err != nil {
				return err
			}
			defer store.Close()

			campaigns, err := store.RecentCampaigns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(campaigns) == 0 {
				fmt.Fprintln(out, "No campaigns recorded.")
				return nil
			}
			for _, c := range campaigns {
				writeCampaign(out, c)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of campaigns to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show a campaign and its iterations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLedger(root)
			if err != nil {
				return err
			}
			defer store.Close()

			c, err := store.GetCampaign(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			attempts, err := store.Attempts(cmd.Context(), c.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			writeCampaign(out, c)
			for _, a := range attempts {
				writeAttempt(out, a)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "runs",
		Short: "List standalone runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openLedger(root)
			if err != nil {
				return err
			}
			defer store.Close()

			attempts, err := store.Attempts(cmd.Context(), "")
			if err != nil {
				return err
			}
			for _, a := range attempts {
				writeAttempt(cmd.OutOrStdout(), a)
			}
			return nil
		},
	})

	cmd.AddCommand(newEventsCmd(root))
	return cmd
}

func newEventsCmd(root *rootOptions) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "events [FILE]",
		Short: "Print the newest event log, or FILE",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			files, err := eventlog.ListLogFiles(cfg.EventsDir())
			if err != nil {
				return err
			}
			// events-YYYY-MM-DD.jsonl sorts by date
			sort.Strings(files)

			out := cmd.OutOrStdout()
			if list {
				for _, f := range files {
					fmt.Fprintln(out, f)
				}
				return nil
			}

			var path string
			switch {
			case len(args) == 1:
				path = args[0]
			case len(files) == 0:
				fmt.Fprintln(out, "No event logs recorded.")
				return nil
			default:
				path = files[len(files)-1]
			}

			evts, err := eventlog.ReadEvents(path)
			if err != nil {
				return err
			}
			for _, e := range evts {
				fmt.Fprintf(out, "%s %-16s %s\n", e.Timestamp.Format(time.RFC3339), e.Type, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list event log files instead")
	return cmd
}

// openLedger opens the run ledger without resolving secrets or requiring a repo.
func openLedger(root *rootOptions) (*persistence.Store, error) {
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	return persistence.Open(cfg.LedgerPath())
}

func writeCampaign(w io.Writer, c *persistence.Campaign) {
	limit := "open"
	if c.Limit > 0 {
		limit = fmt.Sprint(c.Limit)
	}
	fmt.Fprintf(w, "%s  %-8s  %s  %s  %d/%s  %s\n",
		c.ID, c.Status, c.StartedAt.Local().Format(time.DateTime), c.Branch, c.Iterations, limit, oneLine(c.Task))
}

func writeAttempt(w io.Writer, a *persistence.Attempt) {
	line := fmt.Sprintf("  #%d  %-7s  %s  retries=%d", a.Iteration, a.Status, a.Branch, a.Retries)
	if a.SessionID != "" {
		line += "  session=" + a.SessionID
	}
	if a.Feedback != "" {
		line += "  " + oneLine(a.Feedback)
	}
	fmt.Fprintln(w, line)
}

func oneLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	const maxLen = 80
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
