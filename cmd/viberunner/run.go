package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"viberunner/pkg/report"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var branch string

	cmd := &cobra.Command{
		Use:   "run TASK",
		Short: "Run one verification cycle for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := args[0]
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			a.logger.Info("🚀 Automator started. Task: %s, Branch: %s", task, branch)
			ok, feedback := a.orch.RunCycle(cmd.Context(), task, branch)

			meta := report.Meta{Task: task, Branch: branch, Success: ok}
			if err := report.WriteFile(a.cfg.ReportFile, a.collector.Events(), meta); err != nil {
				a.logger.Error("❌ Failed to generate report: %v", err)
			} else {
				a.logger.Info("📄 Report generated: %s", a.cfg.ReportFile)
			}
			a.writeMetrics()

			if !ok {
				a.logger.Error("❌ Cycle failed.")
				return &failedError{msg: firstLine(feedback)}
			}
			a.logger.Info("🎉 Cycle completed successfully.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "target branch name")
	_ = cmd.MarkFlagRequired("branch")
	return cmd
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if line == "" {
		return "cycle failed"
	}
	return fmt.Sprintf("cycle failed: %s", line)
}
