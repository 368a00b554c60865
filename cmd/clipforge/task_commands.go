package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show task progress, or daemon status when no task is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return runDaemonStatus(cmd, client, jsonOutput)
			}

			status, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			task := status.Task
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Task:      %s\n", task.ID)
			fmt.Fprintf(out, "Process:   %s\n", task.ProcessID)
			fmt.Fprintf(out, "Status:    %s\n", task.Status)
			fmt.Fprintf(out, "Stage:     %s\n", stageLabel(status.Stage))
			fmt.Fprintf(out, "Progress:  %.0f%%\n", task.Progress)
			if task.Message != "" {
				fmt.Fprintf(out, "Message:   %s\n", task.Message)
			}
			if task.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:     %s\n", task.ErrorMessage)
			}
			fmt.Fprintf(out, "Elapsed:   %s\n", formatSeconds(status.ElapsedSeconds))
			if status.EstRemainingSecs > 0 {
				fmt.Fprintf(out, "Remaining: ~%s\n", formatSeconds(status.EstRemainingSecs))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func newResultCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result <task-id>",
		Short: "Print the final conversion report of a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			report, err := client.Result(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, report)
		},
	}
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Request cancellation of a pending or processing task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for task %s\n", args[0])
			fmt.Fprintln(cmd.OutOrStdout(), "A processing task stops at its next stage boundary.")
			return nil
		},
	}
	return cmd
}

func formatSeconds(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	return d.Round(time.Second).String()
}
