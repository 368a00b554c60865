package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
	"clipforge/internal/daemon"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Daemon control",
	}
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	return daemonCmd
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the conversion daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemon.Run(cmd.Context(), cfg, daemon.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Enable development logging")
	return cmd
}

func runDaemonStatus(cmd *cobra.Command, client *api.Client, jsonOutput bool) error {
	payload, err := client.DaemonStatus(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd, payload)
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	running, _ := payload["running"].(bool)
	kind := statusError
	detail := "stopped"
	if running {
		kind = statusOK
		detail = "running"
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", kind, detail, colorize))
	if workerID, ok := payload["worker_id"].(string); ok && workerID != "" {
		fmt.Fprintln(out, renderStatusLine("Worker", statusInfo, workerID, colorize))
	}
	if lastError, ok := payload["last_error"].(string); ok && lastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, lastError, colorize))
	}

	if stats, ok := payload["queue_stats"].(map[string]any); ok && len(stats) > 0 {
		keys := make([]string, 0, len(stats))
		for key := range stats {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			count, _ := stats[key].(float64)
			fmt.Fprintln(out, renderStatusLine(stageLabel(key), statusInfo, fmt.Sprintf("%.0f", count), colorize))
		}
	}

	if health, ok := payload["stage_health"].(map[string]any); ok && len(health) > 0 {
		names := make([]string, 0, len(health))
		for name := range health {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			entry, _ := health[name].(map[string]any)
			ready, _ := entry["ready"].(bool)
			detail, _ := entry["detail"].(string)
			kind := statusWarn
			if ready {
				kind = statusOK
			}
			fmt.Fprintln(out, renderStatusLine("Stage "+stageLabel(name), kind, detail, colorize))
		}
	}
	return nil
}
