package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		priority     int
		publish      bool
		hashtags     []string
		audioQuality string
		videoQuality string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Queue a media URL for conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			task, err := client.Submit(cmd.Context(), api.SubmitRequest{
				SourceURL:    args[0],
				AudioQuality: audioQuality,
				VideoQuality: videoQuality,
				Publish:      publish,
				Hashtags:     hashtags,
				Priority:     priority,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, task)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Task %s queued (process %s, priority %d)\n", task.ID, task.ProcessID, task.Priority)
			fmt.Fprintf(out, "Track it with `clipforge status %s`\n", task.ID)
			return nil
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 0, "Queue priority (higher runs first)")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish the final video after conversion")
	cmd.Flags().StringArrayVar(&hashtags, "hashtag", nil, "Hashtag to attach on publication (repeatable)")
	cmd.Flags().StringVar(&audioQuality, "audio-quality", "", "Audio quality: low, medium, or high")
	cmd.Flags().StringVar(&videoQuality, "video-quality", "", "Video quality: low, medium, or high")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}
