package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/autumnhq/autumn/internal/notify"
)

var notifyTitleFlag string

var notifyCmd = &cobra.Command{
	Use:   "notify <message>",
	Short: "Send a desktop notification",
	Long:  "Send a one-off desktop notification. Useful for testing the platform notifier.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := notifyTitleFlag
		msg := strings.Join(args, " ")

		if err := notify.NewDesktop().Notify(title, msg); err != nil {
			return err
		}
		recordManual(cmd.Context(), title, msg, true)
		ui.Success("Notification sent")
		return nil
	},
}

func init() {
	notifyCmd.Flags().StringVar(&notifyTitleFlag, "title", "Autumn", "Notification title")
	rootCmd.AddCommand(notifyCmd)
}
