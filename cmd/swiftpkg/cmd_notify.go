package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"swiftpkg/internal/notify"
)

var (
	notifyMessage string
	notifyInput   string
	notifyURL     string
)

// notifyCmd posts a message to a Slack webhook
var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a message to a Slack webhook",
	Long: `Posts a message to a Slack incoming webhook, for CI status notifications.
With --input, the file's contents are appended to the message in a fenced
block; an unreadable file appends an error note instead of failing the send.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url := notifyURL
		if url == "" {
			url = cfg.Notify.WebhookURL
		}
		if url == "" {
			return errors.New("no webhook URL: pass --url or set SLACK_WEBHOOK_URL")
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.GetNotifyTimeout())
		defer cancel()

		sender := notify.NewSender(url, cfg.GetNotifyTimeout(), logger)
		if notifyInput != "" {
			return sender.SendWithFile(ctx, notifyMessage, notifyInput)
		}
		return sender.Send(ctx, notifyMessage)
	},
}

func init() {
	notifyCmd.Flags().StringVar(&notifyMessage, "message", "", "Message to send (required)")
	notifyCmd.Flags().StringVar(&notifyInput, "input", "", "File whose contents are appended to the message")
	notifyCmd.Flags().StringVar(&notifyURL, "url", "", "Slack webhook URL (or set SLACK_WEBHOOK_URL env)")
	notifyCmd.MarkFlagRequired("message")
}
