package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Mundir-Doom/loop-support/internal/config"
	"github.com/Mundir-Doom/loop-support/internal/telegram"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	webhookURL      string
	dropPendingFlag bool
)

var setWebhookCmd = &cobra.Command{
	Use:   "set-webhook",
	Short: "Register the Telegram webhook URL for the configured bot",
	RunE:  runSetWebhook,
}

func init() {
	setWebhookCmd.Flags().StringVar(&webhookURL, "url", "", "public HTTPS URL of /api/telegram/webhook")
	setWebhookCmd.Flags().BoolVar(&dropPendingFlag, "drop-pending", false, "drop any pending update backlog first")
	_ = setWebhookCmd.MarkFlagRequired("url")
}

func runSetWebhook(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !cfg.TelegramEnabled() {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}

	notifier, err := telegram.New(cfg.TelegramBotToken, cfg.SupportGroupChatID)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if dropPendingFlag {
		notifier.DeleteWebhook(ctx, true)
	}
	if err := notifier.SetWebhook(ctx, webhookURL); err != nil {
		return err
	}
	log.Printf("set-webhook: ok (%s)", webhookURL)
	return nil
}
