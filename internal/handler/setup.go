package handler

import (
	"net/http"
	"strconv"

	"github.com/Mundir-Doom/loop-support/internal/telegram"
	"github.com/gin-gonic/gin"
)

type SetupHandler struct {
	notifier telegram.Gateway
}

func NewSetupHandler(notifier telegram.Gateway) *SetupHandler {
	return &SetupHandler{notifier: notifier}
}

// SetWebhook регистрирует URL вебхука Telegram, опционально сбросив
// накопившиеся обновления.
func (h *SetupHandler) SetWebhook(c *gin.Context) {
	webhookURL := c.Query("webhook_url")
	if webhookURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "webhook_url is required"})
		return
	}
	dropPending, _ := strconv.ParseBool(c.Query("drop_pending"))
	if dropPending {
		h.notifier.DeleteWebhook(c.Request.Context(), true)
	}
	if err := h.notifier.SetWebhook(c.Request.Context(), webhookURL); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "message": "Failed to set webhook: " + err.Error(), "webhook_url": webhookURL})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Webhook set successfully", "webhook_url": webhookURL})
}

// Info сообщает, какие части интеграции с Telegram настроены.
func (h *SetupHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"telegram_bot_configured": h.notifier.Enabled(),
		"support_group_configured": h.notifier.GroupConfigured(),
		"webhook_endpoint":        "/api/telegram/webhook",
		"setup_instructions": gin.H{
			"1": "Set TELEGRAM_BOT_TOKEN environment variable",
			"2": "Set SUPPORT_GROUP_CHAT_ID environment variable",
			"3": "Call POST /api/setup/telegram-webhook with your webhook URL",
			"4": "Add your bot to your Telegram support group",
		},
	})
}
