package telegram

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const newTicketPreviewLen = 200

// Gateway — исходящий интерфейс к Telegram для хендлеров (для подмены моком в тестах).
type Gateway interface {
	SendToGroup(ctx context.Context, text string)
	SendToAgent(ctx context.Context, agentChatID int64, text string)
	NotifyNewTicket(ctx context.Context, ticketID uint64, category, messageBody string)
	NotifyAgentAssigned(ctx context.Context, agentChatID int64, ticketID uint64)
	NotifyCustomerMessage(ctx context.Context, agentChatID int64, ticketID uint64, body string)
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool)
	RemoveClaimButtons(ctx context.Context, messageID int)
	SetWebhook(ctx context.Context, webhookURL string) error
	DeleteWebhook(ctx context.Context, dropPending bool)
	Enabled() bool
	GroupConfigured() bool
}

// Notifier — односторонний best-effort шлюз к Telegram Bot API. Каждый вызов —
// один исходящий запрос; ошибки логируются и проглатываются, чтобы медленный
// или недоступный Telegram никогда не дошёл до клиентской части API.
type Notifier struct {
	bot     *bot.Bot
	groupID int64
}

var _ Gateway = (*Notifier)(nil)

// New создаёт Notifier. С пустым токеном уведомления выключены и все методы — no-op.
func New(token string, groupChatID int64) (*Notifier, error) {
	if token == "" {
		log.Println("telegram: bot token not configured, notifications disabled")
		return &Notifier{}, nil
	}
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Notifier{bot: b, groupID: groupChatID}, nil
}

func (n *Notifier) Enabled() bool { return n.bot != nil }

// GroupConfigured сообщает, настроен ли общий канал агентов.
func (n *Notifier) GroupConfigured() bool { return n.groupID != 0 }

func (n *Notifier) send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) {
	if n.bot == nil || chatID == 0 {
		return
	}
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := n.bot.SendMessage(ctx, params); err != nil {
		log.Printf("telegram: send to %d: %v", chatID, err)
	}
}

// SendToGroup шлёт текстовое уведомление в общий канал агентов.
func (n *Notifier) SendToGroup(ctx context.Context, text string) {
	n.send(ctx, n.groupID, text, nil)
}

// SendToAgent шлёт текстовое уведомление в личный чат агента.
func (n *Notifier) SendToAgent(ctx context.Context, agentChatID int64, text string) {
	n.send(ctx, agentChatID, text, nil)
}

// NotifyNewTicket рассылает в канал агентов уведомление о тикете с кнопками Claim/Pass.
func (n *Notifier) NotifyNewTicket(ctx context.Context, ticketID uint64, category, messageBody string) {
	if category == "" {
		category = "General"
	}
	preview := messageBody
	if len([]rune(preview)) > newTicketPreviewLen {
		preview = string([]rune(preview)[:newTicketPreviewLen]) + "..."
	}
	text := fmt.Sprintf(
		"🆕 <b>New Ticket #%d</b>\n📋 Category: %s\n💬 Message: \"%s\"\n⏰ Time: %s",
		ticketID, category, preview, time.Now().UTC().Format("15:04 UTC"))
	markup := InlineKeyboard(ButtonRow(
		InlineButton("✅ Claim", fmt.Sprintf("CLAIM#%d", ticketID)),
		InlineButton("↩️ Pass", fmt.Sprintf("PASS#%d", ticketID)),
	))
	n.send(ctx, n.groupID, text, markup)
}

// NotifyAgentAssigned сообщает агенту, что тикет теперь за ним, и даёт кнопку закрытия.
func (n *Notifier) NotifyAgentAssigned(ctx context.Context, agentChatID int64, ticketID uint64) {
	text := fmt.Sprintf(
		"✅ <b>You're connected to Ticket #%d</b>\nSend your replies here to chat with the visitor.",
		ticketID)
	markup := InlineKeyboard(ButtonRow(
		InlineButton("📁 Close Ticket", fmt.Sprintf("CLOSE#%d", ticketID)),
	))
	n.send(ctx, agentChatID, text, markup)
}

// NotifyCustomerMessage пересылает сообщение посетителя назначенному агенту.
func (n *Notifier) NotifyCustomerMessage(ctx context.Context, agentChatID int64, ticketID uint64, body string) {
	text := fmt.Sprintf("📨 <b>Customer message (Ticket #%d):</b>\n\n%s", ticketID, body)
	n.send(ctx, agentChatID, text, nil)
}

// AnswerCallback подтверждает нажатие inline-кнопки.
func (n *Notifier) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) {
	if n.bot == nil || callbackID == "" {
		return
	}
	_, err := n.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		log.Printf("telegram: answer callback: %v", err)
	}
}

// RemoveClaimButtons убирает клавиатуру Claim/Pass с сообщения в группе,
// когда тикет уже взят.
func (n *Notifier) RemoveClaimButtons(ctx context.Context, messageID int) {
	if n.bot == nil || n.groupID == 0 {
		return
	}
	_, err := n.bot.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      n.groupID,
		MessageID:   messageID,
		ReplyMarkup: &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{}},
	})
	if err != nil {
		log.Printf("telegram: remove claim buttons: %v", err)
	}
}

// SetWebhook регистрирует URL вебхука в Telegram.
func (n *Notifier) SetWebhook(ctx context.Context, webhookURL string) error {
	if n.bot == nil {
		return fmt.Errorf("telegram bot not configured")
	}
	ok, err := n.bot.SetWebhook(ctx, &bot.SetWebhookParams{URL: webhookURL})
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	if !ok {
		return fmt.Errorf("set webhook: telegram returned not ok")
	}
	return nil
}

// DeleteWebhook снимает текущий вебхук, опционально сбрасывая накопившиеся обновления.
func (n *Notifier) DeleteWebhook(ctx context.Context, dropPending bool) {
	if n.bot == nil {
		return
	}
	_, err := n.bot.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: dropPending})
	if err != nil {
		log.Printf("telegram: delete webhook: %v", err)
	}
}
