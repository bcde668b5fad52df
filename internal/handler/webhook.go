package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/Mundir-Doom/loop-support/internal/errs"
	"github.com/Mundir-Doom/loop-support/internal/kafka"
	"github.com/Mundir-Doom/loop-support/internal/service"
	"github.com/Mundir-Doom/loop-support/internal/telegram"
	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot/models"
)

// Коды действий в callback data inline-кнопок. Формат фиксированный:
// кнопки claim/pass/close, которые шлёт notifier, должны разбираться здесь.
const (
	actionClaim = "CLAIM#"
	actionPass  = "PASS#"
	actionClose = "CLOSE#"
)

type WebhookHandler struct {
	agents   *service.AgentService
	tickets  *service.TicketService
	notifier telegram.Gateway
	producer kafka.TicketEventProducer
}

func NewWebhookHandler(agents *service.AgentService, tickets *service.TicketService, notifier telegram.Gateway, producer kafka.TicketEventProducer) *WebhookHandler {
	return &WebhookHandler{agents: agents, tickets: tickets, notifier: notifier, producer: producer}
}

// Telegram принимает конверты событий провайдера. Всегда отвечает HTTP 200 с
// {"ok": bool}, чтобы Telegram не счёл ошибку хендлера сбоем доставки и не
// ретраил бесконечно.
func (h *WebhookHandler) Telegram(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("webhook: panic: %v", r)
			c.JSON(http.StatusOK, gin.H{"ok": false})
		}
	}()

	var update models.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		log.Printf("webhook: decode update: %v", err)
		c.JSON(http.StatusOK, gin.H{"ok": false})
		return
	}

	ctx := c.Request.Context()
	var err error
	switch {
	case update.CallbackQuery != nil:
		err = h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		err = h.handleDirectMessage(ctx, update.Message)
	}
	if err != nil {
		log.Printf("webhook: %v", err)
		c.JSON(http.StatusOK, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *WebhookHandler) handleCallback(ctx context.Context, cb *models.CallbackQuery) error {
	switch {
	case strings.HasPrefix(cb.Data, actionClaim):
		return h.handleClaim(ctx, cb)
	case strings.HasPrefix(cb.Data, actionPass):
		h.removeButtons(ctx, cb)
		h.notifier.AnswerCallback(ctx, cb.ID, "Passed", false)
		return nil
	case strings.HasPrefix(cb.Data, actionClose):
		return h.handleCloseButton(ctx, cb)
	}
	return nil
}

func (h *WebhookHandler) handleClaim(ctx context.Context, cb *models.CallbackQuery) error {
	ticketID, err := parseActionID(cb.Data, actionClaim)
	if err != nil {
		return fmt.Errorf("claim action: %w", err)
	}
	agent, err := h.agents.FindOrCreate(ctx, cb.From.ID, cb.From.FirstName)
	if err != nil {
		return fmt.Errorf("claim agent: %w", err)
	}
	ticket, err := h.tickets.Claim(ctx, ticketID, agent.ID)
	switch {
	case errors.Is(err, errs.ErrTicketNotFound):
		// Протухшая кнопка: тикет уже удалён.
		h.notifier.AnswerCallback(ctx, cb.ID, "Ticket not found", true)
		return nil
	case errors.Is(err, errs.ErrAlreadyClaimed):
		h.notifier.AnswerCallback(ctx, cb.ID, "Already claimed", true)
		return nil
	case err != nil:
		return fmt.Errorf("claim ticket %d: %w", ticketID, err)
	}

	h.removeButtons(ctx, cb)
	h.notifier.NotifyAgentAssigned(ctx, cb.From.ID, ticketID)
	h.notifier.AnswerCallback(ctx, cb.ID, "Ticket claimed", false)
	h.producer.ProduceTicketEvent(ctx, "ticket.claimed", ticket)
	return nil
}

func (h *WebhookHandler) handleCloseButton(ctx context.Context, cb *models.CallbackQuery) error {
	ticketID, err := parseActionID(cb.Data, actionClose)
	if err != nil {
		return fmt.Errorf("close action: %w", err)
	}
	agent, err := h.agents.FindByChatID(ctx, cb.From.ID)
	if err != nil {
		if errors.Is(err, errs.ErrAgentNotFound) {
			h.notifier.AnswerCallback(ctx, cb.ID, "You can't close this ticket", true)
			return nil
		}
		return err
	}
	ticket, err := h.tickets.CloseByAgent(ctx, ticketID, agent.ID)
	switch {
	case errors.Is(err, errs.ErrNotAssigned):
		h.notifier.AnswerCallback(ctx, cb.ID, "You can't close this ticket", true)
		return nil
	case err != nil:
		return fmt.Errorf("close ticket %d: %w", ticketID, err)
	}

	h.notifier.AnswerCallback(ctx, cb.ID, "Ticket closed", false)
	h.notifier.SendToAgent(ctx, cb.From.ID, fmt.Sprintf("✅ <b>Ticket #%d closed successfully!</b>", ticketID))
	h.notifier.SendToGroup(ctx, closedGroupNotice(ticketID, ticket.Category))
	h.producer.ProduceTicketEvent(ctx, "ticket.closed", ticket)
	return nil
}

func (h *WebhookHandler) handleDirectMessage(ctx context.Context, msg *models.Message) error {
	if msg.From == nil {
		return nil
	}
	agent, err := h.agents.FindByChatID(ctx, msg.From.ID)
	if err != nil {
		if errors.Is(err, errs.ErrAgentNotFound) {
			// Не наш агент — игнорируем.
			return nil
		}
		return err
	}

	text := msg.Text
	switch {
	case strings.HasPrefix(text, "/close"):
		return h.handleCloseCommand(ctx, agent.ID, msg.From.ID, agent.Name, text)
	case strings.HasPrefix(text, "/help"):
		h.notifier.SendToAgent(ctx, msg.From.ID,
			"🤖 <b>Agent Commands:</b>\n\n"+
				"• Send regular messages to reply to customers\n"+
				"• <code>/close_123</code> - Close ticket #123\n"+
				"• <code>/close 123</code> - Close ticket #123\n"+
				"• <code>/help</code> - Show this help message")
		return nil
	case text != "" && !strings.HasPrefix(text, "/"):
		return h.handleAgentReply(ctx, agent.ID, msg)
	}
	return nil
}

func (h *WebhookHandler) handleCloseCommand(ctx context.Context, agentID uint64, agentChatID int64, agentName, text string) error {
	ticketID, err := parseCloseCommand(text)
	if err != nil {
		h.notifier.SendToAgent(ctx, agentChatID, "❌ Invalid command. Use: /close_123 or /close 123")
		return nil
	}
	ticket, err := h.tickets.CloseByAgent(ctx, ticketID, agentID)
	switch {
	case errors.Is(err, errs.ErrNotAssigned):
		h.notifier.SendToAgent(ctx, agentChatID, fmt.Sprintf(
			"❌ Cannot close ticket #%d. Either it doesn't exist or it's not assigned to you.", ticketID))
		return nil
	case err != nil:
		return fmt.Errorf("close ticket %d: %w", ticketID, err)
	}

	h.notifier.SendToAgent(ctx, agentChatID, fmt.Sprintf(
		"✅ <b>Ticket #%d closed successfully!</b>\n\nCategory: %s\nStatus: Resolved",
		ticketID, categoryOrGeneral(ticket.Category)))
	h.notifier.SendToGroup(ctx, fmt.Sprintf(
		"✅ <b>Ticket #%d closed</b> by %s • %s", ticketID, agentName, categoryOrGeneral(ticket.Category)))
	h.producer.ProduceTicketEvent(ctx, "ticket.closed", ticket)
	return nil
}

func (h *WebhookHandler) handleAgentReply(ctx context.Context, agentID uint64, msg *models.Message) error {
	ticket, err := h.tickets.AgentReply(ctx, agentID, msg.Text, strconv.Itoa(msg.ID))
	switch {
	case errors.Is(err, errs.ErrNoClaimedTicket):
		h.notifier.SendToAgent(ctx, msg.From.ID, "❌ No active ticket assigned to you. Claim a ticket first.")
		return nil
	case err != nil:
		return fmt.Errorf("agent reply: %w", err)
	}
	h.notifier.SendToAgent(ctx, msg.From.ID, fmt.Sprintf("📨 Message sent to customer (Ticket #%d)", ticket.ID))
	return nil
}

func (h *WebhookHandler) removeButtons(ctx context.Context, cb *models.CallbackQuery) {
	if cb.Message.Message != nil {
		h.notifier.RemoveClaimButtons(ctx, cb.Message.Message.ID)
	}
}

func parseActionID(data, prefix string) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(data, prefix), 10, 64)
}

// parseCloseCommand принимает обе формы: /close_123 и /close 123.
func parseCloseCommand(text string) (uint64, error) {
	rest := strings.TrimPrefix(text, "/close")
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "_"))
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, fmt.Errorf("missing ticket id")
	}
	return strconv.ParseUint(fields[0], 10, 64)
}
