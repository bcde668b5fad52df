package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Mundir-Doom/loop-support/internal/errs"
	"github.com/Mundir-Doom/loop-support/internal/kafka"
	"github.com/Mundir-Doom/loop-support/internal/service"
	"github.com/Mundir-Doom/loop-support/internal/telegram"
	"github.com/gin-gonic/gin"
)

type TicketHandler struct {
	tickets  *service.TicketService
	notifier telegram.Gateway
	producer kafka.TicketEventProducer
}

func NewTicketHandler(tickets *service.TicketService, notifier telegram.Gateway, producer kafka.TicketEventProducer) *TicketHandler {
	return &TicketHandler{tickets: tickets, notifier: notifier, producer: producer}
}

// Close — административное закрытие: без проверки агента, идемпотентно.
func (h *TicketHandler) Close(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	result, err := h.tickets.Close(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrTicketNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if result.AlreadyClosed {
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Ticket already closed", "ticket_id": id})
		return
	}
	ticket := result.Ticket
	agentChatID := result.AgentChatID
	notifyAsync(func(ctx context.Context) {
		if agentChatID != 0 {
			h.notifier.SendToAgent(ctx, agentChatID, fmt.Sprintf(
				"✅ <b>Ticket #%d has been closed</b>\n\nCategory: %s\nThank you for your help!",
				ticket.ID, categoryOrGeneral(ticket.Category)))
		}
		h.notifier.SendToGroup(ctx, closedGroupNotice(ticket.ID, ticket.Category))
		h.producer.ProduceTicketEvent(ctx, "ticket.closed", &ticket)
	})
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Ticket closed successfully", "ticket_id": id})
}

func (h *TicketHandler) Reopen(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	ticket, wasClosed, err := h.tickets.Reopen(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrTicketNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !wasClosed {
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Ticket is not closed", "ticket_id": id})
		return
	}
	t := *ticket
	notifyAsync(func(ctx context.Context) {
		h.notifier.SendToGroup(ctx, fmt.Sprintf(
			"🔄 <b>Ticket #%d reopened</b> • %s\nAvailable for claiming again.",
			t.ID, categoryOrGeneral(t.Category)))
		h.producer.ProduceTicketEvent(ctx, "ticket.reopened", &t)
	})
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Ticket reopened successfully", "ticket_id": id})
}

func categoryOrGeneral(category string) string {
	if category == "" {
		return "General"
	}
	return category
}

func closedGroupNotice(ticketID uint64, category string) string {
	return fmt.Sprintf("✅ <b>Ticket #%d closed</b> • %s", ticketID, categoryOrGeneral(category))
}

func newTicketGroupNotice(ticketID uint64) string {
	return fmt.Sprintf(
		"🆕 <b>New Ticket #%d</b> • General\nCustomer started a new conversation\nAvailable for claiming.",
		ticketID)
}
