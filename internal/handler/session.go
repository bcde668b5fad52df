package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/Mundir-Doom/loop-support/internal/errs"
	"github.com/Mundir-Doom/loop-support/internal/kafka"
	"github.com/Mundir-Doom/loop-support/internal/service"
	"github.com/Mundir-Doom/loop-support/internal/telegram"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessions *service.SessionService
	tickets  *service.TicketService
	notifier telegram.Gateway
	producer kafka.TicketEventProducer
}

func NewSessionHandler(sessions *service.SessionService, tickets *service.TicketService, notifier telegram.Gateway, producer kafka.TicketEventProducer) *SessionHandler {
	return &SessionHandler{sessions: sessions, tickets: tickets, notifier: notifier, producer: producer}
}

type sessionCreateRequest struct {
	Locale    string `json:"locale"`
	UserAgent string `json:"user_agent"`
	Referer   string `json:"referer"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req sessionCreateRequest
	_ = c.ShouldBindJSON(&req) // тело опционально

	session, err := h.sessions.Create(c.Request.Context(), req.Locale, req.UserAgent, req.Referer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": session.ID})
}

func (h *SessionHandler) Conversation(c *gin.Context) {
	ticket, messages, err := h.sessions.Conversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, errs.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ticket":   toTicketSchema(ticket),
		"messages": toMessageSchemas(messages),
	})
}

type messageCreateRequest struct {
	Body         string `json:"body"`
	Category     string `json:"category"`
	Priority     string `json:"priority"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
}

func (h *SessionHandler) PostMessage(c *gin.Context) {
	var req messageCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	result, err := h.tickets.PostVisitorMessage(c.Request.Context(), c.Param("id"), service.VisitorMessage{
		Body:         req.Body,
		Category:     req.Category,
		Priority:     req.Priority,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrEmptyBody):
			c.JSON(http.StatusBadRequest, gin.H{"error": "message body is required"})
		case errors.Is(err, errs.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	// Правило уведомлений: новый или неназначенный тикет — в общий канал
	// агентов, назначенный — напрямую его агенту.
	ticket := result.Ticket
	body := req.Body
	notifyAsync(func(ctx context.Context) {
		if result.NewTicket || ticket.AssignedAgentID == nil {
			h.notifier.NotifyNewTicket(ctx, ticket.ID, ticket.Category, body)
		} else if result.AgentChatID != 0 {
			h.notifier.NotifyCustomerMessage(ctx, result.AgentChatID, ticket.ID, body)
		}
		if result.NewTicket {
			h.producer.ProduceTicketEvent(ctx, "ticket.created", &ticket)
		}
	})

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"ticket_id":  ticket.ID,
		"message_id": result.MessageID,
	})
}

func (h *SessionHandler) NewTicket(c *gin.Context) {
	ticket, err := h.tickets.StartFresh(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, errs.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	t := *ticket
	notifyAsync(func(ctx context.Context) {
		h.notifier.SendToGroup(ctx, newTicketGroupNotice(t.ID))
		h.producer.ProduceTicketEvent(ctx, "ticket.created", &t)
	})
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"message":   "New ticket created successfully",
		"ticket_id": ticket.ID,
	})
}
