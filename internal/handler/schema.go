package handler

import (
	"context"
	"time"

	"github.com/Mundir-Doom/loop-support/internal/model"
)

// Схемы ответов используют camelCase-имена полей, которые ожидает виджет.

type ticketSchema struct {
	ID              uint64             `json:"id"`
	SessionID       string             `json:"sessionId"`
	Status          model.TicketStatus `json:"status"`
	Category        string             `json:"category"`
	Priority        int                `json:"priority"`
	AssignedAgentID *uint64            `json:"assignedAgentId"`
	ContactName     string             `json:"contactName"`
	ContactEmail    string             `json:"contactEmail"`
	CreatedAt       time.Time          `json:"createdAt"`
	ClaimedAt       *time.Time         `json:"claimedAt"`
	ClosedAt        *time.Time         `json:"closedAt"`
}

type messageSchema struct {
	ID        uint64       `json:"id"`
	TicketID  uint64       `json:"ticketId"`
	SessionID string       `json:"sessionId"`
	Sender    model.Sender `json:"sender"`
	Body      string       `json:"body"`
	CreatedAt time.Time    `json:"createdAt"`
}

func toTicketSchema(t *model.Ticket) *ticketSchema {
	if t == nil {
		return nil
	}
	return &ticketSchema{
		ID:              t.ID,
		SessionID:       t.SessionID,
		Status:          t.Status,
		Category:        t.Category,
		Priority:        t.Priority,
		AssignedAgentID: t.AssignedAgentID,
		ContactName:     t.ContactName,
		ContactEmail:    t.ContactEmail,
		CreatedAt:       t.CreatedAt,
		ClaimedAt:       t.ClaimedAt,
		ClosedAt:        t.ClosedAt,
	}
}

func toMessageSchemas(messages []model.Message) []messageSchema {
	out := make([]messageSchema, len(messages))
	for i, m := range messages {
		out[i] = messageSchema{
			ID:        m.ID,
			TicketID:  m.TicketID,
			SessionID: m.SessionID,
			Sender:    m.Sender,
			Body:      m.Body,
			CreatedAt: m.CreatedAt,
		}
	}
	return out
}

// notifyAsync выполняет исходящие побочные эффекты вне горутины запроса с
// ограниченным таймаутом, уже после коммита транзакции.
func notifyAsync(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		fn(ctx)
	}()
}
