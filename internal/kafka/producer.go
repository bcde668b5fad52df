package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/Mundir-Doom/loop-support/internal/model"
	"github.com/segmentio/kafka-go"
)

// TicketEventProducer — интерфейс для отправки событий тикета в Kafka (для подмены моком в тестах).
type TicketEventProducer interface {
	ProduceTicketEvent(ctx context.Context, event string, ticket *model.Ticket)
}

// Producer пишет события жизненного цикла тикетов в топик Kafka (best-effort,
// не блокирует API).
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer создаёт продюсер. Если brokers пустой или topic пустой — методы no-op.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{}
	}
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// ProduceTicketEvent отправляет одно событие жизненного цикла (ticket.created,
// ticket.claimed, ticket.closed, ticket.reopened).
func (p *Producer) ProduceTicketEvent(ctx context.Context, event string, ticket *model.Ticket) {
	if p.writer == nil || ticket == nil {
		return
	}
	msg := map[string]interface{}{
		"event":      event,
		"ticket_id":  int64(ticket.ID),
		"session_id": ticket.SessionID,
		"status":     string(ticket.Status),
		"category":   ticket.Category,
		"priority":   ticket.Priority,
	}
	if ticket.AssignedAgentID != nil {
		msg["assigned_agent_id"] = int64(*ticket.AssignedAgentID)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		log.Printf("kafka: marshal ticket event: %v", err)
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Value: body}); err != nil {
		log.Printf("kafka: write ticket event: %v", err)
	}
}

// Close закрывает writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
