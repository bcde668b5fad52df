package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Mundir-Doom/loop-support/internal/errs"
	"github.com/Mundir-Doom/loop-support/internal/model"
	"gorm.io/gorm"
)

type TicketService struct {
	db *gorm.DB
}

func NewTicketService(db *gorm.DB) *TicketService {
	return &TicketService{db: db}
}

func (s *TicketService) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

// VisitorMessage — входящее сообщение посетителя. Категория, приоритет и
// контакты применяются только когда сообщение открывает новый тикет.
type VisitorMessage struct {
	Body         string
	Category     string
	Priority     string
	ContactName  string
	ContactEmail string
}

// VisitorMessageResult несёт всё нужное для решения об уведомлении, снятое
// внутри транзакции, чтобы соединение с БД не удерживалось на время вызова
// Telegram.
type VisitorMessageResult struct {
	Ticket      model.Ticket
	MessageID   uint64
	NewTicket   bool
	AgentChatID int64
}

// PostVisitorMessage добавляет сообщение посетителя к последнему open или
// claimed тикету сессии, предварительно открывая новый, если такого нет.
func (s *TicketService) PostVisitorMessage(ctx context.Context, sessionID string, msg VisitorMessage) (*VisitorMessageResult, error) {
	body := strings.TrimSpace(msg.Body)
	if body == "" {
		return nil, errs.ErrEmptyBody
	}
	var result VisitorMessageResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touchSession(tx, sessionID); err != nil {
			return err
		}

		var ticket model.Ticket
		err := tx.Where("session_id = ? AND status IN ?", sessionID,
			[]model.TicketStatus{model.TicketStatusOpen, model.TicketStatusClaimed}).
			Order("created_at DESC").
			First(&ticket).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			ticket = model.Ticket{
				SessionID:    sessionID,
				Status:       model.TicketStatusOpen,
				Category:     msg.Category,
				Priority:     model.PriorityFromLabel(strings.ToLower(msg.Priority)),
				ContactName:  msg.ContactName,
				ContactEmail: msg.ContactEmail,
				CreatedAt:    time.Now().UTC(),
			}
			if err := tx.Create(&ticket).Error; err != nil {
				return err
			}
			result.NewTicket = true
		case err != nil:
			return err
		}

		message := model.Message{
			TicketID:  ticket.ID,
			SessionID: sessionID,
			Sender:    model.SenderVisitor,
			Body:      body,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&message).Error; err != nil {
			return err
		}

		if ticket.AssignedAgentID != nil {
			var agent model.Agent
			if err := tx.First(&agent, *ticket.AssignedAgentID).Error; err == nil {
				result.AgentChatID = agent.TgChatID
			}
		}
		result.Ticket = ticket
		result.MessageID = message.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Claim привязывает неназначенный тикет к агенту одним условным UPDATE,
// поэтому конкурентные claim не могут выиграть оба.
func (s *TicketService) Claim(ctx context.Context, ticketID, agentID uint64) (*model.Ticket, error) {
	var claimed model.Ticket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Ticket{}).
			Where("id = ? AND assigned_agent_id IS NULL", ticketID).
			Updates(map[string]interface{}{
				"assigned_agent_id": agentID,
				"status":            model.TicketStatusClaimed,
				"claimed_at":        time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var t model.Ticket
			if err := tx.First(&t, ticketID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errs.ErrTicketNotFound
				}
				return err
			}
			return errs.ErrAlreadyClaimed
		}
		return tx.First(&claimed, ticketID).Error
	})
	if err != nil {
		return nil, err
	}
	return &claimed, nil
}

// CloseByAgent закрывает тикет от имени назначенного агента. Любой другой
// агент и любой неизвестный тикет получают ErrNotAssigned.
func (s *TicketService) CloseByAgent(ctx context.Context, ticketID, agentID uint64) (*model.Ticket, error) {
	var closed model.Ticket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Ticket
		if err := tx.First(&t, ticketID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrNotAssigned
			}
			return err
		}
		if t.AssignedAgentID == nil || *t.AssignedAgentID != agentID {
			return errs.ErrNotAssigned
		}
		if t.Status != model.TicketStatusClosed {
			now := time.Now().UTC()
			if err := tx.Model(&t).Updates(map[string]interface{}{
				"status":    model.TicketStatusClosed,
				"closed_at": now,
			}).Error; err != nil {
				return err
			}
		}
		return tx.First(&closed, ticketID).Error
	})
	if err != nil {
		return nil, err
	}
	return &closed, nil
}

// CloseResult — результат административного закрытия вместе с chat id
// назначенного агента для уведомления после коммита.
type CloseResult struct {
	Ticket        model.Ticket
	AlreadyClosed bool
	AgentChatID   int64
}

// Close закрывает тикет безусловно. Закрытие уже закрытого тикета — успешный
// no-op, closed_at повторно не трогается.
func (s *TicketService) Close(ctx context.Context, ticketID uint64) (*CloseResult, error) {
	var result CloseResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Ticket
		if err := tx.First(&t, ticketID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrTicketNotFound
			}
			return err
		}
		if t.Status == model.TicketStatusClosed {
			result.Ticket = t
			result.AlreadyClosed = true
			return nil
		}
		now := time.Now().UTC()
		if err := tx.Model(&t).Updates(map[string]interface{}{
			"status":    model.TicketStatusClosed,
			"closed_at": now,
		}).Error; err != nil {
			return err
		}
		if t.AssignedAgentID != nil {
			var agent model.Agent
			if err := tx.First(&agent, *t.AssignedAgentID).Error; err == nil {
				result.AgentChatID = agent.TgChatID
			}
		}
		result.Ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Reopen возвращает закрытый тикет в пул неназначенных, сбрасывая назначение
// и время закрытия. Reopen незакрытого тикета — успешный no-op с
// wasClosed=false.
func (s *TicketService) Reopen(ctx context.Context, ticketID uint64) (*model.Ticket, bool, error) {
	var reopened model.Ticket
	var wasClosed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Ticket
		if err := tx.First(&t, ticketID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrTicketNotFound
			}
			return err
		}
		if t.Status != model.TicketStatusClosed {
			reopened = t
			return nil
		}
		if err := tx.Model(&t).Updates(map[string]interface{}{
			"status":            model.TicketStatusOpen,
			"closed_at":         nil,
			"assigned_agent_id": nil,
			"claimed_at":        nil,
		}).Error; err != nil {
			return err
		}
		wasClosed = true
		return tx.First(&reopened, ticketID).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &reopened, wasClosed, nil
}

// StartFresh принудительно закрывает все незакрытые тикеты сессии и открывает
// свежий неназначенный тикет без категории и приоритета.
func (s *TicketService) StartFresh(ctx context.Context, sessionID string) (*model.Ticket, error) {
	var fresh model.Ticket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touchSession(tx, sessionID); err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.Model(&model.Ticket{}).
			Where("session_id = ? AND status <> ?", sessionID, model.TicketStatusClosed).
			Updates(map[string]interface{}{
				"status":    model.TicketStatusClosed,
				"closed_at": now,
			}).Error; err != nil {
			return err
		}
		fresh = model.Ticket{
			SessionID: sessionID,
			Status:    model.TicketStatusOpen,
			CreatedAt: now,
		}
		return tx.Create(&fresh).Error
	})
	if err != nil {
		return nil, err
	}
	return &fresh, nil
}

// AgentReply добавляет текстовый ответ агента к его последнему claimed
// тикету. Предполагается один активный claimed тикет на агента; если их
// несколько, ответ уходит в самый свежий claim.
func (s *TicketService) AgentReply(ctx context.Context, agentID uint64, body, tgMessageID string) (*model.Ticket, error) {
	var target model.Ticket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("assigned_agent_id = ? AND status = ?", agentID, model.TicketStatusClaimed).
			Order("claimed_at DESC").
			First(&target).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrNoClaimedTicket
			}
			return err
		}
		message := model.Message{
			TicketID:    target.ID,
			SessionID:   target.SessionID,
			Sender:      model.SenderAgent,
			Body:        body,
			TgMessageID: tgMessageID,
			CreatedAt:   time.Now().UTC(),
		}
		return tx.Create(&message).Error
	})
	if err != nil {
		return nil, err
	}
	return &target, nil
}
