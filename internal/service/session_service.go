package service

import (
	"context"
	"errors"
	"time"

	"github.com/Mundir-Doom/loop-support/internal/errs"
	"github.com/Mundir-Doom/loop-support/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionService struct {
	db *gorm.DB
}

func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{db: db}
}

// Create регистрирует новую сессию посетителя с непрозрачным идентификатором.
func (s *SessionService) Create(ctx context.Context, locale, userAgent, referer string) (*model.Session, error) {
	now := time.Now().UTC()
	session := &model.Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		LastSeenAt: now,
		Locale:     locale,
		UserAgent:  userAgent,
		Referer:    referer,
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// Conversation возвращает последний тикет сессии (в любом статусе) и полную
// историю сообщений, по пути обновляя last_seen_at. Для сессии без сообщений
// тикет — nil.
func (s *SessionService) Conversation(ctx context.Context, sessionID string) (*model.Ticket, []model.Message, error) {
	var ticket *model.Ticket
	var messages []model.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touchSession(tx, sessionID); err != nil {
			return err
		}
		var t model.Ticket
		err := tx.Where("session_id = ?", sessionID).
			Order("created_at DESC").
			First(&t).Error
		switch {
		case err == nil:
			ticket = &t
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Where("session_id = ?", sessionID).
			Order("created_at ASC").
			Find(&messages).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return ticket, messages, nil
}

func touchSession(tx *gorm.DB, sessionID string) error {
	var session model.Session
	if err := tx.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrSessionNotFound
		}
		return err
	}
	return tx.Model(&session).Update("last_seen_at", time.Now().UTC()).Error
}
