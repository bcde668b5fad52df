package service

import (
	"context"
	"errors"
	"time"

	"github.com/Mundir-Doom/loop-support/internal/errs"
	"github.com/Mundir-Doom/loop-support/internal/model"
	"gorm.io/gorm"
)

type AgentService struct {
	db *gorm.DB
}

func NewAgentService(db *gorm.DB) *AgentService {
	return &AgentService{db: db}
}

// FindByChatID ищет агента по его Telegram chat id.
func (s *AgentService) FindByChatID(ctx context.Context, chatID int64) (*model.Agent, error) {
	var agent model.Agent
	if err := s.db.WithContext(ctx).First(&agent, "tg_chat_id = ?", chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrAgentNotFound
		}
		return nil, err
	}
	return &agent, nil
}

// FindOrCreate возвращает агента по Telegram chat id, регистрируя его при
// первом обращении. Используется в claim, чтобы агенты заводились сами.
func (s *AgentService) FindOrCreate(ctx context.Context, chatID int64, name string) (*model.Agent, error) {
	agent, err := s.FindByChatID(ctx, chatID)
	if err == nil {
		return agent, nil
	}
	if !errors.Is(err, errs.ErrAgentNotFound) {
		return nil, err
	}
	if name == "" {
		name = "Unknown"
	}
	agent = &model.Agent{
		Name:      name,
		TgChatID:  chatID,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(agent).Error; err != nil {
		// Параллельные доставки вебхука могут гоняться за уникальный tg_chat_id.
		if existing, lookupErr := s.FindByChatID(ctx, chatID); lookupErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return agent, nil
}
