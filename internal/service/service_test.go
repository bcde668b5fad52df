package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/Mundir-Doom/loop-support/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Session{}, &model.Agent{}, &model.Ticket{}, &model.Message{}))
	return db
}

func newTestSession(t *testing.T, db *gorm.DB) *model.Session {
	t.Helper()
	session, err := NewSessionService(db).Create(context.Background(), "en", "test-agent", "https://example.com")
	require.NoError(t, err)
	return session
}

func newTestAgent(t *testing.T, db *gorm.DB, chatID int64) *model.Agent {
	t.Helper()
	agent, err := NewAgentService(db).FindOrCreate(context.Background(), chatID, "Alice")
	require.NoError(t, err)
	return agent
}
