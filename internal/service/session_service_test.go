package service

import (
	"context"
	"testing"
	"time"

	"github.com/Mundir-Doom/loop-support/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionThenFetchIsEmpty(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db)
	ctx := context.Background()

	session, err := svc.Create(ctx, "en", "Mozilla/5.0", "https://example.com/pricing")
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)

	ticket, messages, err := svc.Conversation(ctx, session.ID)
	require.NoError(t, err)
	require.Nil(t, ticket)
	require.Empty(t, messages)
}

func TestConversationUnknownSession(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db)

	_, _, err := svc.Conversation(context.Background(), "no-such-session")
	require.ErrorIs(t, err, errs.ErrSessionNotFound)
}

func TestConversationTouchesLastSeen(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db)
	ctx := context.Background()

	session := newTestSession(t, db)
	before := session.LastSeenAt

	time.Sleep(10 * time.Millisecond)
	_, _, err := svc.Conversation(ctx, session.ID)
	require.NoError(t, err)

	var lastSeen time.Time
	require.NoError(t, db.Table("support_sessions").
		Where("id = ?", session.ID).
		Select("last_seen_at").
		Scan(&lastSeen).Error)
	require.True(t, lastSeen.After(before), "last_seen_at should advance on fetch")
}
