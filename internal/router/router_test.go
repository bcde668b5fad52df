package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Mundir-Doom/loop-support/internal/handler"
	"github.com/Mundir-Doom/loop-support/internal/kafka"
	"github.com/Mundir-Doom/loop-support/internal/model"
	"github.com/Mundir-Doom/loop-support/internal/service"
	"github.com/Mundir-Doom/loop-support/internal/telegram"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestServer собирает полную HTTP-поверхность над in-memory базой с
// выключенным notifier, так что запросы проходят реальный роутинг и хендлеры.
func newTestServer(t *testing.T) (http.Handler, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Session{}, &model.Agent{}, &model.Ticket{}, &model.Message{}))

	sessions := service.NewSessionService(db)
	tickets := service.NewTicketService(db)
	agents := service.NewAgentService(db)

	notifier, err := telegram.New("", 0)
	require.NoError(t, err)
	producer := kafka.NewProducer(nil, "")

	h := Handlers{
		Session: handler.NewSessionHandler(sessions, tickets, notifier, producer),
		Ticket:  handler.NewTicketHandler(tickets, notifier, producer),
		Webhook: handler.NewWebhookHandler(agents, tickets, notifier, producer),
		Setup:   handler.NewSetupHandler(notifier),
	}
	return New(h, ""), db
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func createSession(t *testing.T, srv http.Handler) string {
	t.Helper()
	rec, body := doJSON(t, srv, http.MethodPost, "/api/session", gin.H{"locale": "en"})
	require.Equal(t, http.StatusOK, rec.Code)
	sessionID, _ := body["session_id"].(string)
	require.NotEmpty(t, sessionID)
	return sessionID
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/health", "/ready", "/api/health"} {
		rec, _ := doJSON(t, srv, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	sessionID := createSession(t, srv)

	rec, body := doJSON(t, srv, http.MethodGet, "/api/session/"+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, body["ticket"])
	require.Empty(t, body["messages"])

	rec, _ = doJSON(t, srv, http.MethodGet, "/api/session/no-such-session", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/session/"+sessionID+"/messages", gin.H{"body": "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = doJSON(t, srv, http.MethodPost, "/api/session/"+sessionID+"/messages", gin.H{
		"body":     "help me",
		"category": "Billing",
		"priority": "high",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["ok"])
	require.NotZero(t, body["ticket_id"])

	rec, body = doJSON(t, srv, http.MethodGet, "/api/session/"+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ticket, ok := body["ticket"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "open", ticket["status"])
	require.Equal(t, "Billing", ticket["category"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
}

func TestTicketCloseAndReopen(t *testing.T) {
	srv, _ := newTestServer(t)
	sessionID := createSession(t, srv)

	_, posted := doJSON(t, srv, http.MethodPost, "/api/session/"+sessionID+"/messages", gin.H{"body": "help"})
	ticketID := int(posted["ticket_id"].(float64))

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/tickets/abc/close", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/tickets/9999/close", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/tickets/%d/close", ticketID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Ticket closed successfully", body["message"])

	rec, body = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/tickets/%d/close", ticketID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Ticket already closed", body["message"])

	rec, body = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/tickets/%d/reopen", ticketID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Ticket reopened successfully", body["message"])

	rec, body = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/tickets/%d/reopen", ticketID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Ticket is not closed", body["message"])
}

func claimCallbackUpdate(fromID int64, name, data string) gin.H {
	return gin.H{
		"update_id": 1,
		"callback_query": gin.H{
			"id":            "cb-1",
			"from":          gin.H{"id": fromID, "is_bot": false, "first_name": name},
			"chat_instance": "ci-1",
			"message": gin.H{
				"message_id": 10,
				"date":       1700000000,
				"chat":       gin.H{"id": -100123, "type": "supergroup"},
			},
			"data": data,
		},
	}
}

func agentMessageUpdate(fromID int64, name, text string) gin.H {
	return gin.H{
		"update_id": 2,
		"message": gin.H{
			"message_id": 11,
			"date":       1700000001,
			"chat":       gin.H{"id": fromID, "type": "private"},
			"from":       gin.H{"id": fromID, "is_bot": false, "first_name": name},
			"text":       text,
		},
	}
}

// TestWebhookAgentFlow проходит всю агентскую сторону: посетитель открывает
// тикет, агент берёт его кнопкой из группы, отвечает и закрывает командой
// /close.
func TestWebhookAgentFlow(t *testing.T) {
	srv, db := newTestServer(t)
	sessionID := createSession(t, srv)

	_, posted := doJSON(t, srv, http.MethodPost, "/api/session/"+sessionID+"/messages", gin.H{"body": "help me"})
	ticketID := uint64(posted["ticket_id"].(float64))

	// Нажатие кнопки Claim агентом 42.
	rec, body := doJSON(t, srv, http.MethodPost, "/api/telegram/webhook",
		claimCallbackUpdate(42, "Alice", fmt.Sprintf("CLAIM#%d", ticketID)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["ok"])

	var ticket model.Ticket
	require.NoError(t, db.First(&ticket, ticketID).Error)
	require.Equal(t, model.TicketStatusClaimed, ticket.Status)
	require.NotNil(t, ticket.AssignedAgentID)

	var agent model.Agent
	require.NoError(t, db.Where("tg_chat_id = ?", int64(42)).First(&agent).Error)
	require.Equal(t, agent.ID, *ticket.AssignedAgentID)
	require.Equal(t, "Alice", agent.Name)

	// Конкурирующий claim подтверждается, но ничего не меняет.
	rec, body = doJSON(t, srv, http.MethodPost, "/api/telegram/webhook",
		claimCallbackUpdate(43, "Bob", fmt.Sprintf("CLAIM#%d", ticketID)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["ok"])
	require.NoError(t, db.First(&ticket, ticketID).Error)
	require.Equal(t, agent.ID, *ticket.AssignedAgentID)

	// Текстовый ответ назначенного агента попадает в диалог.
	rec, body = doJSON(t, srv, http.MethodPost, "/api/telegram/webhook",
		agentMessageUpdate(42, "Alice", "on it"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["ok"])

	var messages []model.Message
	require.NoError(t, db.Where("ticket_id = ?", ticketID).Order("created_at ASC").Find(&messages).Error)
	require.Len(t, messages, 2)
	require.Equal(t, model.SenderAgent, messages[1].Sender)
	require.Equal(t, "on it", messages[1].Body)

	// Посетитель обновляет страницу и видит ответ агента.
	rec, conv := doJSON(t, srv, http.MethodGet, "/api/session/"+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	convMessages := conv["messages"].([]any)
	require.Len(t, convMessages, 2)
	last := convMessages[1].(map[string]any)
	require.Equal(t, "agent", last["sender"])

	// Команда закрытия от назначенного агента.
	rec, body = doJSON(t, srv, http.MethodPost, "/api/telegram/webhook",
		agentMessageUpdate(42, "Alice", fmt.Sprintf("/close_%d", ticketID)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["ok"])

	require.NoError(t, db.First(&ticket, ticketID).Error)
	require.Equal(t, model.TicketStatusClosed, ticket.Status)
	require.NotNil(t, ticket.ClosedAt)
}

func TestWebhookIgnoresStrangers(t *testing.T) {
	srv, db := newTestServer(t)

	// Сообщение с chat id без записи агента подтверждается и отбрасывается.
	rec, body := doJSON(t, srv, http.MethodPost, "/api/telegram/webhook",
		agentMessageUpdate(777, "Stranger", "hello?"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["ok"])

	var count int64
	require.NoError(t, db.Model(&model.Agent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestWebhookMalformedPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, false, body["ok"])
}

func TestSetupInfo(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodGet, "/api/setup/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, body["telegram_bot_configured"])
	require.Equal(t, "/api/telegram/webhook", body["webhook_endpoint"])
}

func TestOpenAPISpecServed(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodGet, "/swagger/openapi.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3.0.3", body["openapi"])
}
