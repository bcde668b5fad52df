package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

// gatewayCall — одна зафиксированная отправка в Telegram.
type gatewayCall struct {
	method   string
	chatID   int64
	ticketID uint64
	text     string
	alert    bool
}

// recordingGateway пишет все исходящие вызовы в канал, чтобы тесты могли
// проверить, какая ветка правила уведомлений сработала.
type recordingGateway struct {
	calls chan gatewayCall
}

var _ telegram.Gateway = (*recordingGateway)(nil)

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{calls: make(chan gatewayCall, 16)}
}

func (g *recordingGateway) record(c gatewayCall) {
	select {
	case g.calls <- c:
	default:
	}
}

// next ждёт следующий вызов: уведомления уходят из отдельной горутины.
func (g *recordingGateway) next(t *testing.T) gatewayCall {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no gateway call recorded")
		return gatewayCall{}
	}
}

func (g *recordingGateway) SendToGroup(ctx context.Context, text string) {
	g.record(gatewayCall{method: "SendToGroup", text: text})
}

func (g *recordingGateway) SendToAgent(ctx context.Context, agentChatID int64, text string) {
	g.record(gatewayCall{method: "SendToAgent", chatID: agentChatID, text: text})
}

func (g *recordingGateway) NotifyNewTicket(ctx context.Context, ticketID uint64, category, messageBody string) {
	g.record(gatewayCall{method: "NotifyNewTicket", ticketID: ticketID, text: messageBody})
}

func (g *recordingGateway) NotifyAgentAssigned(ctx context.Context, agentChatID int64, ticketID uint64) {
	g.record(gatewayCall{method: "NotifyAgentAssigned", chatID: agentChatID, ticketID: ticketID})
}

func (g *recordingGateway) NotifyCustomerMessage(ctx context.Context, agentChatID int64, ticketID uint64, body string) {
	g.record(gatewayCall{method: "NotifyCustomerMessage", chatID: agentChatID, ticketID: ticketID, text: body})
}

func (g *recordingGateway) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) {
	g.record(gatewayCall{method: "AnswerCallback", text: text, alert: alert})
}

func (g *recordingGateway) RemoveClaimButtons(ctx context.Context, messageID int) {
	g.record(gatewayCall{method: "RemoveClaimButtons"})
}

func (g *recordingGateway) SetWebhook(ctx context.Context, webhookURL string) error {
	g.record(gatewayCall{method: "SetWebhook", text: webhookURL})
	return nil
}

func (g *recordingGateway) DeleteWebhook(ctx context.Context, dropPending bool) {
	g.record(gatewayCall{method: "DeleteWebhook", alert: dropPending})
}

func (g *recordingGateway) Enabled() bool         { return true }
func (g *recordingGateway) GroupConfigured() bool { return true }

// handlerEnv — хендлеры над in-memory базой с пишущим шлюзом.
type handlerEnv struct {
	db      *gorm.DB
	engine  *gin.Engine
	gateway *recordingGateway

	sessions *service.SessionService
	tickets  *service.TicketService
	agents   *service.AgentService
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Session{}, &model.Agent{}, &model.Ticket{}, &model.Message{}))

	env := &handlerEnv{
		db:       db,
		gateway:  newRecordingGateway(),
		sessions: service.NewSessionService(db),
		tickets:  service.NewTicketService(db),
		agents:   service.NewAgentService(db),
	}
	producer := kafka.NewProducer(nil, "")

	sessionH := NewSessionHandler(env.sessions, env.tickets, env.gateway, producer)
	ticketH := NewTicketHandler(env.tickets, env.gateway, producer)
	webhookH := NewWebhookHandler(env.agents, env.tickets, env.gateway, producer)

	r := gin.New()
	r.POST("/api/session", sessionH.Create)
	r.POST("/api/session/:id/messages", sessionH.PostMessage)
	r.POST("/api/session/:id/new-ticket", sessionH.NewTicket)
	r.POST("/api/tickets/:id/close", ticketH.Close)
	r.POST("/api/tickets/:id/reopen", ticketH.Reopen)
	r.POST("/api/telegram/webhook", webhookH.Telegram)
	env.engine = r
	return env
}

func (e *handlerEnv) post(t *testing.T, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func (e *handlerEnv) newSession(t *testing.T) string {
	t.Helper()
	rec, body := e.post(t, "/api/session", gin.H{})
	require.Equal(t, http.StatusOK, rec.Code)
	sessionID, _ := body["session_id"].(string)
	require.NotEmpty(t, sessionID)
	return sessionID
}
