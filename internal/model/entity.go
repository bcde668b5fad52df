package model

import "time"

type TicketStatus string

const (
	TicketStatusOpen    TicketStatus = "open"
	TicketStatusClaimed TicketStatus = "claimed"
	TicketStatusClosed  TicketStatus = "closed"
)

type Sender string

const (
	SenderVisitor Sender = "visitor"
	SenderAgent   Sender = "agent"
)

// Session — браузерная сессия посетителя. Создаётся при первой загрузке
// страницы, last_seen_at обновляется при каждом последующем обращении.
type Session struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `gorm:"not null" json:"last_seen_at"`
	Locale     string    `json:"locale,omitempty"`
	UserAgent  string    `gorm:"type:text" json:"user_agent,omitempty"`
	Referer    string    `gorm:"type:text" json:"referer,omitempty"`

	Tickets []Ticket `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Session) TableName() string { return "support_sessions" }

// Agent — оператор поддержки, идентифицируемый по Telegram chat id. Агенты
// создаются лениво при первом claim и живут дольше отдельных тикетов.
type Agent struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	TgChatID  int64     `gorm:"uniqueIndex;not null" json:"tg_chat_id"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (Agent) TableName() string { return "agents" }

// Ticket — одно обращение посетителя. assigned_agent_id ставится при claim,
// сохраняется при закрытии и сбрасывается только при reopen.
type Ticket struct {
	ID              uint64       `gorm:"primaryKey" json:"id"`
	SessionID       string       `gorm:"index;not null" json:"session_id"`
	Status          TicketStatus `gorm:"type:varchar(32);index;not null" json:"status"`
	Category        string       `json:"category,omitempty"`
	Priority        int          `gorm:"not null;default:0" json:"priority"`
	ContactName     string       `json:"contact_name,omitempty"`
	ContactEmail    string       `json:"contact_email,omitempty"`
	AssignedAgentID *uint64      `gorm:"index" json:"assigned_agent_id,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`

	Messages []Message `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Ticket) TableName() string { return "tickets" }

// Active сообщает, является ли тикет текущей целью для новых сообщений
// посетителя.
func (t *Ticket) Active() bool {
	return t.Status == TicketStatusOpen || t.Status == TicketStatusClaimed
}

// Message — одна реплика диалога внутри тикета. TgMessageID связывает ответы
// агента с сообщениями в Telegram.
type Message struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	TicketID    uint64    `gorm:"index;not null" json:"ticket_id"`
	SessionID   string    `gorm:"index;not null" json:"session_id"`
	Sender      Sender    `gorm:"type:varchar(16);not null" json:"sender"`
	Body        string    `gorm:"type:text" json:"body,omitempty"`
	TgMessageID string    `json:"tg_message_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Message) TableName() string { return "messages" }

var priorityLevels = map[string]int{
	"low":    0,
	"medium": 1,
	"high":   2,
}

// PriorityFromLabel переводит текстовую метку приоритета в хранимый уровень.
// Неизвестные и пустые метки считаются low.
func PriorityFromLabel(label string) int {
	if lvl, ok := priorityLevels[label]; ok {
		return lvl
	}
	return 0
}
