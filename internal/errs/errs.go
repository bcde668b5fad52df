package errs

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrAgentNotFound   = errors.New("agent not found")

	// ErrAlreadyClaimed — claim проиграл условный UPDATE другому агенту.
	ErrAlreadyClaimed = errors.New("ticket already claimed")

	// ErrNotAssigned — агент пытается закрыть тикет, которого нет или
	// который назначен другому.
	ErrNotAssigned = errors.New("ticket not assigned to agent")

	// ErrNoClaimedTicket — агент шлёт текстовый ответ, не имея claimed-тикета.
	ErrNoClaimedTicket = errors.New("no claimed ticket for agent")

	ErrEmptyBody = errors.New("message body is required")
)
