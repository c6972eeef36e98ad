package chat

import "time"

// Session captures one conversation thread and its ordered turn history.
// Sessions live in memory for the process lifetime; a reset empties the
// history but keeps the session reachable under the same identifier.
type Session struct {
	ID           string    `json:"id"`
	Turns        []Turn    `json:"turns"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}
