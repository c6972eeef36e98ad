package chat

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/personagpt/backend/internal/model/chat"
	"github.com/personagpt/backend/internal/service/ai"
	"github.com/personagpt/backend/internal/service/session"
)

// DefaultSessionID names the session used by requests that carry no
// session identifier.
const DefaultSessionID = "default"

// Service orchestrates conversation exchanges: it validates input, assembles
// the model request from stored history, performs the completion call, and
// records the user/assistant pair only after the call succeeds.
type Service struct {
	store        *session.Store
	assembler    *ai.Assembler
	gateway      ai.Gateway
	historyLimit int
}

// NewService wires the orchestrator. historyLimit caps how many stored turns
// accompany each model call; zero sends none and a negative value sends all.
func NewService(store *session.Store, assembler *ai.Assembler, gateway ai.Gateway, historyLimit int) *Service {
	return &Service{
		store:        store,
		assembler:    assembler,
		gateway:      gateway,
		historyLimit: historyLimit,
	}
}

// Send runs one exchange against the model and returns the reply. The user
// and assistant turns are appended together once the model answers; a failed
// call leaves the session exactly as it was. Exchanges on the same session
// run one at a time, so each model call sees the history produced by the
// previous one.
func (s *Service) Send(ctx context.Context, sessionID, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ai.InvalidRequest("message must not be empty")
	}

	sessionID = normalizeSessionID(sessionID)

	var reply string
	err := s.store.Exchange(sessionID, func(sess chat.Session) ([]chat.Turn, error) {
		req := s.assembler.Build(sess, message, s.historyLimit)

		out, err := s.gateway.Complete(ctx, req)
		if err != nil {
			return nil, err
		}

		reply = out
		return []chat.Turn{
			{Role: chat.RoleUser, Content: message},
			{Role: chat.RoleAssistant, Content: reply},
		}, nil
	})
	if err != nil {
		return "", err
	}

	log.Printf("[chat] completed exchange for session=%s, reply length=%d", sessionID, len(reply))
	return reply, nil
}

// Reset discards the stored history for the session. Resetting an unknown
// session is a no-op that still succeeds.
func (s *Service) Reset(_ context.Context, sessionID string) error {
	sessionID = normalizeSessionID(sessionID)
	s.store.Reset(sessionID)
	log.Printf("[chat] reset session=%s", sessionID)
	return nil
}

// CreateSession provisions an empty session with a server-assigned
// identifier.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	sess := s.store.GetOrCreate(uuid.NewString())
	log.Printf("[chat] created session=%s", sess.ID)
	return sess, nil
}

// History returns a copy of the session transcript. Unknown sessions yield
// an empty transcript and are not created as a side effect.
func (s *Service) History(_ context.Context, sessionID string) []chat.Turn {
	return s.store.Transcript(normalizeSessionID(sessionID))
}

// Stats reports how many sessions exist and how many turns they hold.
func (s *Service) Stats(_ context.Context) (sessions, turns int) {
	return s.store.Stats()
}

func normalizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return DefaultSessionID
	}
	return id
}
