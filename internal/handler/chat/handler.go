package chat

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/personagpt/backend/internal/model/chat"
	"github.com/personagpt/backend/internal/service/ai"
	chatService "github.com/personagpt/backend/internal/service/chat"
	"github.com/personagpt/backend/pkg/utils"
)

// Handler exposes the conversation endpoints.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates the chat handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the chat endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/send", h.handleSend)
	r.Post("/chat/reset", h.handleReset)
	r.Post("/chat/session", h.handleCreateSession)
	r.Get("/chat/history", h.handleHistory)
	r.Get("/chat/stats", h.handleStats)
}

// handleSend runs one conversation exchange and returns the model's reply.
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondFailure(w, ai.InvalidRequest("invalid request body"))
		return
	}

	reply, err := h.chatSvc.Send(r.Context(), payload.SessionID, payload.Message)
	if err != nil {
		log.Printf("[chat] send failed: %v", err)
		respondFailure(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// handleReset clears a session's history. The body is optional; without one
// the default session is reset.
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		respondFailure(w, ai.InvalidRequest("invalid request body"))
		return
	}

	if err := h.chatSvc.Reset(r.Context(), payload.SessionID); err != nil {
		respondFailure(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Conversation reset"})
}

// handleCreateSession provisions a fresh session identifier.
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]string{"sessionId": sess.ID})
}

// handleHistory returns the stored transcript for a session.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("sessionId"))
	if sessionID == "" {
		sessionID = chatService.DefaultSessionID
	}

	turns := h.chatSvc.History(r.Context(), sessionID)
	if turns == nil {
		turns = []chat.Turn{}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId": sessionID,
		"turns":     turns,
	})
}

// handleStats reports session and turn counts.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	sessions, turns := h.chatSvc.Stats(r.Context())
	utils.RespondJSON(w, http.StatusOK, map[string]int{
		"sessions": sessions,
		"turns":    turns,
	})
}

// statusForKind maps a failure classification to the HTTP status it surfaces
// as.
func statusForKind(kind ai.Kind) int {
	switch kind {
	case ai.KindInvalidRequest:
		return http.StatusBadRequest
	case ai.KindAuthentication:
		return http.StatusUnauthorized
	case ai.KindRateLimited:
		return http.StatusTooManyRequests
	case ai.KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondFailure(w http.ResponseWriter, err error) {
	kind := ai.KindOf(err)

	detail := "internal error"
	var gatewayErr *ai.Error
	if errors.As(err, &gatewayErr) {
		detail = gatewayErr.Message
	}

	utils.RespondErrorCode(w, statusForKind(kind), string(kind), detail)
}
