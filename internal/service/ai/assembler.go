package ai

import "github.com/personagpt/backend/internal/model/chat"

// Assembler builds the ordered message sequence sent to the model for one
// exchange: a fixed system instruction, a window of recent history, and the
// new user message.
type Assembler struct {
	system string
}

// NewAssembler returns an assembler whose requests always open with the given
// system instruction.
func NewAssembler(systemPrompt string) *Assembler {
	return &Assembler{system: systemPrompt}
}

// Build produces the request for one model call. At most the most recent
// historyLimit stored turns are included, oldest of the retained window
// first; older turns are omitted from the request but stay in the store.
// A limit of zero sends no history; a negative limit sends all of it.
// The session is never mutated.
func (a *Assembler) Build(sess chat.Session, userMessage string, historyLimit int) Request {
	history := sess.Turns
	if historyLimit >= 0 && len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	return Request{
		System:  a.system,
		History: history,
		Message: userMessage,
	}
}
