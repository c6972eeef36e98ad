package chat_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	modelchat "github.com/personagpt/backend/internal/model/chat"
	"github.com/personagpt/backend/internal/service/ai"
	chat "github.com/personagpt/backend/internal/service/chat"
	"github.com/personagpt/backend/internal/service/session"
)

type fakeGateway struct {
	completeFn func(ctx context.Context, req ai.Request) (string, error)
}

func (f *fakeGateway) Complete(ctx context.Context, req ai.Request) (string, error) {
	return f.completeFn(ctx, req)
}

func echoGateway() *fakeGateway {
	return &fakeGateway{
		completeFn: func(_ context.Context, req ai.Request) (string, error) {
			return "echo: " + req.Message, nil
		},
	}
}

func newService(gateway ai.Gateway, historyLimit int) (*chat.Service, *session.Store) {
	store := session.NewStore()
	svc := chat.NewService(store, ai.NewAssembler("be helpful"), gateway, historyLimit)
	return svc, store
}

func TestSendAppendsPairPerExchange(t *testing.T) {
	svc, _ := newService(echoGateway(), 20)
	ctx := context.Background()

	reply, err := svc.Send(ctx, "s1", "first")
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if reply != "echo: first" {
		t.Fatalf("reply = %q, want %q", reply, "echo: first")
	}

	if _, err := svc.Send(ctx, "s1", "second"); err != nil {
		t.Fatalf("Send err: %v", err)
	}

	turns := svc.History(ctx, "s1")
	if len(turns) != 4 {
		t.Fatalf("len(History) = %d, want 4", len(turns))
	}

	wantContents := []string{"first", "echo: first", "second", "echo: second"}
	wantRoles := []modelchat.Role{modelchat.RoleUser, modelchat.RoleAssistant, modelchat.RoleUser, modelchat.RoleAssistant}
	for i, turn := range turns {
		if turn.Role != wantRoles[i] {
			t.Errorf("turns[%d].Role = %s, want %s", i, turn.Role, wantRoles[i])
		}
		if turn.Content != wantContents[i] {
			t.Errorf("turns[%d].Content = %q, want %q", i, turn.Content, wantContents[i])
		}
		if turn.ID == "" {
			t.Errorf("turns[%d].ID is empty", i)
		}
		if turn.CreatedAt.IsZero() {
			t.Errorf("turns[%d].CreatedAt is zero", i)
		}
	}
}

func TestSendAssemblesWindowedRequest(t *testing.T) {
	var lastReq ai.Request
	gateway := &fakeGateway{
		completeFn: func(_ context.Context, req ai.Request) (string, error) {
			lastReq = req
			return "echo: " + req.Message, nil
		},
	}

	svc, _ := newService(gateway, 2)
	ctx := context.Background()

	for _, msg := range []string{"one", "two", "three"} {
		if _, err := svc.Send(ctx, "s1", msg); err != nil {
			t.Fatalf("Send(%q) err: %v", msg, err)
		}
	}

	if lastReq.System != "be helpful" {
		t.Errorf("System = %q, want %q", lastReq.System, "be helpful")
	}
	if lastReq.Message != "three" {
		t.Errorf("Message = %q, want %q", lastReq.Message, "three")
	}
	if len(lastReq.History) != 2 {
		t.Fatalf("len(History) = %d, want window of 2", len(lastReq.History))
	}
	if lastReq.History[0].Content != "two" || lastReq.History[1].Content != "echo: two" {
		t.Errorf("window = [%q, %q], want most recent pair", lastReq.History[0].Content, lastReq.History[1].Content)
	}

	// Windowing bounds the request, not the store.
	if stored := svc.History(ctx, "s1"); len(stored) != 6 {
		t.Errorf("stored turns = %d, want all 6 retained", len(stored))
	}
}

func TestSendTrimsAndValidatesMessage(t *testing.T) {
	called := false
	gateway := &fakeGateway{
		completeFn: func(_ context.Context, req ai.Request) (string, error) {
			called = true
			return "echo: " + req.Message, nil
		},
	}

	svc, store := newService(gateway, 20)
	ctx := context.Background()

	_, err := svc.Send(ctx, "s1", "   \t\n")
	if !ai.IsKind(err, ai.KindInvalidRequest) {
		t.Fatalf("kind = %s, want %s", ai.KindOf(err), ai.KindInvalidRequest)
	}
	if called {
		t.Error("gateway was called for a blank message")
	}
	if sessions, _ := store.Stats(); sessions != 0 {
		t.Errorf("sessions = %d, want 0 after rejected send", sessions)
	}

	if _, err := svc.Send(ctx, "s1", "  hello  "); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	turns := svc.History(ctx, "s1")
	if len(turns) == 0 || turns[0].Content != "hello" {
		t.Fatalf("stored user turn = %+v, want trimmed %q", turns, "hello")
	}
}

func TestSendGatewayFailureLeavesHistoryIntact(t *testing.T) {
	failing := false
	gateway := &fakeGateway{
		completeFn: func(_ context.Context, req ai.Request) (string, error) {
			if failing {
				return "", ai.RateLimited("throttled", nil)
			}
			return "echo: " + req.Message, nil
		},
	}

	svc, _ := newService(gateway, 20)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "s1", "first"); err != nil {
		t.Fatalf("Send err: %v", err)
	}

	failing = true
	_, err := svc.Send(ctx, "s1", "second")
	if !ai.IsKind(err, ai.KindRateLimited) {
		t.Fatalf("kind = %s, want %s", ai.KindOf(err), ai.KindRateLimited)
	}

	turns := svc.History(ctx, "s1")
	if len(turns) != 2 {
		t.Fatalf("len(History) = %d, want 2 after failed exchange", len(turns))
	}

	failing = false
	if _, err := svc.Send(ctx, "s1", "third"); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	turns = svc.History(ctx, "s1")
	if len(turns) != 4 {
		t.Fatalf("len(History) = %d, want 4 after recovery", len(turns))
	}
	if turns[2].Content != "third" {
		t.Errorf("turns[2].Content = %q, want %q", turns[2].Content, "third")
	}
}

func TestSendDefaultsSessionID(t *testing.T) {
	svc, _ := newService(echoGateway(), 20)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "", "hi"); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if _, err := svc.Send(ctx, "  ", "again"); err != nil {
		t.Fatalf("Send err: %v", err)
	}

	turns := svc.History(ctx, chat.DefaultSessionID)
	if len(turns) != 4 {
		t.Fatalf("len(History) = %d, want both exchanges on the default session", len(turns))
	}
	if got := svc.History(ctx, ""); len(got) != 4 {
		t.Fatalf("History(\"\") returned %d turns, want 4", len(got))
	}
}

func TestSendSerializesPerSession(t *testing.T) {
	svc, _ := newService(echoGateway(), -1)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Send(ctx, "s1", fmt.Sprintf("msg-%d", i)); err != nil {
				t.Errorf("Send err: %v", err)
			}
		}(i)
	}
	wg.Wait()

	turns := svc.History(ctx, "s1")
	if len(turns) != 2*workers {
		t.Fatalf("len(History) = %d, want %d", len(turns), 2*workers)
	}
	for i := 0; i < len(turns); i += 2 {
		user, assistant := turns[i], turns[i+1]
		if user.Role != modelchat.RoleUser || assistant.Role != modelchat.RoleAssistant {
			t.Fatalf("pair %d roles = (%s, %s), want (user, assistant)", i/2, user.Role, assistant.Role)
		}
		if assistant.Content != "echo: "+user.Content {
			t.Fatalf("pair %d interleaved: user %q, assistant %q", i/2, user.Content, assistant.Content)
		}
	}
}

func TestResetClearsHistory(t *testing.T) {
	var lastReq ai.Request
	gateway := &fakeGateway{
		completeFn: func(_ context.Context, req ai.Request) (string, error) {
			lastReq = req
			return "echo: " + req.Message, nil
		},
	}

	svc, _ := newService(gateway, 20)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "s1", "before"); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if err := svc.Reset(ctx, "s1"); err != nil {
		t.Fatalf("Reset err: %v", err)
	}

	if turns := svc.History(ctx, "s1"); len(turns) != 0 {
		t.Fatalf("len(History) = %d, want 0 after reset", len(turns))
	}

	if _, err := svc.Send(ctx, "s1", "after"); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if len(lastReq.History) != 0 {
		t.Errorf("model saw %d history turns after reset, want 0", len(lastReq.History))
	}

	if err := svc.Reset(ctx, "never-seen"); err != nil {
		t.Fatalf("Reset of unknown session err: %v", err)
	}
}

func TestCreateSessionAssignsFreshIDs(t *testing.T) {
	svc, store := newService(echoGateway(), 20)
	ctx := context.Background()

	first, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	second, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	if first.ID == "" || second.ID == "" {
		t.Fatal("CreateSession returned an empty ID")
	}
	if first.ID == second.ID {
		t.Fatalf("both sessions share ID %q", first.ID)
	}
	if sessions, _ := store.Stats(); sessions != 2 {
		t.Errorf("sessions = %d, want 2", sessions)
	}
}

func TestHistoryUnknownSessionIsEmpty(t *testing.T) {
	svc, store := newService(echoGateway(), 20)
	ctx := context.Background()

	if turns := svc.History(ctx, "ghost"); len(turns) != 0 {
		t.Fatalf("len(History) = %d, want 0", len(turns))
	}
	if sessions, _ := store.Stats(); sessions != 0 {
		t.Errorf("History created a session: sessions = %d, want 0", sessions)
	}
}

func TestSendPropagatesContext(t *testing.T) {
	gateway := &fakeGateway{
		completeFn: func(ctx context.Context, _ ai.Request) (string, error) {
			if err := ctx.Err(); err != nil {
				return "", ai.UpstreamUnavailable("model call canceled or timed out", err)
			}
			return "too late", nil
		},
	}

	svc, _ := newService(gateway, 20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Send(ctx, "s1", "hi")
	if !ai.IsKind(err, ai.KindUpstreamUnavailable) {
		t.Fatalf("kind = %s, want %s", ai.KindOf(err), ai.KindUpstreamUnavailable)
	}
	if turns := svc.History(context.Background(), "s1"); len(turns) != 0 {
		t.Fatalf("len(History) = %d, want 0 after canceled exchange", len(turns))
	}
}

func TestStatsCountsSessionsAndTurns(t *testing.T) {
	svc, _ := newService(echoGateway(), 20)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "a", "hi"); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if _, err := svc.Send(ctx, "b", "hi"); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if _, err := svc.Send(ctx, "b", "again"); err != nil {
		t.Fatalf("Send err: %v", err)
	}

	sessions, turns := svc.Stats(ctx)
	if sessions != 2 {
		t.Errorf("sessions = %d, want 2", sessions)
	}
	if turns != 6 {
		t.Errorf("turns = %d, want 6", turns)
	}
}
