package subscription

import (
	"context"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"daoquery/internal/cache"
	"daoquery/internal/querier"
)

type recordingSender struct {
	mu       sync.Mutex
	messages [][]byte
}

func (s *recordingSender) send(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, data)
}

func (s *recordingSender) notifications(t *testing.T) []notification {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]notification, 0, len(s.messages))
	for _, m := range s.messages {
		var n notification
		if err := json.Unmarshal(m, &n); err != nil {
			t.Fatalf("unmarshal notification: %v", err)
		}
		out = append(out, n)
	}
	return out
}

type notification struct {
	Method string `json:"method"`
	Params struct {
		Subscription string             `json:"subscription"`
		Result       InvalidationResult `json:"result"`
	} `json:"params"`
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	transport := querier.TransportFunc(func(context.Context, querier.Params, string, json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	})
	c, err := cache.New(transport, cache.Options{Size: 10}, zerolog.Nop())
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestSession_ReceivesInvalidation(t *testing.T) {
	c := newTestCache(t)
	r := NewRegistry(c, zerolog.Nop())
	defer r.Close()

	sender := &recordingSender{}
	session := NewClientSession(sender.send, r, 10, zerolog.Nop())

	subID, err := session.Subscribe([]cache.Token{cache.WalletBalancesToken("juno1a")})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	c.Invalidate(cache.WalletBalancesToken("juno1b"))
	c.Invalidate(cache.WalletBalancesToken("juno1a"))

	got := sender.notifications(t)
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
	if got[0].Method != NotificationMethod {
		t.Errorf("Method = %s, want %s", got[0].Method, NotificationMethod)
	}
	if got[0].Params.Subscription != subID {
		t.Errorf("Subscription = %s, want %s", got[0].Params.Subscription, subID)
	}
	if got[0].Params.Result.Token != "wallet-balances:juno1a" {
		t.Errorf("Token = %s", got[0].Params.Result.Token)
	}
}

func TestSession_Unsubscribe(t *testing.T) {
	c := newTestCache(t)
	r := NewRegistry(c, zerolog.Nop())
	defer r.Close()

	sender := &recordingSender{}
	session := NewClientSession(sender.send, r, 10, zerolog.Nop())

	subID, err := session.Subscribe([]cache.Token{"a", "b"})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if r.TokenCount() != 2 {
		t.Fatalf("TokenCount = %d, want 2", r.TokenCount())
	}

	if err := session.Unsubscribe(subID); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if err := session.Unsubscribe(subID); err == nil {
		t.Fatal("second Unsubscribe should fail")
	}

	c.Invalidate("a")
	if n := len(sender.notifications(t)); n != 0 {
		t.Errorf("notifications = %d, want 0", n)
	}
	if r.TokenCount() != 0 {
		t.Errorf("TokenCount = %d, want 0", r.TokenCount())
	}
}

func TestSession_MaxSubscriptions(t *testing.T) {
	c := newTestCache(t)
	r := NewRegistry(c, zerolog.Nop())
	defer r.Close()

	session := NewClientSession(func([]byte) {}, r, 1, zerolog.Nop())
	if _, err := session.Subscribe([]cache.Token{"a"}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := session.Subscribe([]cache.Token{"b"}); err == nil {
		t.Fatal("expected limit error")
	}
	if _, err := session.Subscribe(nil); err == nil {
		t.Fatal("expected error for empty tokens")
	}
}

func TestSession_CloseDropsSubscriptions(t *testing.T) {
	c := newTestCache(t)
	r := NewRegistry(c, zerolog.Nop())
	defer r.Close()

	sender := &recordingSender{}
	session := NewClientSession(sender.send, r, 10, zerolog.Nop())
	if _, err := session.Subscribe([]cache.Token{"a"}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	session.Close()
	c.Invalidate("a")

	if n := len(sender.notifications(t)); n != 0 {
		t.Errorf("notifications = %d, want 0", n)
	}
	if _, err := session.Subscribe([]cache.Token{"a"}); err == nil {
		t.Error("Subscribe on closed session should fail")
	}
}

func TestRegistry_CloseDetachesFromCache(t *testing.T) {
	c := newTestCache(t)
	r := NewRegistry(c, zerolog.Nop())

	sender := &recordingSender{}
	session := NewClientSession(sender.send, r, 10, zerolog.Nop())
	if _, err := session.Subscribe([]cache.Token{"a"}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	r.Close()
	c.Invalidate("a")

	if n := len(sender.notifications(t)); n != 0 {
		t.Errorf("notifications = %d, want 0", n)
	}
}

func TestGenerateSubID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := generateSubID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
