package subscription

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"daoquery/internal/cache"
	"daoquery/internal/jsonrpc"
)

// ErrSubscriptionNotFound is returned when unsubscribing an unknown ID
var ErrSubscriptionNotFound = errors.New("subscription not found")

var subSeq atomic.Uint64

// ClientSession manages subscriptions for a single WebSocket client
type ClientSession struct {
	sendFunc      SendFunc
	registry      *Registry
	subscriptions map[string]*clientSubscriber // subID -> subscriber
	maxSubs       int
	closed        bool
	mu            sync.Mutex
	logger        zerolog.Logger
}

// NewClientSession creates a new ClientSession
func NewClientSession(sendFunc SendFunc, registry *Registry, maxSubs int, logger zerolog.Logger) *ClientSession {
	return &ClientSession{
		sendFunc:      sendFunc,
		registry:      registry,
		subscriptions: make(map[string]*clientSubscriber),
		maxSubs:       maxSubs,
		logger:        logger,
	}
}

// Subscribe watches tokens and returns the subscription ID
func (cs *ClientSession) Subscribe(tokens []cache.Token) (string, error) {
	if len(tokens) == 0 {
		return "", fmt.Errorf("at least one token is required")
	}

	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return "", fmt.Errorf("session is closed")
	}
	if cs.maxSubs > 0 && len(cs.subscriptions) >= cs.maxSubs {
		cs.mu.Unlock()
		return "", fmt.Errorf("maximum subscriptions reached (%d)", cs.maxSubs)
	}

	subscriber := &clientSubscriber{
		id:      generateSubID(),
		tokens:  append([]cache.Token(nil), tokens...),
		session: cs,
	}
	cs.subscriptions[subscriber.id] = subscriber
	cs.mu.Unlock()

	cs.registry.Subscribe(subscriber.tokens, subscriber)

	cs.logger.Debug().
		Str("subID", subscriber.id).
		Int("tokens", len(tokens)).
		Msg("subscription created")

	return subscriber.id, nil
}

// Unsubscribe removes a subscription
func (cs *ClientSession) Unsubscribe(subID string) error {
	cs.mu.Lock()
	subscriber, ok := cs.subscriptions[subID]
	if !ok {
		cs.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSubscriptionNotFound, subID)
	}
	delete(cs.subscriptions, subID)
	cs.mu.Unlock()

	cs.registry.Unsubscribe(subscriber.tokens, subID)
	cs.logger.Debug().Str("subID", subID).Msg("subscription removed")
	return nil
}

// Close removes every subscription of the session
func (cs *ClientSession) Close() {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return
	}
	cs.closed = true
	subs := cs.subscriptions
	cs.subscriptions = make(map[string]*clientSubscriber)
	cs.mu.Unlock()

	for id, s := range subs {
		cs.registry.Unsubscribe(s.tokens, id)
	}
}

// GetSubscriptionCount returns the number of active subscriptions
func (cs *ClientSession) GetSubscriptionCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.subscriptions)
}

// clientSubscriber forwards events as notifications to its session
type clientSubscriber struct {
	id      string
	tokens  []cache.Token
	session *ClientSession
}

func (s *clientSubscriber) ID() string {
	return s.id
}

func (s *clientSubscriber) OnEvent(event Event) {
	notification, err := jsonrpc.NewNotification(NotificationMethod, s.id, InvalidationResult{Token: string(event.Token)})
	if err != nil {
		s.session.logger.Error().Err(err).Msg("failed to build notification")
		return
	}
	data, err := notification.Bytes()
	if err != nil {
		s.session.logger.Error().Err(err).Msg("failed to marshal notification")
		return
	}
	s.session.sendFunc(data)
}

// generateSubID generates a unique subscription ID
func generateSubID() string {
	return fmt.Sprintf("0x%x%04x", time.Now().UnixNano(), subSeq.Add(1)&0xffff)
}
