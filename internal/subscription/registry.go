package subscription

import (
	"sync"

	"github.com/rs/zerolog"

	"daoquery/internal/cache"
)

// Registry fans cache invalidations out to the subscribers watching each
// token. It listens on the source once for its whole lifetime.
type Registry struct {
	mu      sync.RWMutex
	byToken map[cache.Token]map[string]Subscriber

	cancel func()
	logger zerolog.Logger
}

// NewRegistry creates a registry fed by source
func NewRegistry(source InvalidationSource, logger zerolog.Logger) *Registry {
	r := &Registry{
		byToken: make(map[cache.Token]map[string]Subscriber),
		logger:  logger.With().Str("component", "subscription-registry").Logger(),
	}
	r.cancel = source.OnInvalidate(r.Deliver)
	return r
}

// Subscribe adds subscriber to every token in tokens
func (r *Registry) Subscribe(tokens []cache.Token, subscriber Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, token := range tokens {
		subs, ok := r.byToken[token]
		if !ok {
			subs = make(map[string]Subscriber)
			r.byToken[token] = subs
		}
		subs[subscriber.ID()] = subscriber
	}
	r.logger.Debug().Str("subscriberID", subscriber.ID()).Int("tokens", len(tokens)).Msg("subscriber added")
}

// Unsubscribe removes the subscriber from tokens
func (r *Registry) Unsubscribe(tokens []cache.Token, subscriberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, token := range tokens {
		subs, ok := r.byToken[token]
		if !ok {
			continue
		}
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(r.byToken, token)
		}
	}
}

// Deliver sends an event for token to its subscribers
func (r *Registry) Deliver(token cache.Token) {
	r.mu.RLock()
	subs := make([]Subscriber, 0, len(r.byToken[token]))
	for _, s := range r.byToken[token] {
		subs = append(subs, s)
	}
	r.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	event := Event{Token: token}
	for _, s := range subs {
		s.OnEvent(event)
	}
	r.logger.Debug().Str("token", string(token)).Int("subscribers", len(subs)).Msg("invalidation delivered")
}

// TokenCount returns how many tokens have at least one subscriber
func (r *Registry) TokenCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}

// Close detaches the registry from its source and drops all subscribers
func (r *Registry) Close() {
	r.cancel()
	r.mu.Lock()
	r.byToken = make(map[cache.Token]map[string]Subscriber)
	r.mu.Unlock()
	r.logger.Info().Msg("subscription registry closed")
}
