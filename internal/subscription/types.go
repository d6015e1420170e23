package subscription

import (
	"daoquery/internal/cache"
)

// NotificationMethod is the JSON-RPC method of pushed invalidations
const NotificationMethod = "cache_invalidated"

// SendFunc is a callback function for sending data to the client
type SendFunc func(data []byte)

// Event is delivered to subscribers when a token they watch is invalidated
type Event struct {
	Token cache.Token
}

// InvalidationResult is the result field of a cache_invalidated notification
type InvalidationResult struct {
	Token string `json:"token"`
}

// Subscriber is the interface for invalidation event consumers
type Subscriber interface {
	// OnEvent is called when a watched token is invalidated
	OnEvent(event Event)
	// ID returns a unique identifier for this subscriber
	ID() string
}

// InvalidationSource is implemented by *cache.Cache
type InvalidationSource interface {
	OnInvalidate(fn func(cache.Token)) (cancel func())
}
