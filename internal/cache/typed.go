package cache

import (
	"context"

	"daoquery/internal/querier"
)

// Load fetches key through c and decodes the result into T
func Load[T any](ctx context.Context, c *Cache, key Key, deps ...Token) (T, error) {
	var zero T

	raw, err := c.Fetch(ctx, key, deps...)
	if err != nil {
		return zero, err
	}

	value, err := querier.Decode[T](raw)
	if err != nil {
		return zero, querier.NewRemoteQueryError(key.Contract, key.Operation, err)
	}
	return value, nil
}

// Typed binds a cache to one contract and response type
type Typed[T any] struct {
	cache    *Cache
	contract querier.Params
}

// NewTyped creates a typed view over c for contract
func NewTyped[T any](c *Cache, contract querier.Params) *Typed[T] {
	return &Typed[T]{cache: c, contract: contract}
}

// Get builds the key for operation and args and loads it
func (t *Typed[T]) Get(ctx context.Context, operation string, args interface{}, deps ...Token) (T, error) {
	key, err := NewKey(t.contract, operation, args)
	if err != nil {
		var zero T
		return zero, err
	}
	return Load[T](ctx, t.cache, key, deps...)
}
