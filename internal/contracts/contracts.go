// Package contracts holds the pieces shared by the typed contract selectors:
// a cache-bound query helper and the CosmWasm scalar types used in responses.
package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"daoquery/internal/cache"
	"daoquery/internal/querier"
)

// Base binds a cache to one contract. Every query made through it also
// depends on the contract's own token so the whole contract can be
// invalidated at once.
type Base struct {
	cache  *cache.Cache
	params querier.Params
}

// NewBase validates params and binds them to c
func NewBase(c *cache.Cache, params querier.Params) (Base, error) {
	if c == nil {
		return Base{}, errors.New("cache is required")
	}
	if err := params.Validate(); err != nil {
		return Base{}, err
	}
	return Base{cache: c, params: params}, nil
}

// Cache returns the underlying cache
func (b Base) Cache() *cache.Cache {
	return b.cache
}

// Params returns the bound contract
func (b Base) Params() querier.Params {
	return b.params
}

// Token returns the contract-wide invalidation token
func (b Base) Token() cache.Token {
	return cache.ContractToken(b.params.ChainID, b.params.ContractAddress)
}

// Query loads operation through the cache and decodes it into T
func Query[T any](ctx context.Context, b Base, operation string, args interface{}, deps ...cache.Token) (T, error) {
	key, err := cache.NewKey(b.params, operation, args)
	if err != nil {
		var zero T
		return zero, err
	}
	return cache.Load[T](ctx, b.cache, key, append(deps[:len(deps):len(deps)], b.Token())...)
}

// Empty is the argument of operations that take none
type Empty struct{}

// Uint128 is a decimal string encoded unsigned 128-bit integer
type Uint128 string

// Validate checks that u is a non-empty decimal number that fits 128 bits
func (u Uint128) Validate() error {
	if u == "" {
		return errors.New("uint128 is empty")
	}
	for _, r := range u {
		if r < '0' || r > '9' {
			return fmt.Errorf("uint128 %q is not a decimal number", string(u))
		}
	}
	if u.Big().BitLen() > 128 {
		return fmt.Errorf("uint128 %q overflows", string(u))
	}
	return nil
}

// Big returns u as a big.Int; invalid values yield zero
func (u Uint128) Big() *big.Int {
	n, ok := new(big.Int).SetString(string(u), 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

// Expiration is a cw-utils expiration: at a height, at a time, or never
type Expiration struct {
	AtHeight *uint64    `json:"at_height,omitempty"`
	AtTime   *Timestamp `json:"at_time,omitempty"`
	Never    *Empty     `json:"never,omitempty"`
}

// Validate checks that exactly one variant is set
func (e *Expiration) Validate() error {
	n := 0
	if e.AtHeight != nil {
		n++
	}
	if e.AtTime != nil {
		n++
	}
	if e.Never != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("expiration must have exactly one variant, got %d", n)
	}
	return nil
}

// Timestamp is a nanosecond unix timestamp encoded as a decimal string
type Timestamp string

// Time converts the timestamp; invalid values yield the zero time
func (t Timestamp) Time() time.Time {
	n, ok := new(big.Int).SetString(string(t), 10)
	if !ok || !n.IsInt64() {
		return time.Time{}
	}
	return time.Unix(0, n.Int64())
}
