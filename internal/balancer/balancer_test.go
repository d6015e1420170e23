package balancer

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daoquery/internal/upstream"
)

type staticProvider struct {
	main     []*upstream.Endpoint
	fallback []*upstream.Endpoint
}

func (p *staticProvider) GetMain() []*upstream.Endpoint     { return p.main }
func (p *staticProvider) GetFallback() []*upstream.Endpoint { return p.fallback }

func endpoint(name string, weight int, role upstream.Role) *upstream.Endpoint {
	return upstream.NewEndpoint(upstream.Config{
		Name:   name,
		LCDURL: "http://" + name,
		Weight: weight,
		Role:   role,
		Logger: zerolog.Nop(),
	})
}

func TestWeightedRoundRobin_Distribution(t *testing.T) {
	a := endpoint("a", 3, upstream.RoleMain)
	b := endpoint("b", 1, upstream.RoleMain)
	wrr := NewWeightedRoundRobin(&staticProvider{main: []*upstream.Endpoint{a, b}})

	counts := map[string]int{}
	for i := 0; i < 40; i++ {
		e := wrr.Next(nil)
		require.NotNil(t, e)
		counts[e.Name()]++
	}

	assert.Equal(t, 30, counts["a"])
	assert.Equal(t, 10, counts["b"])
}

func TestWeightedRoundRobin_FallbackOnlyWhenMainExcluded(t *testing.T) {
	a := endpoint("a", 1, upstream.RoleMain)
	f := endpoint("f", 1, upstream.RoleFallback)
	wrr := NewWeightedRoundRobin(&staticProvider{
		main:     []*upstream.Endpoint{a},
		fallback: []*upstream.Endpoint{f},
	})

	assert.Equal(t, "a", wrr.Next(nil).Name())
	assert.Equal(t, "f", wrr.Next(map[string]bool{"a": true}).Name())
	assert.Nil(t, wrr.Next(map[string]bool{"a": true, "f": true}))
}

func TestWeightedRoundRobin_Reset(t *testing.T) {
	a := endpoint("a", 1, upstream.RoleMain)
	b := endpoint("b", 1, upstream.RoleMain)
	wrr := NewWeightedRoundRobin(&staticProvider{main: []*upstream.Endpoint{a, b}})

	first := wrr.Next(nil).Name()
	wrr.Next(nil)
	wrr.Reset()
	assert.Equal(t, first, wrr.Next(nil).Name())
}

func TestWeightedRoundRobin_WithPool(t *testing.T) {
	a := endpoint("a", 1, upstream.RoleMain)
	f := endpoint("f", 1, upstream.RoleFallback)
	pool := upstream.NewPoolWithEndpoints("juno-1", []*upstream.Endpoint{a, f}, zerolog.Nop())
	pool.SetSelector(NewWeightedRoundRobin(pool))

	assert.Len(t, pool.GetMain(), 1)
	assert.Len(t, pool.GetFallback(), 1)
}

func TestGCD(t *testing.T) {
	assert.Equal(t, 2, gcd(4, 6))
	assert.Equal(t, 1, gcd(3, 7))
	assert.Equal(t, 5, gcd(5, 0))
}
