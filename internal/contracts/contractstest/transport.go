// Package contractstest provides an in-memory querier.Transport for tests.
package contractstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"daoquery/internal/querier"
)

// Handler answers one operation; msg is the JSON under the operation name
type Handler func(msg json.RawMessage) (interface{}, error)

// Transport routes smart queries to handlers by contract and operation
type Transport struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string]int
}

// New creates an empty transport
func New() *Transport {
	return &Transport{
		handlers: make(map[string]Handler),
		calls:    make(map[string]int),
	}
}

func route(contract, operation string) string {
	return contract + "#" + operation
}

// Handle registers h for operation on contract
func (t *Transport) Handle(contract, operation string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[route(contract, operation)] = h
}

// Reply registers a fixed response for operation on contract
func (t *Transport) Reply(contract, operation string, response interface{}) {
	t.Handle(contract, operation, func(json.RawMessage) (interface{}, error) {
		return response, nil
	})
}

// Calls returns how many times operation was queried on contract
func (t *Transport) Calls(contract, operation string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[route(contract, operation)]
}

// Call implements querier.Transport
func (t *Transport) Call(_ context.Context, params querier.Params, operation string, msg json.RawMessage) (json.RawMessage, error) {
	r := route(params.ContractAddress, operation)

	t.mu.Lock()
	t.calls[r]++
	h, ok := t.handlers[r]
	t.mu.Unlock()

	if !ok {
		return nil, &querier.ContractError{Code: 2, Message: fmt.Sprintf("unknown query %s on %s", operation, params.ContractAddress)}
	}

	resp, err := h(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}
