package querier

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// emptyArgs is sent for operations without arguments
var emptyArgs = json.RawMessage(`{}`)

// Client is a read-only query client for a single contract
type Client struct {
	transport Transport
	params    Params
}

// NewClient creates a query client for the given contract
func NewClient(transport Transport, params Params) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Client{transport: transport, params: params}, nil
}

// Params returns the contract this client is bound to
func (c *Client) Params() Params {
	return c.params
}

// Query runs operation with args and returns the raw response
func (c *Client) Query(ctx context.Context, operation string, args interface{}) (json.RawMessage, error) {
	msg, err := EncodeArgs(args)
	if err != nil {
		return nil, NewRemoteQueryError(c.params, operation, err)
	}
	return c.QueryRaw(ctx, operation, msg)
}

// QueryRaw runs operation with pre-encoded args
func (c *Client) QueryRaw(ctx context.Context, operation string, msg json.RawMessage) (json.RawMessage, error) {
	if operation == "" {
		return nil, NewRemoteQueryError(c.params, operation, fmt.Errorf("operation is required"))
	}
	msg, err := EncodeArgs(msg)
	if err != nil {
		return nil, NewRemoteQueryError(c.params, operation, err)
	}
	resp, err := c.transport.Call(ctx, c.params, operation, msg)
	if err != nil {
		return nil, NewRemoteQueryError(c.params, operation, err)
	}
	return resp, nil
}

// QueryInto runs operation and decodes the response into T
func QueryInto[T any](ctx context.Context, c *Client, operation string, args interface{}) (T, error) {
	var out T
	raw, err := c.Query(ctx, operation, args)
	if err != nil {
		return out, err
	}
	out, err = Decode[T](raw)
	if err != nil {
		return out, NewRemoteQueryError(c.params, operation, err)
	}
	return out, nil
}

// Decode unmarshals a response and validates it when T implements Validator
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, fmt.Errorf("empty response")
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode response: %w", err)
	}
	if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return out, fmt.Errorf("invalid response: %w", err)
		}
	}
	return out, nil
}

// EncodeArgs encodes query arguments; nil, null and empty raw args become
// an empty object. Every path to the transport goes through it.
func EncodeArgs(args interface{}) (json.RawMessage, error) {
	switch a := args.(type) {
	case nil:
		return emptyArgs, nil
	case json.RawMessage:
		trimmed := bytes.TrimSpace(a)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return emptyArgs, nil
		}
		return a, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode args: %w", err)
	}
	if bytes.Equal(raw, []byte("null")) {
		return emptyArgs, nil
	}
	return raw, nil
}

// SmartQuery builds the {"<operation>": msg} body sent to the contract
func SmartQuery(operation string, msg json.RawMessage) ([]byte, error) {
	msg, err := EncodeArgs(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{operation: msg})
}
