// Package querier is the read-only query adapter for a single contract.
//
// A Client binds a contract address and chain ID to a Transport and turns
// operation names plus arguments into CosmWasm smart queries of the form
// {"<operation>": {...args}}. Every failure is reported as a RemoteQueryError;
// no retries happen at this layer.
package querier

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrRemoteQuery matches every RemoteQueryError via errors.Is
var ErrRemoteQuery = errors.New("remote query failed")

// Params identifies a contract's read endpoint. It is comparable and used
// as part of cache keys.
type Params struct {
	ContractAddress string `json:"contractAddress"`
	ChainID         string `json:"chainId"`
}

// Validate checks that both fields are set
func (p Params) Validate() error {
	if p.ContractAddress == "" {
		return errors.New("contractAddress is required")
	}
	if p.ChainID == "" {
		return errors.New("chainId is required")
	}
	return nil
}

// String returns chainID/contractAddress
func (p Params) String() string {
	return p.ChainID + "/" + p.ContractAddress
}

// Transport executes a smart query against a contract.
// msg is the JSON value placed under the operation name.
type Transport interface {
	Call(ctx context.Context, params Params, operation string, msg json.RawMessage) (json.RawMessage, error)
}

// TransportFunc adapts a function to the Transport interface
type TransportFunc func(ctx context.Context, params Params, operation string, msg json.RawMessage) (json.RawMessage, error)

// Call implements Transport
func (f TransportFunc) Call(ctx context.Context, params Params, operation string, msg json.RawMessage) (json.RawMessage, error) {
	return f(ctx, params, operation, msg)
}

// Validator is implemented by response types that check their own shape
// after decoding.
type Validator interface {
	Validate() error
}

// RemoteQueryError wraps network, contract and deserialization failures
type RemoteQueryError struct {
	Params    Params
	Operation string
	Err       error
}

// Error implements the error interface
func (e *RemoteQueryError) Error() string {
	return fmt.Sprintf("query %s on %s: %v", e.Operation, e.Params, e.Err)
}

// Unwrap returns the underlying cause
func (e *RemoteQueryError) Unwrap() error {
	return e.Err
}

// Is reports ErrRemoteQuery as a match
func (e *RemoteQueryError) Is(target error) bool {
	return target == ErrRemoteQuery
}

// NewRemoteQueryError wraps err unless it already is a RemoteQueryError
func NewRemoteQueryError(params Params, operation string, err error) error {
	var rqe *RemoteQueryError
	if errors.As(err, &rqe) {
		return err
	}
	return &RemoteQueryError{Params: params, Operation: operation, Err: err}
}

// ContractError is the error body returned by a node when the contract
// rejected the query
type ContractError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *ContractError) Error() string {
	return fmt.Sprintf("contract error %d: %s", e.Code, e.Message)
}
