package jsonrpc

import (
	"github.com/goccy/go-json"
)

// Response represents a JSON-RPC response
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      ID              `json:"id"`
}

// NewResponse creates a successful response
func NewResponse(id ID, result interface{}) (*Response, error) {
	resp := &Response{
		JSONRPC: Version,
		ID:      id,
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	resp.Result = resultBytes

	return resp, nil
}

// NewResponseRaw creates a response around an already encoded result.
// Cached query results are passed through without re-encoding.
func NewResponseRaw(id ID, result json.RawMessage) *Response {
	return &Response{
		JSONRPC: Version,
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(id ID, err *Error) *Response {
	return &Response{
		JSONRPC: Version,
		Error:   err,
		ID:      id,
	}
}

// ParseResponse parses a JSON-RPC response from bytes
func ParseResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ParseBatchResponse parses a batch of JSON-RPC responses
func ParseBatchResponse(data []byte) ([]*Response, bool, error) {
	data = trimWhitespace(data)
	if len(data) == 0 {
		return nil, false, ErrInvalidRequest
	}

	if data[0] == '[' {
		var responses []*Response
		if err := json.Unmarshal(data, &responses); err != nil {
			return nil, true, err
		}
		return responses, true, nil
	}

	resp, err := ParseResponse(data)
	if err != nil {
		return nil, false, err
	}
	return []*Response{resp}, false, nil
}

// Bytes returns the response as JSON bytes
func (r *Response) Bytes() ([]byte, error) {
	return json.Marshal(r)
}

// MarshalBatchResponse marshals multiple responses as a JSON array
func MarshalBatchResponse(responses []*Response) ([]byte, error) {
	return json.Marshal(responses)
}

// GetResultAs unmarshals the result into the provided type
func (r *Response) GetResultAs(v interface{}) error {
	if r.Error != nil {
		return r.Error
	}
	if r.Result == nil {
		return nil
	}
	return json.Unmarshal(r.Result, v)
}
