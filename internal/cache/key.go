package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"daoquery/internal/querier"
)

// ErrInvalidKey is returned when a key cannot be built from its parts
var ErrInvalidKey = errors.New("invalid cache key")

// Key identifies one memoized query. It is comparable and safe to use as a
// map key; Args holds the canonical JSON encoding of the arguments so that
// logically equal argument sets compare equal.
type Key struct {
	Operation string
	Contract  querier.Params
	Args      string
}

// NewKey builds a key for operation on the given contract
func NewKey(contract querier.Params, operation string, args interface{}) (Key, error) {
	if err := contract.Validate(); err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if operation == "" {
		return Key{}, fmt.Errorf("%w: operation is required", ErrInvalidKey)
	}

	raw, err := querier.EncodeArgs(args)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	canonical, err := canonicalJSON(raw)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return Key{
		Operation: operation,
		Contract:  contract,
		Args:      string(canonical),
	}, nil
}

// MustKey is NewKey for arguments known to be valid; it panics otherwise
func MustKey(contract querier.Params, operation string, args interface{}) Key {
	k, err := NewKey(contract, operation, args)
	if err != nil {
		panic(err)
	}
	return k
}

// String returns a readable representation of the key
func (k Key) String() string {
	return k.Contract.String() + ":" + k.Operation + ":" + k.Args
}

// Hash returns a short stable digest of the key, used in logs
func (k Key) Hash() string {
	hash := sha256.Sum256([]byte(k.String()))
	return hex.EncodeToString(hash[:8])
}

// RawArgs returns the canonical arguments as raw JSON
func (k Key) RawArgs() json.RawMessage {
	return json.RawMessage(k.Args)
}

// canonicalJSON re-encodes a JSON value with object keys sorted recursively
// and insignificant whitespace removed. Numbers keep their literal form.
func canonicalJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var data interface{}
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse args: %w", err)
	}

	return json.Marshal(normalizeValue(data))
}

// normalizeValue recursively normalizes a JSON value.
// encoding of map[string]interface{} emits keys in sorted order.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(val))
		for k, item := range val {
			result[k] = normalizeValue(item)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(val))
		for i, item := range val {
			result[i] = normalizeValue(item)
		}
		return result
	default:
		return val
	}
}
