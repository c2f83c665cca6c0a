// Package codec converts structured values to and from the byte
// representation stored in the backing key-value store.
//
// Absence is never encoded: a missing key is signaled by the backend
// before any decoding happens, so a stored JSON null round-trips as a
// present null value and is distinguishable from a cache miss.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrSerialization indicates a value could not be encoded or decoded.
// It is always propagated to the caller, never silently dropped.
var ErrSerialization = errors.New("codec: serialization failed")

// Codec encodes and decodes cached values.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error

	// Name identifies the codec in logs and stats.
	Name() string
}

// JSON encodes values as JSON. This is the default codec.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return data, nil
}

func (JSON) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return nil
}

func (JSON) Name() string { return "json" }

// Msgpack encodes values as MessagePack. Denser than JSON for large
// payloads (search results, product lists) at the cost of not being
// inspectable with redis-cli.
type Msgpack struct{}

func (Msgpack) Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return data, nil
}

func (Msgpack) Unmarshal(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return nil
}

func (Msgpack) Name() string { return "msgpack" }
