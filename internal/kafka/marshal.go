package kafka

import (
	"encoding/json"

	"github.com/pkg/errors"
)

func Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	return b, errors.Wrap(err, "marshal message")
}

// Unwrap decodes a typed payload out of an envelope's raw JSON.
func Unwrap[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, errors.Wrap(err, "decode payload")
	}
	return t, nil
}
