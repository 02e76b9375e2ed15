// Package payload validates inbound request bodies at the service boundary.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
)

// Field names of the inbound JSON object.
const (
	FieldS1 = "s1"
	FieldS2 = "s2"
)

// Request is the wire form of a RawPair.
type Request struct {
	S1 string `json:"s1"`
	S2 string `json:"s2"`
}

// Decode parses data into a RawPair. Both fields must be present and be JSON
// strings; other fields are ignored. Every failure wraps domain.ErrMalformedInput.
func Decode(data []byte) (domain.RawPair, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return domain.RawPair{}, &domain.ValidationError{Reason: "empty body"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return domain.RawPair{}, &domain.ValidationError{Reason: "expected a JSON object"}
		}
		return domain.RawPair{}, &domain.ValidationError{Reason: "decoding JSON", Err: err}
	}
	if fields == nil {
		return domain.RawPair{}, &domain.ValidationError{Reason: "expected a JSON object"}
	}

	s1, err := stringField(fields, FieldS1)
	if err != nil {
		return domain.RawPair{}, err
	}
	s2, err := stringField(fields, FieldS2)
	if err != nil {
		return domain.RawPair{}, err
	}

	return domain.RawPair{S1: s1, S2: s2}, nil
}

// Encode renders a RawPair in wire form.
func Encode(pair domain.RawPair) ([]byte, error) {
	return json.Marshal(Request{S1: pair.S1, S2: pair.S2})
}

func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", domain.MissingField(name)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", &domain.ValidationError{Field: name, Reason: "must be a string, got null"}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &domain.ValidationError{Field: name, Reason: "must be a string"}
	}
	return s, nil
}
