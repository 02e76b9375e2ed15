package payload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
)

func TestDecode(t *testing.T) {
	pair, err := Decode([]byte(`{"s1": "the cat sat", "s2": "the dog sat", "extra": 1}`))
	require.NoError(t, err)
	assert.Equal(t, domain.RawPair{S1: "the cat sat", S2: "the dog sat"}, pair)
}

func TestDecodeEmptyStrings(t *testing.T) {
	pair, err := Decode([]byte(`{"s1": "", "s2": ""}`))
	require.NoError(t, err)
	assert.Equal(t, domain.RawPair{}, pair)
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "missing s2", body: `{"s1": "a"}`, field: "s2"},
		{name: "missing s1", body: `{"s2": "a"}`, field: "s1"},
		{name: "null s1", body: `{"s1": null, "s2": "a"}`, field: "s1"},
		{name: "number s2", body: `{"s1": "a", "s2": 3}`, field: "s2"},
		{name: "array s1", body: `{"s1": ["a"], "s2": "b"}`, field: "s1"},
		{name: "not json", body: `s1=a&s2=b`},
		{name: "array body", body: `["a", "b"]`},
		{name: "null body", body: `null`},
		{name: "empty body", body: ``},
		{name: "truncated", body: `{"s1": "a", "s2": "b"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedInput))

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestMissingFieldMessage(t *testing.T) {
	_, err := Decode([]byte(`{"s1": "a"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"s2"`)
	assert.Contains(t, err.Error(), "missing required data")
}

func TestEncodeRoundTrip(t *testing.T) {
	in := domain.RawPair{S1: "x \"quoted\"", S2: "ünïcode"}
	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
