package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObjectKeepsOrder(t *testing.T) {
	members, err := DecodeObject([]byte(`{"zeta": 1, "alpha": {"x": [1,2]}, "mid": null}`))
	require.NoError(t, err)
	require.Len(t, members, 3)

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = m.Key
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, keys)
	assert.JSONEq(t, `{"x": [1,2]}`, string(members[1].Value))
}

func TestDecodeObjectRejectsNonObjects(t *testing.T) {
	_, err := DecodeObject([]byte(`[1, 2]`))
	assert.Error(t, err)

	_, err = DecodeObject([]byte(`{"a": `))
	assert.Error(t, err)

	members, err := DecodeObject([]byte(`null`))
	require.NoError(t, err)
	assert.Empty(t, members)

	members, err = DecodeObject([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestEncodeObject(t *testing.T) {
	raw, err := EncodeObject([]string{"b", "a"}, []map[string]int{{"n": 2}, {"n": 1}})
	require.NoError(t, err)
	assert.Equal(t, `{"b":{"n":2},"a":{"n":1}}`, string(raw))
	assert.True(t, json.Valid(raw))

	_, err = EncodeObject([]string{"a"}, []int{})
	assert.Error(t, err)
}
