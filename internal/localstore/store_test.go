package localstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJSON_AbsentIsNotAnError(t *testing.T) {
	s := NewMemoryStore(0)

	var out []string
	ok, err := ReadJSON(s, "u1", "entries", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteJSON_ReadJSON_RoundTrip(t *testing.T) {
	s := NewMemoryStore(0)

	in := map[string]int{"a": 1}
	require.NoError(t, WriteJSON(s, "u1", "counts", in))

	var out map[string]int
	ok, err := ReadJSON(s, "u1", "counts", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, out)
}

func TestMemoryStore_LegacyProbeOrder(t *testing.T) {
	s := NewMemoryStore(0)
	s.data["sapa:u1:notes_cache"] = `["colon"]`
	s.data["sapa-u1-notes_cache"] = `["dash"]`

	// The dash variant is probed first.
	got, err := s.Read("u1", "notes_cache")
	require.NoError(t, err)
	assert.Equal(t, `["dash"]`, got)
}
