package syncmeta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapatrack/sapatrack/internal/localstore"
)

func TestGet_ZeroRecordWhenAbsent(t *testing.T) {
	r := New(localstore.NewMemoryStore(0))

	m, err := r.Get("u1")
	require.NoError(t, err)
	assert.True(t, m.LastSyncAt.IsZero())
	assert.Empty(t, m.LastError)
}

func TestRecordError_KeepsLastSuccess(t *testing.T) {
	r := New(localstore.NewMemoryStore(0))
	ok := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	bad := ok.Add(time.Hour)

	require.NoError(t, r.RecordSuccess("u1", ok))
	require.NoError(t, r.RecordError("u1", "push entries: network down", bad))

	m, err := r.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, ok, m.LastSyncAt)
	assert.Equal(t, "push entries: network down", m.LastError)
	assert.Equal(t, bad, m.LastErrorAt)
}

func TestRecordSuccess_ClearsPreviousError(t *testing.T) {
	r := New(localstore.NewMemoryStore(0))
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, r.RecordError("u1", "boom", at))
	require.NoError(t, r.RecordSuccess("u1", at.Add(time.Hour)))

	m, err := r.Get("u1")
	require.NoError(t, err)
	assert.Empty(t, m.LastError)
	assert.Equal(t, at.Add(time.Hour), m.LastSyncAt)
}
