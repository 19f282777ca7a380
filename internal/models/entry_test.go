package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryFromDoc_PreservesUnknownFields(t *testing.T) {
	d := Doc{
		"id":           "e1",
		"date":         "2024-01-01",
		"title":        "gym",
		"text":         "leg day",
		"tags":         []any{"health", "habit"},
		"updatedAtISO": "2024-01-01T10:00:00Z",
		"syncStatus":   "pending",
		"serverScore":  42.0, // field this client version does not know
	}

	e := EntryFromDoc(d)

	assert.Equal(t, "e1", e.ID)
	assert.Equal(t, []string{"health", "habit"}, e.Tags)
	assert.Equal(t, StatusPending, e.SyncStatus)
	require.NotNil(t, e.Extra)
	assert.Equal(t, 42.0, e.Extra["serverScore"])

	// The unknown field must survive the round trip back to a document and
	// must not displace a known field.
	out := e.RemoteDoc()
	assert.Equal(t, 42.0, out["serverScore"])
	assert.Equal(t, "gym", out["title"])
}

func TestUpdatedAtOf_Precedence(t *testing.T) {
	iso := "2024-02-03T04:05:06Z"
	want, err := time.Parse(time.RFC3339, iso)
	require.NoError(t, err)

	// updatedAtISO wins over updatedAt.
	d := Doc{"updatedAtISO": iso, "updatedAt": time.Now()}
	assert.Equal(t, want, UpdatedAtOf(d))

	// Falls back to updatedAt, then createdAt.
	d = Doc{"updatedAt": want}
	assert.Equal(t, want, UpdatedAtOf(d))
	d = Doc{"createdAt": want}
	assert.Equal(t, want, UpdatedAtOf(d))

	// Unparseable values decode as the zero time, which sorts before any
	// real local timestamp.
	assert.True(t, UpdatedAtOf(Doc{"updatedAtISO": "garbage"}).IsZero())
	assert.True(t, UpdatedAtOf(Doc{}).IsZero())
}

func TestTimeFromAny_EpochMillis(t *testing.T) {
	ms := float64(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC).UnixMilli())
	got := TimeFromAny(ms)
	assert.Equal(t, "2024-03-04", got.Format(DateOnly))
}

func TestLoanDoc_RoundTripPayments(t *testing.T) {
	l := LoanFromDoc(Doc{
		"id":        "l1",
		"lender":    "Co-op",
		"principal": 1000.0,
		"balance":   600.0,
		"dueDay":    28.0,
		"payments": []any{
			map[string]any{"id": "p1", "amount": 400.0, "date": "2024-01-28"},
		},
		"updatedAtISO": "2024-01-28T12:00:00Z",
	})

	require.Len(t, l.Payments, 1)
	assert.Equal(t, "400", l.Payments[0].Amount.String())

	out := l.LocalDoc()
	payments, ok := out["payments"].([]any)
	require.True(t, ok)
	require.Len(t, payments, 1)
	assert.Equal(t, "p1", payments[0].(map[string]any)["id"])
}
