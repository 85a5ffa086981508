package recordstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormulaRendering(t *testing.T) {
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{
			name:   "equality",
			filter: Eq("SubjectID", "REF-100"),
			want:   "{SubjectID} = 'REF-100'",
		},
		{
			name:   "equality escapes quotes",
			filter: Eq("FirstName", "O'Brien"),
			want:   "{FirstName} = 'O\\'Brien'",
		},
		{
			name: "conjunction",
			filter: And(
				Eq("SubjectID", "REF-100"),
				Eq("Scope", "Main Entrance"),
			),
			want: "AND({SubjectID} = 'REF-100', {Scope} = 'Main Entrance')",
		},
		{
			name:   "single-term and collapses",
			filter: And(Eq("Scope", "VIP")),
			want:   "{Scope} = 'VIP'",
		},
		{
			name:   "at or after",
			filter: AtOrAfter("Timestamp", at),
			want:   "NOT(IS_BEFORE({Timestamp}, '2024-06-01T00:00:00Z'))",
		},
		{
			name:   "before",
			filter: Before("Timestamp", at),
			want:   "IS_BEFORE({Timestamp}, '2024-06-01T00:00:00Z')",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Formula(tc.filter))
		})
	}
}

func TestFilterMatches(t *testing.T) {
	fields := map[string]any{
		"SubjectID": "REF-100",
		"Scope":     "Main Entrance",
		"Timestamp": "2024-06-01T09:00:00Z",
	}

	assert.True(t, Eq("SubjectID", "REF-100").Matches(fields))
	assert.False(t, Eq("SubjectID", "REF-200").Matches(fields))
	assert.False(t, Eq("Missing", "x").Matches(fields))

	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, AtOrAfter("Timestamp", day).Matches(fields))
	assert.True(t, Before("Timestamp", day.AddDate(0, 0, 1)).Matches(fields))
	assert.False(t, Before("Timestamp", day).Matches(fields))

	// Boundary: a timestamp exactly at the bound is at-or-after, not before.
	exact := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	assert.True(t, AtOrAfter("Timestamp", exact).Matches(fields))
	assert.False(t, Before("Timestamp", exact).Matches(fields))

	assert.True(t, And(
		Eq("SubjectID", "REF-100"),
		Eq("Scope", "Main Entrance"),
		AtOrAfter("Timestamp", day),
	).Matches(fields))
	assert.False(t, And(
		Eq("SubjectID", "REF-100"),
		Eq("Scope", "VIP Entrance"),
	).Matches(fields))

	// Records without a parseable timestamp never satisfy time bounds.
	assert.False(t, AtOrAfter("Timestamp", day).Matches(map[string]any{"Timestamp": "yesterday"}))
}
