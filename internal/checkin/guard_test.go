package checkin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/recordstore"
)

const testTable = "CheckinRecords"

func seedCheckin(mem *recordstore.Memory, id, subject, scope string, at time.Time) {
	mem.Seed(testTable, id, map[string]any{
		FieldSubjectID: subject,
		FieldScope:     scope,
		FieldTimestamp: at.UTC().Format(time.RFC3339),
	})
}

func TestGuardReportsLatestTimestamp(t *testing.T) {
	mem := recordstore.NewMemory()
	first := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	seedCheckin(mem, "rec1", "REF-100", "Main Entrance", first)

	guard := NewGuard(mem, testTable, NewWindow("daily", time.UTC))
	at, err := guard.AlreadyCheckedIn(context.Background(), "REF-100", "Main Entrance", first.Add(5*time.Second))
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.True(t, at.Equal(first))
}

func TestGuardScopeIsolation(t *testing.T) {
	mem := recordstore.NewMemory()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	seedCheckin(mem, "rec1", "REF-100", "Main Entrance", now)

	guard := NewGuard(mem, testTable, NewWindow("daily", time.UTC))
	at, err := guard.AlreadyCheckedIn(context.Background(), "REF-100", "VIP Entrance", now)
	require.NoError(t, err)
	assert.Nil(t, at)
}

func TestGuardEmptyScopeMatchesAnyScope(t *testing.T) {
	mem := recordstore.NewMemory()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	seedCheckin(mem, "rec1", "REF-100", "Main Entrance", now)

	guard := NewGuard(mem, testTable, NewWindow("daily", time.UTC))
	at, err := guard.AlreadyCheckedIn(context.Background(), "REF-100", "", now)
	require.NoError(t, err)
	require.NotNil(t, at)
}

func TestGuardWindowRollsOverAtMidnight(t *testing.T) {
	mem := recordstore.NewMemory()
	lateNight := time.Date(2024, 6, 1, 23, 59, 59, 0, time.UTC)
	seedCheckin(mem, "rec1", "REF-100", "Main Entrance", lateNight)

	guard := NewGuard(mem, testTable, NewWindow("daily", time.UTC))

	// Same day: duplicate.
	at, err := guard.AlreadyCheckedIn(context.Background(), "REF-100", "Main Entrance", lateNight)
	require.NoError(t, err)
	require.NotNil(t, at)

	// Two seconds later it is day N+1 and the guard is clear.
	nextDay := time.Date(2024, 6, 2, 0, 0, 1, 0, time.UTC)
	at, err = guard.AlreadyCheckedIn(context.Background(), "REF-100", "Main Entrance", nextDay)
	require.NoError(t, err)
	assert.Nil(t, at)
}

func TestGuardUnboundedWindowNeverRollsOver(t *testing.T) {
	mem := recordstore.NewMemory()
	seedCheckin(mem, "rec1", "REF-100", "Main Entrance", time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))

	guard := NewGuard(mem, testTable, NewWindow("unbounded", time.UTC))
	at, err := guard.AlreadyCheckedIn(context.Background(), "REF-100", "Main Entrance",
		time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, at)
}

func TestGuardPicksMostRecentOfSeveral(t *testing.T) {
	mem := recordstore.NewMemory()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	seedCheckin(mem, "rec1", "REF-100", "Main Entrance", day.Add(8*time.Hour))
	seedCheckin(mem, "rec2", "REF-100", "Main Entrance", day.Add(10*time.Hour))
	seedCheckin(mem, "rec3", "REF-100", "Main Entrance", day.Add(9*time.Hour))

	guard := NewGuard(mem, testTable, NewWindow("unbounded", time.UTC))
	at, err := guard.AlreadyCheckedIn(context.Background(), "REF-100", "Main Entrance", day.Add(11*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.True(t, at.Equal(day.Add(10*time.Hour)))
}
