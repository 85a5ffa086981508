package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/recordstore"
)

func TestLookup(t *testing.T) {
	mem := recordstore.NewMemory()
	mem.Seed("Subjects", "sub1", map[string]any{
		FieldRefID:        "REF-100",
		FieldFirstName:    "Ada",
		FieldLastName:     "Lovelace",
		FieldEmail:        "ada@example.com",
		FieldPhone:        "+44 20 7946 0000",
		FieldOrganization: "Analytical Engines",
	})

	dir := New(mem, "Subjects")
	subject, err := dir.Lookup(context.Background(), "REF-100")
	require.NoError(t, err)
	assert.Equal(t, "REF-100", subject.RefID)
	assert.Equal(t, "Ada", subject.FirstName)
	assert.Equal(t, "Lovelace", subject.LastName)
	assert.Equal(t, "ada@example.com", subject.Email)
	assert.Equal(t, "Analytical Engines", subject.Organization)
}

func TestLookupNotFound(t *testing.T) {
	dir := New(recordstore.NewMemory(), "Subjects")
	_, err := dir.Lookup(context.Background(), "ZZZ-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupRetriesAsRecordID(t *testing.T) {
	mem := recordstore.NewMemory()
	// Older badges encode the raw store record id rather than the Ref ID
	// column; the miss on Ref ID retries against the record id.
	mem.Seed("Subjects", "recBADGE0001", map[string]any{
		FieldRefID:     "REF-100",
		FieldFirstName: "Ada",
	})

	dir := New(mem, "Subjects")
	subject, err := dir.Lookup(context.Background(), "recBADGE0001")
	require.NoError(t, err)
	assert.Equal(t, "REF-100", subject.RefID)
	assert.Equal(t, "Ada", subject.FirstName)
}

func TestLookupFallsBackToScannedID(t *testing.T) {
	mem := recordstore.NewMemory()
	// Some directory rows have the name columns filled but no Ref ID echo;
	// the scanned id is kept as the subject identity.
	mem.Seed("Subjects", "sub1", map[string]any{
		FieldRefID:     "REF-100",
		FieldFirstName: "Ada",
	})

	dir := New(mem, "Subjects")
	subject, err := dir.Lookup(context.Background(), "REF-100")
	require.NoError(t, err)
	assert.Equal(t, "REF-100", subject.RefID)
	assert.Empty(t, subject.Email)
}
