package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/checkin"
)

func TestWriteCSV(t *testing.T) {
	records := []checkin.Checkin{
		{
			SubjectID:    "REF-100",
			FirstName:    "Ada",
			LastName:     "Lovelace",
			Email:        "ada@example.com",
			Organization: "Analytical Engines",
			Scope:        "Main Entrance",
			Timestamp:    time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			SubjectID: "REF-200",
			FirstName: "Grace, the \"Admiral\"",
			Scope:     "VIP Entrance",
			Timestamp: time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	raw := buf.Bytes()
	require.True(t, bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}), "BOM prefix for spreadsheet tools")

	rows, err := csv.NewReader(bytes.NewReader(raw[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per record")

	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{"REF-100", "Ada", "Lovelace", "ada@example.com", "Analytical Engines", "Main Entrance", "2024-06-01T09:00:00Z"}, rows[1])
	// Commas and quotes in field values survive the round trip.
	assert.Equal(t, "Grace, the \"Admiral\"", rows[2][1])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes()[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Columns, rows[0])
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "checkin-report-2024-06-01.csv",
		Filename(time.Date(2024, 6, 1, 15, 4, 5, 0, time.UTC)))
}
