// Package export renders check-in records as CSV for spreadsheet tools.
package export

import (
	"encoding/csv"
	"io"
	"time"

	"checkin/internal/checkin"
)

// Columns is the fixed export order.
var Columns = []string{"SubjectID", "FirstName", "LastName", "Email", "Organization", "Scope", "Timestamp"}

// utf8BOM keeps Excel from misreading the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV streams records as UTF-8 CSV with a BOM prefix, one row per record
// in the given order, header first.
func WriteCSV(w io.Writer, records []checkin.Checkin) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.SubjectID,
			rec.FirstName,
			rec.LastName,
			rec.Email,
			rec.Organization,
			rec.Scope,
			rec.Timestamp.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename returns the conventional attachment name for a given day.
func Filename(asOf time.Time) string {
	return "checkin-report-" + asOf.Format("2006-01-02") + ".csv"
}
