// Package directory resolves scanned reference ids against the external
// subject table. The table is read-only from this service's point of view;
// subjects are issued elsewhere.
package directory

import (
	"context"
	"errors"
	"fmt"

	"checkin/internal/recordstore"
)

// Field names of the Subjects table.
const (
	FieldRefID        = "Ref ID"
	FieldFirstName    = "First name"
	FieldLastName     = "Last name"
	FieldEmail        = "Email"
	FieldPhone        = "Phone Number"
	FieldOrganization = "Organization"
)

// ErrNotFound means the scanned id has no directory entry, usually a bad or
// foreign QR code.
var ErrNotFound = errors.New("subject not found in directory")

// Subject is one attendee identity.
type Subject struct {
	RefID        string
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Organization string
}

// Directory looks up subjects in the record store.
type Directory struct {
	store recordstore.Store
	table string
}

// New creates a directory over the given table.
func New(store recordstore.Store, table string) *Directory {
	return &Directory{store: store, table: table}
}

// Lookup resolves a scanned id to a subject. It filters by the reference-id
// column first; on a miss the id is retried as the store record id, since some
// printed badges encode that instead.
func (d *Directory) Lookup(ctx context.Context, refID string) (Subject, error) {
	records, err := d.store.Query(ctx, d.table, recordstore.QueryOptions{
		Filter:     recordstore.Eq(FieldRefID, refID),
		MaxRecords: 1,
	})
	if err != nil {
		return Subject{}, fmt.Errorf("directory lookup: %w", err)
	}
	if len(records) > 0 {
		return subjectFromRecord(records[0], refID), nil
	}

	rec, found, err := d.store.Get(ctx, d.table, refID)
	if err != nil {
		return Subject{}, fmt.Errorf("directory lookup: %w", err)
	}
	if !found {
		return Subject{}, fmt.Errorf("%w: %s", ErrNotFound, refID)
	}
	return subjectFromRecord(rec, refID), nil
}

func subjectFromRecord(rec recordstore.Record, scannedID string) Subject {
	return Subject{
		RefID:        firstNonEmpty(rec.String(FieldRefID), scannedID),
		FirstName:    rec.String(FieldFirstName),
		LastName:     rec.String(FieldLastName),
		Email:        rec.String(FieldEmail),
		Phone:        rec.String(FieldPhone),
		Organization: rec.String(FieldOrganization),
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
