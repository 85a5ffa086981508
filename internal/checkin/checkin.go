// Package checkin implements the check-in workflow: the duplicate guard, the
// recorder that turns a scanned subject id into at most one stored record per
// window and scope, and the administrative reset operations.
package checkin

import (
	"time"

	"checkin/internal/directory"
	"checkin/internal/recordstore"
)

// Field names of the check-in table. Subject attributes are denormalized onto
// each record so reports and exports need no directory joins.
const (
	FieldSubjectID    = "SubjectID"
	FieldFirstName    = "FirstName"
	FieldLastName     = "LastName"
	FieldEmail        = "Email"
	FieldPhone        = "PhoneNumber"
	FieldOrganization = "Organization"
	FieldScope        = "Scope"
	FieldTimestamp    = "Timestamp"
)

// Checkin is one successful scan event. Records are immutable once written;
// only the admin reset operations remove them.
type Checkin struct {
	RecordID     string    `json:"record_id"`
	SubjectID    string    `json:"subject_id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Organization string    `json:"organization"`
	Scope        string    `json:"scope"`
	Timestamp    time.Time `json:"timestamp"`
}

func fromRecord(rec recordstore.Record) Checkin {
	ts, _ := rec.Time(FieldTimestamp)
	return Checkin{
		RecordID:     rec.ID,
		SubjectID:    rec.String(FieldSubjectID),
		FirstName:    rec.String(FieldFirstName),
		LastName:     rec.String(FieldLastName),
		Email:        rec.String(FieldEmail),
		Phone:        rec.String(FieldPhone),
		Organization: rec.String(FieldOrganization),
		Scope:        rec.String(FieldScope),
		Timestamp:    ts,
	}
}

func recordFields(subject directory.Subject, scope string, at time.Time) map[string]any {
	return map[string]any{
		FieldSubjectID:    subject.RefID,
		FieldFirstName:    subject.FirstName,
		FieldLastName:     subject.LastName,
		FieldEmail:        subject.Email,
		FieldPhone:        subject.Phone,
		FieldOrganization: subject.Organization,
		FieldScope:        scope,
		FieldTimestamp:    at.UTC().Format(time.RFC3339),
	}
}
