package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"checkin/internal/directory"
	"checkin/internal/recordstore"
)

// SubjectSource resolves scanned reference ids.
type SubjectSource interface {
	Lookup(ctx context.Context, refID string) (directory.Subject, error)
}

// Service orchestrates verify -> guard -> write as one logical operation.
type Service struct {
	store    recordstore.Store
	subjects SubjectSource
	guard    *Guard
	table    string
	logger   *slog.Logger

	// Now is the clock; tests override it. The timestamp is captured once
	// per Record call and used for both the guard window and the stored
	// value.
	Now func() time.Time

	// Timeout bounds each Record/Reset invocation end to end. Zero disables
	// the deadline.
	Timeout time.Duration

	// RequireScope rejects scans without a scope. Multi-door deployments set
	// it so a forgotten door selection cannot silently record an any-scope
	// check-in.
	RequireScope bool
}

// NewService creates the recorder.
func NewService(store recordstore.Store, subjects SubjectSource, guard *Guard, table string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		subjects: subjects,
		guard:    guard,
		table:    table,
		logger:   logger.With("component", "checkin"),
		Now:      time.Now,
	}
}

// Record checks a subject in at scope. On success exactly one record is
// inserted; on every failure path, zero. Failure modes: *ValidationError,
// ErrSubjectNotFound, *AlreadyCheckedInError, *StoreError.
func (s *Service) Record(ctx context.Context, subjectID, scope string) (Checkin, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return Checkin{}, &ValidationError{Msg: "subject id required"}
	}
	scope = strings.TrimSpace(scope)
	if s.RequireScope && scope == "" {
		return Checkin{}, &ValidationError{Msg: "scope required"}
	}
	ctx, cancel := s.deadline(ctx)
	defer cancel()

	now := s.Now()

	subject, err := s.subjects.Lookup(ctx, subjectID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Checkin{}, fmt.Errorf("%w: %s", ErrSubjectNotFound, subjectID)
		}
		return Checkin{}, &StoreError{Op: "resolve subject", Err: err}
	}

	if at, err := s.guard.AlreadyCheckedIn(ctx, subjectID, scope, now); err != nil {
		return Checkin{}, &StoreError{Op: "duplicate check", Err: err}
	} else if at != nil {
		return Checkin{}, &AlreadyCheckedInError{SubjectID: subjectID, Scope: scope, At: *at}
	}

	// The guard filter doubles as the conditional-write predicate, so
	// backends with a real conditional write close the check-then-act race.
	rec, created, err := s.store.CreateIfAbsent(ctx, s.table, recordFields(subject, scope, now), s.guard.filter(subjectID, scope, now))
	if err != nil {
		return Checkin{}, &StoreError{Op: "write check-in", Err: err}
	}
	if !created {
		existing := fromRecord(rec)
		return Checkin{}, &AlreadyCheckedInError{SubjectID: subjectID, Scope: scope, At: existing.Timestamp}
	}

	out := fromRecord(rec)
	s.logger.Info("check-in recorded",
		"subject", subjectID, "scope", scope, "record", out.RecordID, "at", out.Timestamp)
	return out, nil
}

// List returns check-ins newest first, optionally restricted to one scope.
func (s *Service) List(ctx context.Context, scope string, limit int) ([]Checkin, error) {
	ctx, cancel := s.deadline(ctx)
	defer cancel()

	opts := recordstore.QueryOptions{
		SortField:  FieldTimestamp,
		SortDesc:   true,
		MaxRecords: limit,
	}
	if scope != "" {
		opts.Filter = recordstore.Eq(FieldScope, scope)
	}
	records, err := s.store.Query(ctx, s.table, opts)
	if err != nil {
		return nil, &StoreError{Op: "list check-ins", Err: err}
	}
	out := make([]Checkin, 0, len(records))
	for _, rec := range records {
		out = append(out, fromRecord(rec))
	}
	return out, nil
}

// All fetches every check-in record, newest first. Reports and exports scan
// this set; volumes are event-scale, so the full fetch is acceptable.
func (s *Service) All(ctx context.Context) ([]Checkin, error) {
	return s.List(ctx, "", 0)
}

// Reset deletes a subject's check-in history, clearing the at-most-once rule
// for it going forward. An empty scope clears every scope. Returns how many
// records went away.
func (s *Service) Reset(ctx context.Context, subjectID, scope string) (int, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return 0, &ValidationError{Msg: "subject id required"}
	}
	ctx, cancel := s.deadline(ctx)
	defer cancel()

	terms := []recordstore.Filter{recordstore.Eq(FieldSubjectID, subjectID)}
	if scope != "" {
		terms = append(terms, recordstore.Eq(FieldScope, scope))
	}
	records, err := s.store.Query(ctx, s.table, recordstore.QueryOptions{Filter: recordstore.And(terms...)})
	if err != nil {
		return 0, &StoreError{Op: "reset query", Err: err}
	}
	if len(records) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	if err := s.store.DeleteRecords(ctx, s.table, ids); err != nil {
		return 0, &StoreError{Op: "reset delete", Err: err}
	}
	s.logger.Info("check-in history reset", "subject", subjectID, "scope", scope, "deleted", len(ids))
	return len(ids), nil
}

// DeleteRecords removes arbitrary check-in records by store id.
func (s *Service) DeleteRecords(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return &ValidationError{Msg: "record ids required"}
	}
	ctx, cancel := s.deadline(ctx)
	defer cancel()

	if err := s.store.DeleteRecords(ctx, s.table, ids); err != nil {
		return &StoreError{Op: "delete records", Err: err}
	}
	return nil
}

func (s *Service) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.Timeout)
}
