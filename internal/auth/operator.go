package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"checkin/internal/recordstore"
)

// Field names of the Operators table.
const (
	FieldUsername     = "Username"
	FieldPassword     = "Password"
	FieldOrganization = "Organization"
	FieldBooth        = "Booth"
)

// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Operator is a logged-in check-in operator.
type Operator struct {
	Username     string `json:"username"`
	Organization string `json:"organization,omitempty"`
	Booth        string `json:"booth,omitempty"`
}

// Authenticator checks operator credentials against the store. The remote
// table holds whatever the deployment provisioned; the password column is
// fetched and compared locally rather than interpolated into a remote filter
// expression.
type Authenticator struct {
	store recordstore.Store
	table string
}

// NewAuthenticator creates an authenticator over the operator table.
func NewAuthenticator(store recordstore.Store, table string) *Authenticator {
	return &Authenticator{store: store, table: table}
}

// Login verifies a username/password pair.
func (a *Authenticator) Login(ctx context.Context, username, password string) (Operator, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Operator{}, ErrInvalidCredentials
	}
	records, err := a.store.Query(ctx, a.table, recordstore.QueryOptions{
		Filter:     recordstore.Eq(FieldUsername, username),
		MaxRecords: 1,
	})
	if err != nil {
		return Operator{}, fmt.Errorf("credential lookup: %w", err)
	}
	if len(records) == 0 {
		return Operator{}, ErrInvalidCredentials
	}
	rec := records[0]
	stored := rec.String(FieldPassword)
	if subtle.ConstantTimeCompare([]byte(stored), []byte(password)) != 1 {
		return Operator{}, ErrInvalidCredentials
	}
	return Operator{
		Username:     rec.String(FieldUsername),
		Organization: rec.String(FieldOrganization),
		Booth:        rec.String(FieldBooth),
	}, nil
}
