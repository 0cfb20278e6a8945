package sharetoken

import (
	"context"
	"slices"
	"strconv"
	"time"
)

// Claim names as they appear on the wire, in canonical order.
const (
	FieldIDNumber    = "idNumber"
	FieldFullName    = "fullName"
	FieldDateOfBirth = "dateOfBirth"
	FieldIssuedDate  = "issuedDate"
	FieldHash        = "hash"
	FieldIsVerified  = "isVerified"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
)

var recordFields = []string{
	FieldIDNumber,
	FieldFullName,
	FieldDateOfBirth,
	FieldIssuedDate,
	FieldHash,
	FieldIsVerified,
	FieldCreatedAt,
	FieldUpdatedAt,
}

// IdentityRecord is the identity card stored by the wallet. The engine only reads it.
type IdentityRecord struct {
	IDNumber    string    `json:"idNumber"`
	FullName    string    `json:"fullName"`
	DateOfBirth string    `json:"dateOfBirth"`
	IssuedDate  string    `json:"issuedDate"`
	Hash        string    `json:"hash"`
	IsVerified  bool      `json:"isVerified,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RecordSource loads the holder's identity record from wherever the wallet keeps it.
type RecordSource interface {
	LoadRecord(ctx context.Context) (IdentityRecord, error)
}

// RecordSourceFunc adapts a function to RecordSource.
type RecordSourceFunc func(ctx context.Context) (IdentityRecord, error)

// LoadRecord implements RecordSource.
func (f RecordSourceFunc) LoadRecord(ctx context.Context) (IdentityRecord, error) {
	return f(ctx)
}

// StaticRecord returns a RecordSource that always yields rec.
func StaticRecord(rec IdentityRecord) RecordSource {
	return RecordSourceFunc(func(context.Context) (IdentityRecord, error) {
		return rec, nil
	})
}

// RecordFields returns the disclosable field names in canonical order.
func RecordFields() []string {
	return append([]string(nil), recordFields...)
}

// UnknownFields returns the names that are not disclosable record fields, in input order.
func UnknownFields(names ...string) []string {
	var unknown []string
	for _, name := range names {
		if !slices.Contains(recordFields, name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// field returns the wire value of a record field.
func (r IdentityRecord) field(name string) (string, bool) {
	switch name {
	case FieldIDNumber:
		return r.IDNumber, true
	case FieldFullName:
		return r.FullName, true
	case FieldDateOfBirth:
		return r.DateOfBirth, true
	case FieldIssuedDate:
		return r.IssuedDate, true
	case FieldHash:
		return r.Hash, true
	case FieldIsVerified:
		return strconv.FormatBool(r.IsVerified), true
	case FieldCreatedAt:
		return formatTimestamp(r.CreatedAt), true
	case FieldUpdatedAt:
		return formatTimestamp(r.UpdatedAt), true
	}
	return "", false
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Selection maps a field name to whether the holder chose to disclose it.
type Selection map[string]bool

// DefaultSelection mirrors the wallet's share dialog: everything printed on the
// card is preselected, the integrity hash is not.
func DefaultSelection() Selection {
	return Selection{
		FieldFullName:    true,
		FieldIDNumber:    true,
		FieldDateOfBirth: true,
		FieldIssuedDate:  true,
		FieldHash:        false,
	}
}

// SelectFields builds a Selection with exactly the given fields enabled.
func SelectFields(names ...string) Selection {
	sel := make(Selection, len(names))
	for _, n := range names {
		sel[n] = true
	}
	return sel
}

// Selected returns the enabled field names in canonical order. Unknown names are dropped.
func (s Selection) Selected() []string {
	out := make([]string, 0, len(s))
	for _, name := range recordFields {
		if s[name] {
			out = append(out, name)
		}
	}
	return out
}

// Project copies the selected fields of rec into a ClaimSet in canonical field
// order. Names the record does not have are ignored; an empty selection yields
// an empty set.
func Project(rec IdentityRecord, selection Selection) ClaimSet {
	out := ClaimSet{}
	for _, name := range selection.Selected() {
		value, _ := rec.field(name)
		out = append(out, Claim{Name: name, Value: value})
	}
	return out
}
