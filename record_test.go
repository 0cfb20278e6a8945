package sharetoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProject_DefaultSelection(t *testing.T) {
	claims := Project(SampleRecord(), DefaultSelection())

	require.Equal(t, []string{FieldIDNumber, FieldFullName, FieldDateOfBirth, FieldIssuedDate}, claims.Names())
	_, ok := claims.Get(FieldHash)
	require.False(t, ok, "hash is deselected by default")
}

func TestProject_OnlySelectedFields(t *testing.T) {
	rec := SampleRecord()
	sel := Selection{
		FieldFullName: true,
		FieldIDNumber: true,
		FieldHash:     false,
		"nickname":    true,
	}
	claims := Project(rec, sel)

	require.Equal(t, ClaimSet{
		{Name: FieldIDNumber, Value: "X123"},
		{Name: FieldFullName, Value: "A. Silva"},
	}, claims)

	for _, name := range claims.Names() {
		require.True(t, sel[name], "claim %q was not selected", name)
	}
}

func TestProject_EmptySelection(t *testing.T) {
	claims := Project(SampleRecord(), Selection{})
	require.NotNil(t, claims)
	require.Equal(t, 0, claims.Len())

	claims = Project(SampleRecord(), nil)
	require.NotNil(t, claims)
	require.Equal(t, 0, claims.Len())
}

func TestProject_FormatsNonStringFields(t *testing.T) {
	rec := SampleRecord()
	rec.UpdatedAt = time.Date(2024, time.April, 2, 12, 0, 0, 0, time.FixedZone("UTC+2", 2*3600))

	claims := Project(rec, SelectFields(RecordFields()...))
	require.Equal(t, RecordFields(), claims.Names())

	v, _ := claims.Get(FieldIsVerified)
	require.Equal(t, "true", v)
	v, _ = claims.Get(FieldCreatedAt)
	require.Equal(t, "2024-03-01T09:30:00Z", v)
	v, _ = claims.Get(FieldUpdatedAt)
	require.Equal(t, "2024-04-02T10:00:00Z", v)

	rec.CreatedAt = time.Time{}
	v, _ = Project(rec, SelectFields(FieldCreatedAt)).Get(FieldCreatedAt)
	require.Equal(t, "", v)
}

func TestProject_DoesNotMutateRecord(t *testing.T) {
	rec := SampleRecord()
	before := rec
	_ = Project(rec, SelectFields(RecordFields()...))
	require.Equal(t, before, rec)
}

func TestSelection_Selected(t *testing.T) {
	sel := SelectFields(FieldHash, FieldFullName, "unknown")
	require.Equal(t, []string{FieldFullName, FieldHash}, sel.Selected())

	fields := RecordFields()
	fields[0] = "mutated"
	require.Equal(t, FieldIDNumber, RecordFields()[0])
}

func TestUnknownFields(t *testing.T) {
	require.Empty(t, UnknownFields(RecordFields()...))
	require.Equal(t, []string{"fullname", "email"}, UnknownFields(FieldFullName, "fullname", "email"))
	require.Empty(t, UnknownFields())
}
