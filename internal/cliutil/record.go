package cliutil

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	sharetoken "github.com/bionicotaku/idwallet-sharetoken"
)

// RecordFile returns a RecordSource reading an identity record stored as JSON
// at path. The file is read on every load; a missing file is ErrNoRecord.
func RecordFile(path string) sharetoken.RecordSource {
	return sharetoken.RecordSourceFunc(func(ctx context.Context) (sharetoken.IdentityRecord, error) {
		if err := ctx.Err(); err != nil {
			return sharetoken.IdentityRecord{}, err
		}
		raw, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return sharetoken.IdentityRecord{}, sharetoken.ErrNoRecord
		}
		if err != nil {
			return sharetoken.IdentityRecord{}, fmt.Errorf("read record: %w", err)
		}
		var rec sharetoken.IdentityRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return sharetoken.IdentityRecord{}, fmt.Errorf("decode record %s: %w", path, err)
		}
		if rec.IDNumber == "" && rec.FullName == "" {
			return sharetoken.IdentityRecord{}, sharetoken.ErrNoRecord
		}
		return rec, nil
	})
}
