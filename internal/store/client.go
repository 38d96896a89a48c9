// Package store is the record store client: filtered, ordered, windowed reads
// and keyed writes against named collections of the remote data service.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/query"
	"sekolahkita/internal/session"
)

// Client is implemented by every backend. Implementations hold no
// per-request state and are safe for concurrent use.
type Client interface {
	// Query decodes the matching rows, in order, into dest (a pointer to a slice).
	Query(ctx context.Context, q query.Query, dest any) error
	// Write inserts records; with a conflict key it upserts on those columns
	// and the last write wins.
	Write(ctx context.Context, collection string, records any, conflictKey ...string) error
	// Update patches every row matched by q.Where and returns how many rows
	// it changed.
	Update(ctx context.Context, q query.Query, patch map[string]any) (int, error)
}

// TokenScoper is implemented by backends that forward caller credentials.
type TokenScoper interface {
	WithAccessToken(token string) Client
}

// Scoped returns c acting on behalf of sess when the backend supports it.
func Scoped(c Client, sess session.Session) Client {
	if sess.AccessToken == "" {
		return c
	}
	if s, ok := c.(TokenScoper); ok {
		return s.WithAccessToken(sess.AccessToken)
	}
	return c
}

// One decodes the first matching row into dest, or returns a not-found error.
func One(ctx context.Context, c Client, q query.Query, dest any) error {
	w := query.Window{Start: 0, End: 0}
	q.Window = &w
	var rows []json.RawMessage
	if err := c.Query(ctx, q, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return apperr.NotFound("%s: no matching row", q.Collection)
	}
	if err := json.Unmarshal(rows[0], dest); err != nil {
		return fmt.Errorf("decode %s row: %w", q.Collection, err)
	}
	return nil
}

// toRows normalizes a record, a slice of records or a slice of maps into
// JSON-shaped rows.
func toRows(records any) ([]map[string]any, error) {
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "encode records")
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		raw = append(append([]byte{'['}, raw...), ']')
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "records must be objects")
	}
	return rows, nil
}

func validateWrite(collection string, rows []map[string]any, conflictKey []string) error {
	if !query.ValidIdentifier(collection) {
		return apperr.Validation("invalid collection %q", collection)
	}
	for _, k := range conflictKey {
		if !query.ValidIdentifier(k) {
			return apperr.Validation("invalid conflict key %q", k)
		}
		for i, row := range rows {
			if _, ok := row[k]; !ok {
				return apperr.Validation("%s: record %d is missing conflict key %q", collection, i, k)
			}
		}
	}
	for _, row := range rows {
		for col := range row {
			if !query.ValidIdentifier(col) {
				return apperr.Validation("%s: invalid column %q", collection, col)
			}
		}
	}
	return nil
}

// columns returns the sorted union of keys across rows.
func columns(rows []map[string]any) []string {
	seen := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func decodeInto(rows any, dest any) error {
	raw, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
