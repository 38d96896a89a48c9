package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/query"
)

// Memory is an in-process backend for dev and tests. It evaluates the same
// filter, order and window semantics as the remote backends.
type Memory struct {
	mu   sync.RWMutex
	rows map[string][]map[string]any
}

func NewMemory() *Memory {
	return &Memory{rows: map[string][]map[string]any{}}
}

// Seed appends records to collection without key checks.
func (m *Memory) Seed(collection string, records any) error {
	rows, err := toRows(records)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[collection] = append(m.rows[collection], rows...)
	return nil
}

// Len returns the number of rows stored in collection.
func (m *Memory) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows[collection])
}

func (m *Memory) Query(ctx context.Context, q query.Query, dest any) error {
	if err := ctx.Err(); err != nil {
		return apperr.Transport(err, "query %s", q.Collection)
	}
	m.mu.RLock()
	matched := make([]map[string]any, 0)
	for _, row := range m.rows[q.Collection] {
		if matches(row, q.Where) {
			matched = append(matched, row)
		}
	}
	m.mu.RUnlock()

	sortRows(matched, q.Order)
	if q.Window != nil {
		start, end := q.Window.Start, q.Window.End+1
		if start < 0 {
			start = 0
		}
		if start > len(matched) {
			start = len(matched)
		}
		if end > len(matched) {
			end = len(matched)
		}
		if end < start {
			end = start
		}
		matched = matched[start:end]
	}

	out := make([]map[string]any, 0, len(matched))
	for _, row := range matched {
		out = append(out, project(row, q.Columns))
	}
	return decodeInto(out, dest)
}

func (m *Memory) Write(ctx context.Context, collection string, records any, conflictKey ...string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Transport(err, "write %s", collection)
	}
	rows, err := toRows(records)
	if err != nil {
		return err
	}
	if err := validateWrite(collection, rows, conflictKey); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.rows[collection]
	for _, row := range rows {
		idx := -1
		if len(conflictKey) > 0 {
			for i, existing := range stored {
				if sameKey(existing, row, conflictKey) {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			stored = append(stored, row)
			continue
		}
		merged := make(map[string]any, len(stored[idx])+len(row))
		for k, v := range stored[idx] {
			merged[k] = v
		}
		for k, v := range row {
			merged[k] = v
		}
		stored[idx] = merged
	}
	m.rows[collection] = stored
	return nil
}

func (m *Memory) Update(ctx context.Context, q query.Query, patch map[string]any) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperr.Transport(err, "update %s", q.Collection)
	}
	if len(q.Where) == 0 {
		return 0, apperr.Validation("update %s without a filter", q.Collection)
	}
	rows, err := toRows(patch)
	if err != nil {
		return 0, err
	}
	if err := validateWrite(q.Collection, rows, nil); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i, row := range m.rows[q.Collection] {
		if !matches(row, q.Where) {
			continue
		}
		merged := make(map[string]any, len(row)+len(rows[0]))
		for k, v := range row {
			merged[k] = v
		}
		for k, v := range rows[0] {
			merged[k] = v
		}
		m.rows[q.Collection][i] = merged
		n++
	}
	return n, nil
}

func matches(row map[string]any, where []query.Clause) bool {
	for _, clause := range where {
		ok := false
		for _, c := range clause {
			if evaluate(row, c) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func evaluate(row map[string]any, c query.Condition) bool {
	v, present := row[c.Field]
	if c.Op == query.OpEqJSON {
		return sameJSON(v, scalar(c.Value))
	}
	if !present || v == nil {
		return false
	}
	switch c.Op {
	case query.OpEq:
		return scalar(v) == scalar(c.Value)
	case query.OpIn:
		for _, want := range c.Values {
			if scalar(v) == scalar(want) {
				return true
			}
		}
		return false
	case query.OpContains:
		return strings.Contains(strings.ToLower(scalar(v)), strings.ToLower(scalar(c.Value)))
	}
	return false
}

// scalar renders a value the way it would appear in a query string, so that
// 7, "7" and json.Number("7") compare equal.
func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// sameJSON compares a stored value with a canonical document. Stored JSON
// text is compared by its decoded content.
func sameJSON(v any, doc string) bool {
	if v == nil {
		return doc == "null"
	}
	if s, ok := v.(string); ok && json.Valid([]byte(s)) {
		v = json.RawMessage(s)
	}
	got, err := query.CanonicalJSON(v)
	return err == nil && got == doc
}

func sameKey(a, b map[string]any, key []string) bool {
	for _, k := range key {
		if scalar(a[k]) != scalar(b[k]) {
			return false
		}
	}
	return true
}

func sortRows(rows []map[string]any, order []query.Sort) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, s := range order {
			c := compareValues(rows[i][s.Field], rows[j][s.Field])
			if c == 0 {
				continue
			}
			if s.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compareValues orders numbers numerically and everything else as text.
// Nulls sort after every other value in ascending order.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	as, bs := scalar(a), scalar(b)
	af, aerr := strconv.ParseFloat(as, 64)
	bf, berr := strconv.ParseFloat(bs, 64)
	if aerr == nil && berr == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(as, bs)
}

func project(row map[string]any, cols []string) map[string]any {
	if len(cols) == 0 {
		out := make(map[string]any, len(row))
		for k, v := range row {
			out[k] = v
		}
		return out
	}
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	return out
}
