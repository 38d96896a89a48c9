// Package query describes reads and filters against named collections in a
// backend-neutral form. Values are carried as data, never interpolated into a
// query string; each store backend encodes them with its own quoting rules.
package query

import (
	"bytes"
	"encoding/json"
	"strings"
)

type Op string

const (
	OpEq Op = "eq"
	OpIn Op = "in"
	// OpContains matches when Value is a case-insensitive substring of the field.
	OpContains Op = "contains"
	// OpEqJSON matches when the field holds the JSON document in Value, a
	// canonical encoding from CanonicalJSON. "null" matches a null field.
	OpEqJSON Op = "eq_json"
)

// Condition is a single field predicate.
type Condition struct {
	Field  string
	Op     Op
	Value  any
	Values []any
}

// Clause is a disjunction of conditions. The clauses of a Query are AND-ed.
type Clause []Condition

type Sort struct {
	Field string
	Desc  bool
}

// Window is an inclusive [Start, End] row offset range.
type Window struct {
	Start int
	End   int
}

func (w Window) Limit() int { return w.End - w.Start + 1 }

// PageWindow returns the window of page index with the given size.
func PageWindow(index, size int) Window {
	if index < 0 {
		index = 0
	}
	return Window{Start: index * size, End: (index+1)*size - 1}
}

// Query is a validated read (or update target) description.
type Query struct {
	Collection string
	Columns    []string
	Where      []Clause
	Order      []Sort
	Window     *Window
}

// NormalizeTerm trims a free-text term. ok is false when the term is blank,
// meaning no search filter applies.
func NormalizeTerm(term string) (string, bool) {
	term = strings.TrimSpace(term)
	return term, term != ""
}

// CanonicalJSON encodes v with object keys sorted, so that equal documents
// encode to equal strings.
func CanonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return "", err
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards so s matches literally.
func EscapeLike(s string) string { return likeEscaper.Replace(s) }

var defaultSortFields = map[string]string{
	"datasiswa":        "nama",
	"dataguru":         "nama",
	"kelas":            "nama_kelas",
	"presensi":         "date",
	"attendance":       "date",
	"news":             "title",
	"notifications":    "created_at",
	"alumni":           "name",
	"gallery_albums":   "name",
	"school_locations": "name",
}

// DefaultSortField is the name-like column a collection sorts by by default.
func DefaultSortField(collection string) string {
	if f, ok := defaultSortFields[collection]; ok {
		return f
	}
	return "name"
}
