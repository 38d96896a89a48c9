package query

import (
	"math"
	"regexp"

	"sekolahkita/internal/apperr"
)

type Direction bool

const (
	Asc  Direction = false
	Desc Direction = true
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether s is safe to use as a collection or column name.
func ValidIdentifier(s string) bool { return identRe.MatchString(s) }

// Builder composes a Query. Errors are deferred to Build.
type Builder struct {
	q      Query
	err    error
	noSort bool
}

func From(collection string) *Builder {
	b := &Builder{q: Query{Collection: collection}}
	b.ident(collection)
	return b
}

func (b *Builder) ident(names ...string) {
	for _, n := range names {
		if b.err == nil && !ValidIdentifier(n) {
			b.err = apperr.Validation("invalid identifier %q", n)
		}
	}
}

func (b *Builder) Select(cols ...string) *Builder {
	b.ident(cols...)
	b.q.Columns = append(b.q.Columns, cols...)
	return b
}

func (b *Builder) Eq(field string, value any) *Builder {
	b.ident(field)
	b.q.Where = append(b.q.Where, Clause{{Field: field, Op: OpEq, Value: value}})
	return b
}

// EqJSON matches rows whose field holds the same JSON document as v. A nil
// value matches a null field.
func (b *Builder) EqJSON(field string, v any) *Builder {
	b.ident(field)
	doc, err := CanonicalJSON(v)
	if err != nil {
		if b.err == nil {
			b.err = apperr.Validation("encode %s: %v", field, err)
		}
		return b
	}
	b.q.Where = append(b.q.Where, Clause{{Field: field, Op: OpEqJSON, Value: doc}})
	return b
}

// In matches rows whose field equals any of values. An empty list matches nothing.
func (b *Builder) In(field string, values ...any) *Builder {
	b.ident(field)
	b.q.Where = append(b.q.Where, Clause{{Field: field, Op: OpIn, Values: values}})
	return b
}

// Search matches rows where term is a case-insensitive substring of any of
// fields. A blank term adds nothing.
func (b *Builder) Search(term string, fields ...string) *Builder {
	if len(fields) == 0 {
		if b.err == nil {
			b.err = apperr.Validation("search needs at least one field")
		}
		return b
	}
	b.ident(fields...)
	term, ok := NormalizeTerm(term)
	if !ok {
		return b
	}
	clause := make(Clause, 0, len(fields))
	for _, f := range fields {
		clause = append(clause, Condition{Field: f, Op: OpContains, Value: term})
	}
	b.q.Where = append(b.q.Where, clause)
	return b
}

// OrderBy appends a sort key; the first call replaces the default sort.
func (b *Builder) OrderBy(field string, dir Direction) *Builder {
	b.ident(field)
	b.q.Order = append(b.q.Order, Sort{Field: field, Desc: bool(dir)})
	return b
}

// Unordered drops the default sort.
func (b *Builder) Unordered() *Builder {
	b.noSort = true
	return b
}

func (b *Builder) Page(index, size int) *Builder {
	if size <= 0 {
		if b.err == nil {
			b.err = apperr.Validation("page size must be positive, got %d", size)
		}
		return b
	}
	if index > (math.MaxInt-size+1)/size {
		if b.err == nil {
			b.err = apperr.Validation("page %d is out of range", index)
		}
		return b
	}
	w := PageWindow(index, size)
	b.q.Window = &w
	return b
}

func (b *Builder) Limit(n int) *Builder { return b.Page(0, n) }

func (b *Builder) Build() (Query, error) {
	if b.err != nil {
		return Query{}, b.err
	}
	q := b.q
	if len(q.Order) == 0 && !b.noSort {
		q.Order = []Sort{{Field: DefaultSortField(q.Collection)}}
	}
	return q, nil
}

// MustBuild is Build for statically known queries.
func (b *Builder) MustBuild() Query {
	q, err := b.Build()
	if err != nil {
		panic(err)
	}
	return q
}
