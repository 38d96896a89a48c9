// Package alumni serves the searchable alumni list.
package alumni

import (
	"context"
	"sort"

	"sekolahkita/internal/model"
	"sekolahkita/internal/query"
	"sekolahkita/internal/session"
	"sekolahkita/internal/store"
)

// Filter narrows the list. Zero values mean no filter.
type Filter struct {
	Term string
	Year int
}

type Result struct {
	Alumni []model.Alumni `json:"alumni"`
	Years  []int          `json:"years"`
}

type Service struct {
	store store.Client
}

func NewService(c store.Client) *Service { return &Service{store: c} }

// Query builds the alumni read for f.
func Query(f Filter) (query.Query, error) {
	b := query.From(model.TableAlumni).
		Search(f.Term, "name", "current_job", "university").
		OrderBy("graduation_year", query.Desc).
		OrderBy("name", query.Asc)
	if f.Year > 0 {
		b = b.Eq("graduation_year", f.Year)
	}
	return b.Build()
}

// List returns matching alumni and the distinct graduation years among them,
// newest first.
func (s *Service) List(ctx context.Context, sess session.Session, f Filter) (Result, error) {
	q, err := Query(f)
	if err != nil {
		return Result{}, err
	}
	var rows []model.Alumni
	if err := store.Scoped(s.store, sess).Query(ctx, q, &rows); err != nil {
		return Result{}, err
	}
	if rows == nil {
		rows = []model.Alumni{}
	}
	return Result{Alumni: rows, Years: years(rows)}, nil
}

func years(rows []model.Alumni) []int {
	seen := map[int]bool{}
	out := []int{}
	for _, a := range rows {
		if !seen[a.GraduationYear] {
			seen[a.GraduationYear] = true
			out = append(out, a.GraduationYear)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
