package auth

import (
	"context"
	"encoding/json"
	"strings"

	"sekolahkita/internal/model"
	"sekolahkita/internal/query"
	"sekolahkita/internal/session"
	"sekolahkita/internal/store"
)

// Teachers decides teacher access from the dataguru staff list.
type Teachers struct {
	store store.Client
}

func NewTeachers(c store.Client) *Teachers { return &Teachers{store: c} }

// IsTeacher reports whether sess belongs to a staff member.
func (t *Teachers) IsTeacher(ctx context.Context, sess session.Session) (bool, error) {
	email := strings.TrimSpace(sess.Email)
	if !sess.Authenticated() || email == "" {
		return false, nil
	}
	q, err := query.From(model.TableTeachers).Select("id").Eq("email", email).Limit(1).Build()
	if err != nil {
		return false, err
	}
	var rows []json.RawMessage
	if err := store.Scoped(t.store, sess).Query(ctx, q, &rows); err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
