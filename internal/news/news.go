// Package news serves the home page headlines.
package news

import (
	"context"

	"sekolahkita/internal/model"
	"sekolahkita/internal/query"
	"sekolahkita/internal/session"
	"sekolahkita/internal/store"
)

const HeadlineCount = 5

type Service struct {
	store store.Client
}

func NewService(c store.Client) *Service { return &Service{store: c} }

// Latest returns the newest headlines.
func (s *Service) Latest(ctx context.Context, sess session.Session) ([]model.News, error) {
	q, err := query.From(model.TableNews).OrderBy("created_at", query.Desc).Limit(HeadlineCount).Build()
	if err != nil {
		return nil, err
	}
	out := []model.News{}
	if err := store.Scoped(s.store, sess).Query(ctx, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
