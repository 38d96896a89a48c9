// Package gallery lists photo albums and lets teachers add photos to them.
package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/model"
	"sekolahkita/internal/query"
	"sekolahkita/internal/session"
	"sekolahkita/internal/storage"
	"sekolahkita/internal/store"
)

// Photo is a render-ready album photo.
type Photo struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// Album is a render-ready album.
type Album struct {
	ID          model.ID   `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Photos      []Photo    `json:"photos"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

type Service struct {
	store   store.Client
	storage storage.Storage
	log     *logrus.Entry
	newID   func() string
}

func NewService(c store.Client, s storage.Storage, log *logrus.Entry) *Service {
	return &Service{store: c, storage: s, log: log, newID: uuid.NewString}
}

// Albums returns every album, newest first, with photo URLs resolved.
// Photos whose URL cannot be resolved are left out.
func (s *Service) Albums(ctx context.Context, sess session.Session) ([]Album, error) {
	q, err := query.From(model.TableAlbums).OrderBy("created_at", query.Desc).Build()
	if err != nil {
		return nil, err
	}
	var rows []model.Album
	if err := store.Scoped(s.store, sess).Query(ctx, q, &rows); err != nil {
		return nil, err
	}

	var paths []string
	for _, a := range rows {
		for _, p := range a.Photos {
			if !storage.IsURL(p.Path) {
				paths = append(paths, p.Path)
			}
		}
	}
	urls := map[string]string{}
	if len(paths) > 0 {
		urls, err = s.storage.ResolveMany(ctx, model.BucketGallery, paths)
		if err != nil {
			return nil, err
		}
	}

	out := make([]Album, 0, len(rows))
	for _, a := range rows {
		album := Album{ID: a.ID, Name: a.Name, Description: a.Description, CreatedAt: a.CreatedAt, Photos: []Photo{}}
		for _, p := range a.Photos {
			u := p.Path
			if !storage.IsURL(u) {
				u = urls[p.Path]
			}
			if u == "" {
				s.log.WithFields(logrus.Fields{"album_id": string(a.ID), "path": p.Path}).Warn("unresolved photo skipped")
				continue
			}
			album.Photos = append(album.Photos, Photo{ID: p.ID, URL: u, Caption: p.Caption})
		}
		out = append(out, album)
	}
	return out, nil
}

// appendAttempts bounds how often AddPhoto rereads an album whose photo list
// changed between its read and its write.
const appendAttempts = 5

// AddPhoto uploads an image into the album's folder and appends it to the
// album's photo list. The list is only written if it still holds what was
// read, so concurrent uploads to one album never drop each other's photos.
func (s *Service) AddPhoto(ctx context.Context, sess session.Session, albumID model.ID, filename string, body io.Reader, caption string) (Photo, error) {
	if albumID == "" {
		return Photo{}, apperr.Validation("album id is required")
	}
	ext, contentType, err := storage.ImageExt(filename)
	if err != nil {
		return Photo{}, err
	}
	c := store.Scoped(s.store, sess)

	album, err := s.photos(ctx, c, albumID)
	if err != nil {
		return Photo{}, err
	}

	id := s.newID()
	stored, err := s.storage.Upload(ctx, model.BucketGallery, fmt.Sprintf("%s/%s.%s", albumID, id, ext), body, contentType)
	if err != nil {
		return Photo{}, err
	}
	photo := model.Photo{ID: id, Path: stored, Caption: strings.TrimSpace(caption)}
	if err := s.appendPhoto(ctx, c, album, photo); err != nil {
		if rmErr := s.storage.Remove(context.WithoutCancel(ctx), model.BucketGallery, stored); rmErr != nil {
			s.log.WithError(rmErr).WithField("path", stored).Warn("removing orphaned photo failed")
		}
		return Photo{}, err
	}

	u, err := s.storage.Resolve(ctx, model.BucketGallery, stored)
	if err != nil {
		return Photo{}, err
	}
	s.log.WithFields(logrus.Fields{"album_id": string(albumID), "photo_id": id}).Info("photo added")
	return Photo{ID: id, URL: u, Caption: photo.Caption}, nil
}

// storedPhotos is an album's photo list as stored, so an append keeps
// whatever each stored entry carries.
type storedPhotos struct {
	ID     model.ID        `json:"id"`
	Photos json.RawMessage `json:"photos"`
}

// doc returns the stored list as a JSON document, nil when it is null.
func (a storedPhotos) doc() (json.RawMessage, error) {
	raw := bytes.TrimSpace(a.Photos)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		s, err := strconv.Unquote(string(raw))
		if err != nil {
			return nil, fmt.Errorf("decode album %s photos: %w", a.ID, err)
		}
		raw = []byte(s)
	}
	return raw, nil
}

func (s *Service) photos(ctx context.Context, c store.Client, albumID model.ID) (storedPhotos, error) {
	q, err := query.From(model.TableAlbums).Select("id", "photos").Eq("id", albumID).Build()
	if err != nil {
		return storedPhotos{}, err
	}
	var album storedPhotos
	if err := store.One(ctx, c, q, &album); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return storedPhotos{}, apperr.NotFound("album %s not found", albumID)
		}
		return storedPhotos{}, err
	}
	return album, nil
}

// appendPhoto writes the stored list plus p, conditioned on the stored list
// being unchanged since it was read, and rereads the album after a lost race.
func (s *Service) appendPhoto(ctx context.Context, c store.Client, album storedPhotos, p model.Photo) error {
	entry, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode photo: %w", err)
	}
	for attempt := 1; ; attempt++ {
		doc, err := album.doc()
		if err != nil {
			return err
		}
		var list []json.RawMessage
		if doc != nil {
			if err := json.Unmarshal(doc, &list); err != nil {
				return fmt.Errorf("decode album %s photos: %w", album.ID, err)
			}
		}
		target, err := query.From(model.TableAlbums).Eq("id", album.ID).EqJSON("photos", doc).Build()
		if err != nil {
			return err
		}
		n, err := c.Update(ctx, target, map[string]any{"photos": append(list, entry)})
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if attempt == appendAttempts {
			return apperr.Conflict("album %s kept changing, photo not added", album.ID)
		}
		s.log.WithFields(logrus.Fields{"album_id": string(album.ID), "attempt": attempt}).Debug("album changed, retrying append")
		if album, err = s.photos(ctx, c, album.ID); err != nil {
			return err
		}
	}
}
