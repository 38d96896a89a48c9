package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/model"
	"sekolahkita/internal/query"
)

type captured struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   []byte
}

func newRemote(t *testing.T, status int, respBody string) (*PostgREST, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.method = r.Method
		c.path = r.URL.Path
		c.query = r.URL.Query()
		c.header = r.Header.Clone()
		c.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return NewPostgREST(srv.URL+"/", "anon-key"), c
}

func TestPostgRESTQueryEncoding(t *testing.T) {
	p, got := newRemote(t, http.StatusOK, `[{"id":7,"nama":"Budi","nis":"2024007","kelas":"3A","foto_path":null}]`)

	q := query.From(model.TableStudents).
		Select("id", "nama", "nis", "kelas", "foto_path").
		Search(" budi ", "nama", "nis").
		Eq("kelas", "3A").
		Page(1, 50).
		MustBuild()

	var rows []model.Student
	require.NoError(t, p.Query(context.Background(), q, &rows))

	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "/rest/v1/datasiswa", got.path)
	assert.Equal(t, "id,nama,nis,kelas,foto_path", got.query.Get("select"))
	assert.Equal(t, "(nama.ilike.*budi*,nis.ilike.*budi*)", got.query.Get("or"))
	assert.Equal(t, "eq.3A", got.query.Get("kelas"))
	assert.Equal(t, "nama.asc", got.query.Get("order"))
	assert.Equal(t, "50", got.query.Get("offset"))
	assert.Equal(t, "50", got.query.Get("limit"))
	assert.Equal(t, "anon-key", got.header.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", got.header.Get("Authorization"))

	require.Len(t, rows, 1)
	assert.Equal(t, model.ID("7"), rows[0].ID)
	assert.False(t, rows[0].HasPhoto())
}

func TestPostgRESTQuotesReservedCharacters(t *testing.T) {
	p, got := newRemote(t, http.StatusOK, `[]`)

	q := query.From(model.TableAlumni).
		Search(`a,b) "x"`, "name", "university").
		Search("50%", "current_job", "name").
		In("graduation_year", 2019, 2020).
		MustBuild()
	var rows []model.Alumni
	require.NoError(t, p.Query(context.Background(), q, &rows))

	assert.Empty(t, got.query.Get("or"))
	assert.Equal(t,
		`(or(name.ilike."*a,b) \"x\"*",university.ilike."*a,b) \"x\"*"),or(current_job.ilike."*50\\%*",name.ilike."*50\\%*"))`,
		got.query.Get("and"))
	assert.Equal(t, "in.(2019,2020)", got.query.Get("graduation_year"))
}

func TestPostgRESTScopedToken(t *testing.T) {
	p, got := newRemote(t, http.StatusOK, `[]`)
	scoped := Scoped(p, sessionWithToken("user-token"))

	var rows []model.Class
	require.NoError(t, scoped.Query(context.Background(), query.From(model.TableClasses).MustBuild(), &rows))
	assert.Equal(t, "Bearer user-token", got.header.Get("Authorization"))
	assert.Equal(t, "anon-key", got.header.Get("apikey"))

	require.NoError(t, p.Query(context.Background(), query.From(model.TableClasses).MustBuild(), &rows))
	assert.Equal(t, "Bearer anon-key", got.header.Get("Authorization"), "the base client is unchanged")
}

func TestPostgRESTUpsert(t *testing.T) {
	p, got := newRemote(t, http.StatusCreated, ``)

	records := []model.AttendanceRecord{
		{StudentID: "1", Date: model.NewDate(2024, 7, 15), Status: model.StatusPresent, Kelas: "3A"},
		{StudentID: "2", Date: model.NewDate(2024, 7, 15), Status: model.StatusAbsent, Kelas: "3A"},
	}
	require.NoError(t, p.Write(context.Background(), model.TablePresensi, records, "student_id", "date"))

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "student_id,date", got.query.Get("on_conflict"))
	assert.Equal(t, "date,kelas,status,student_id", got.query.Get("columns"))
	assert.Contains(t, got.header.Get("Prefer"), "resolution=merge-duplicates")

	var body []map[string]any
	require.NoError(t, json.Unmarshal(got.body, &body))
	require.Len(t, body, 2)
	assert.Equal(t, "2024-07-15", body[1]["date"])
	assert.Equal(t, "absent", body[1]["status"])
}

func TestPostgRESTUpdateNeedsFilter(t *testing.T) {
	p, got := newRemote(t, http.StatusOK, `[{"id":7}]`)

	_, err := p.Update(context.Background(), query.From(model.TableStudents).MustBuild(), map[string]any{"kelas": "3B"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, got.method, "no request is sent")

	q := query.From(model.TableStudents).Eq("id", model.ID("7")).MustBuild()
	n, err := p.Update(context.Background(), q, map[string]any{"foto_path": "7-1.png"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, http.MethodPatch, got.method)
	assert.Equal(t, "eq.7", got.query.Get("id"))
	assert.Equal(t, "id", got.query.Get("select"))
	assert.Equal(t, "return=representation", got.header.Get("Prefer"))
	assert.JSONEq(t, `{"foto_path":"7-1.png"}`, string(got.body))
}

func TestPostgRESTUpdateReportsNoMatch(t *testing.T) {
	p, got := newRemote(t, http.StatusOK, `[]`)

	q := query.From(model.TableAlbums).
		Eq("id", model.ID("3")).
		EqJSON("photos", []model.Photo{{ID: "a", Path: "3/a.jpg"}}).
		MustBuild()
	n, err := p.Update(context.Background(), q, map[string]any{"photos": []model.Photo{}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, `eq.[{"id":"a","path":"3/a.jpg"}]`, got.query.Get("photos"))

	var none model.Photos
	q = query.From(model.TableAlbums).Eq("id", model.ID("3")).EqJSON("photos", none).MustBuild()
	_, err = p.Update(context.Background(), q, map[string]any{"photos": []model.Photo{}})
	require.NoError(t, err)
	assert.Equal(t, "is.null", got.query.Get("photos"))
}

func TestPostgRESTSearchStarIsLiteral(t *testing.T) {
	p, got := newRemote(t, http.StatusOK, `[]`)

	var rows []model.Student
	q := query.From(model.TableStudents).Search("a*b", "nama").MustBuild()
	require.NoError(t, p.Query(context.Background(), q, &rows))
	assert.Equal(t, `imatch.a\*b`, got.query.Get("nama"))

	q = query.From(model.TableStudents).Search("a*b.", "nama", "nis").MustBuild()
	require.NoError(t, p.Query(context.Background(), q, &rows))
	assert.Equal(t, `(nama.imatch."a\\*b\\.",nis.imatch."a\\*b\\.")`, got.query.Get("or"))
}

func TestPostgRESTEmptyWriteSendsNothing(t *testing.T) {
	p, got := newRemote(t, http.StatusCreated, ``)

	require.NoError(t, p.Write(context.Background(), model.TableAttendance, []model.AttendanceRecord{}, "student_id", "date"))
	assert.Empty(t, got.method)
}

func TestPostgRESTErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusUnauthorized, want: apperr.ErrAuth},
		{status: http.StatusForbidden, want: apperr.ErrAuth},
		{status: http.StatusBadRequest, want: apperr.ErrValidation},
		{status: http.StatusConflict, want: apperr.ErrValidation},
		{status: http.StatusNotFound, want: apperr.ErrNotFound},
		{status: http.StatusBadGateway, want: apperr.ErrTransport},
		{status: http.StatusServiceUnavailable, want: apperr.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			p, _ := newRemote(t, tt.status, `{"code":"PGRST000","message":"boom"}`)
			var rows []model.News
			err := p.Query(context.Background(), query.From(model.TableNews).MustBuild(), &rows)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestPostgRESTNetworkFailureIsTransport(t *testing.T) {
	p := NewPostgREST("http://127.0.0.1:1", "k")
	var rows []model.News
	err := p.Query(context.Background(), query.From(model.TableNews).MustBuild(), &rows)
	assert.ErrorIs(t, err, apperr.ErrTransport)
}

func TestPostgRESTRetriesTransportOnly(t *testing.T) {
	var calls atomic.Int32
	failFor := int32(2)
	code := http.StatusServiceUnavailable
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= failFor {
			w.WriteHeader(code)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	p := NewPostgREST(srv.URL, "k")
	p.Retries = 2
	p.Backoff = time.Millisecond

	var rows []model.News
	require.NoError(t, p.Query(context.Background(), query.From(model.TableNews).MustBuild(), &rows))
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(0)
	code = http.StatusBadRequest
	err := p.Query(context.Background(), query.From(model.TableNews).MustBuild(), &rows)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, int32(1), calls.Load())
}
