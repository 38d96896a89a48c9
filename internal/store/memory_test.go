package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/model"
	"sekolahkita/internal/query"
	"sekolahkita/internal/session"
)

func seedStudents(t *testing.T, m *Memory, n int) {
	t.Helper()
	rows := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		kelas := "3A"
		if i%2 == 1 {
			kelas = "3B"
		}
		rows = append(rows, map[string]any{
			"id":    i + 1,
			"nama":  fmt.Sprintf("Siswa %03d", n-i),
			"nis":   fmt.Sprintf("2024%03d", i+1),
			"kelas": kelas,
		})
	}
	require.NoError(t, m.Seed(model.TableStudents, rows))
}

func TestMemoryQueryOrdersAndWindows(t *testing.T) {
	m := NewMemory()
	seedStudents(t, m, 120)

	q := query.From(model.TableStudents).Select("id", "nama").Page(1, 50).MustBuild()
	var got []model.Student
	require.NoError(t, m.Query(context.Background(), q, &got))

	require.Len(t, got, 50)
	assert.Equal(t, "Siswa 051", got[0].Nama)
	assert.Equal(t, "Siswa 100", got[49].Nama)
	assert.Empty(t, got[0].Kelas, "unselected columns are dropped")

	q = query.From(model.TableStudents).Page(2, 50).MustBuild()
	require.NoError(t, m.Query(context.Background(), q, &got))
	assert.Len(t, got, 20)

	q = query.From(model.TableStudents).Page(5, 50).MustBuild()
	require.NoError(t, m.Query(context.Background(), q, &got))
	assert.Empty(t, got)
}

func TestMemoryBlankSearchMatchesEverything(t *testing.T) {
	m := NewMemory()
	seedStudents(t, m, 30)
	ctx := context.Background()

	var all, blank []model.Student
	require.NoError(t, m.Query(ctx, query.From(model.TableStudents).MustBuild(), &all))
	require.NoError(t, m.Query(ctx, query.From(model.TableStudents).Search("   ", "nama", "nis", "kelas").MustBuild(), &blank))
	assert.Len(t, all, 30)
	assert.Equal(t, all, blank)
}

func TestMemorySearchAndFilters(t *testing.T) {
	m := NewMemory()
	seedStudents(t, m, 30)
	ctx := context.Background()

	var got []model.Student
	q := query.From(model.TableStudents).Search("3b", "nama", "nis", "kelas").MustBuild()
	require.NoError(t, m.Query(ctx, q, &got))
	assert.Len(t, got, 15)

	q = query.From(model.TableStudents).Search("siswa 00", "nama", "nis").Eq("kelas", "3A").MustBuild()
	require.NoError(t, m.Query(ctx, q, &got))
	for _, s := range got {
		assert.Equal(t, "3A", s.Kelas)
		assert.Contains(t, s.Nama, "Siswa 00")
	}

	q = query.From(model.TableStudents).In("id", 1, "2", 99).MustBuild()
	require.NoError(t, m.Query(ctx, q, &got))
	assert.Len(t, got, 2)

	q = query.From(model.TableStudents).In("id").MustBuild()
	require.NoError(t, m.Query(ctx, q, &got))
	assert.Empty(t, got)
}

func TestMemoryUpsertIsIdempotentLastWriteWins(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	day := model.NewDate(2024, 7, 15)

	batch := func(status model.Status) []model.AttendanceRecord {
		var out []model.AttendanceRecord
		for _, id := range []model.ID{"1", "2", "3"} {
			out = append(out, model.AttendanceRecord{StudentID: id, Date: day, Status: status, Kelas: "3A"})
		}
		return out
	}

	require.NoError(t, m.Write(ctx, model.TablePresensi, batch(model.StatusPresent), "student_id", "date"))
	require.NoError(t, m.Write(ctx, model.TablePresensi, batch(model.StatusSick), "student_id", "date"))
	assert.Equal(t, 3, m.Len(model.TablePresensi))

	var got []model.AttendanceRecord
	require.NoError(t, m.Query(ctx, query.From(model.TablePresensi).OrderBy("student_id", query.Asc).MustBuild(), &got))
	require.Len(t, got, 3)
	for _, r := range got {
		assert.Equal(t, model.StatusSick, r.Status)
		assert.Equal(t, day, r.Date)
	}

	other := []model.AttendanceRecord{{StudentID: "1", Date: model.NewDate(2024, 7, 16), Status: model.StatusPresent}}
	require.NoError(t, m.Write(ctx, model.TablePresensi, other, "student_id", "date"))
	assert.Equal(t, 4, m.Len(model.TablePresensi))
}

func TestMemoryWriteRejectsMissingKey(t *testing.T) {
	m := NewMemory()
	err := m.Write(context.Background(), model.TablePresensi, map[string]any{"student_id": 1}, "student_id", "date")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	err = m.Write(context.Background(), "presensi;drop", map[string]any{"a": 1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, m.Len(model.TablePresensi))
}

func TestMemoryUpdate(t *testing.T) {
	m := NewMemory()
	seedStudents(t, m, 3)
	ctx := context.Background()

	q := query.From(model.TableStudents).Eq("id", model.ID("2")).MustBuild()
	n, err := m.Update(ctx, q, map[string]any{"foto_path": "2-1700000000000.jpg"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var s model.Student
	require.NoError(t, One(ctx, m, q, &s))
	require.True(t, s.HasPhoto())
	assert.Equal(t, "2-1700000000000.jpg", *s.FotoPath)

	_, err = m.Update(ctx, query.From(model.TableStudents).MustBuild(), map[string]any{"kelas": "X"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	n, err = m.Update(ctx, query.From(model.TableStudents).Eq("id", model.ID("99")).MustBuild(), map[string]any{"kelas": "X"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryUpdateComparesJSON(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Seed(model.TableAlbums, []map[string]any{
		{"id": 1, "name": "Pentas Seni"},
		{"id": 2, "name": "Kemah", "photos": `[{"path":"2/a.jpg","id":"a"}]`},
	}))
	first := []model.Photo{{ID: "a", Path: "1/a.jpg"}}

	var none model.Photos
	q := query.From(model.TableAlbums).Eq("id", 1).EqJSON("photos", none).MustBuild()
	n, err := m.Update(ctx, q, map[string]any{"photos": first})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = m.Update(ctx, q, map[string]any{"photos": []model.Photo{}})
	require.NoError(t, err)
	assert.Zero(t, n, "photos changed since the read")

	q = query.From(model.TableAlbums).Eq("id", 1).EqJSON("photos", first).MustBuild()
	n, err = m.Update(ctx, q, map[string]any{"photos": append(first, model.Photo{ID: "b", Path: "1/b.jpg"})})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	q = query.From(model.TableAlbums).Eq("id", 2).EqJSON("photos", []model.Photo{{ID: "a", Path: "2/a.jpg"}}).MustBuild()
	n, err = m.Update(ctx, q, map[string]any{"name": "Kemah 2024"})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "stored JSON text compares by content")
}

func TestMemoryQueryNegativeWindowStart(t *testing.T) {
	m := NewMemory()
	seedStudents(t, m, 3)

	q := query.From(model.TableStudents).MustBuild()
	q.Window = &query.Window{Start: -50, End: -1}
	var rows []model.Student
	require.NoError(t, m.Query(context.Background(), q, &rows))
	assert.Empty(t, rows)
}

func TestOneNotFound(t *testing.T) {
	m := NewMemory()
	var s model.Student
	err := One(context.Background(), m, query.From(model.TableStudents).Eq("id", 42).MustBuild(), &s)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCompareValuesNullsLast(t *testing.T) {
	rows := []map[string]any{{"y": nil}, {"y": 2019}, {"y": "2021"}, {"y": 2020}}
	sortRows(rows, []query.Sort{{Field: "y"}})
	assert.Equal(t, []any{2019, 2020, "2021", nil}, []any{rows[0]["y"], rows[1]["y"], rows[2]["y"], rows[3]["y"]})
}

func sessionWithToken(token string) session.Session {
	return session.Session{UserID: "u-1", Email: "guru@sekolah.sch.id", AccessToken: token}
}
