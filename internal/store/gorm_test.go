package store

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/model"
	"sekolahkita/internal/query"
)

func dryRunGorm(t *testing.T) (*Gorm, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=portal dbname=portal sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return NewGorm(db), db
}

func TestGormReadSQL(t *testing.T) {
	g, db := dryRunGorm(t)

	q := query.From(model.TableStudents).
		Select("id", "nama").
		Search("bu_di", "nama", "nis").
		Eq("kelas", "3A").
		Page(1, 50).
		MustBuild()

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []map[string]any
		return g.read(tx, q).Find(&rows)
	})

	assert.Contains(t, sql, `SELECT "id","nama" FROM "datasiswa"`)
	assert.Contains(t, sql, `"nama" ILIKE '%bu\_di%' OR "nis" ILIKE '%bu\_di%'`)
	assert.Contains(t, sql, `"kelas" = '3A'`)
	assert.Contains(t, sql, `ORDER BY "nama"`)
	assert.Contains(t, sql, "LIMIT 50 OFFSET 50")
}

func TestGormReadOrderAndIn(t *testing.T) {
	g, db := dryRunGorm(t)

	q := query.From(model.TableAlumni).
		In("graduation_year", 2019, 2020).
		OrderBy("graduation_year", query.Desc).
		OrderBy("name", query.Asc).
		MustBuild()

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []map[string]any
		return g.read(tx, q).Find(&rows)
	})
	assert.Contains(t, sql, `"graduation_year" IN (2019,2020)`)
	assert.Contains(t, sql, `ORDER BY "graduation_year" DESC,"name"`)
}

func TestGormJSONCondition(t *testing.T) {
	g, db := dryRunGorm(t)

	q := query.From(model.TableAlbums).
		Eq("id", 3).
		EqJSON("photos", []model.Photo{{ID: "a", Path: "3/a.jpg"}}).
		MustBuild()
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []map[string]any
		return g.read(tx, q).Find(&rows)
	})
	assert.Contains(t, sql, `"photos" = CAST('[{"id":"a","path":"3/a.jpg"}]' AS jsonb)`)

	var none model.Photos
	q = query.From(model.TableAlbums).Eq("id", 3).EqJSON("photos", none).MustBuild()
	sql = db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []map[string]any
		return g.read(tx, q).Find(&rows)
	})
	assert.Contains(t, sql, `"photos" IS NULL`)
}

func TestGormUpsertSQL(t *testing.T) {
	g, db := dryRunGorm(t)

	rows, err := toRows([]model.AttendanceRecord{
		{StudentID: "1", Date: model.NewDate(2024, 7, 15), Status: model.StatusPresent, Kelas: "3A"},
		{StudentID: "2", Date: model.NewDate(2024, 7, 15), Status: model.StatusAbsent, Kelas: "3A"},
	})
	require.NoError(t, err)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return g.write(tx, model.TablePresensi, rows, []string{"student_id", "date"})
	})
	assert.Contains(t, sql, `INSERT INTO "presensi"`)
	assert.Contains(t, sql, `ON CONFLICT ("student_id","date") DO UPDATE SET`)
	assert.Contains(t, sql, `"status"="excluded"."status"`)
	assert.Contains(t, sql, `"kelas"="excluded"."kelas"`)
	assert.NotContains(t, sql, `"date"="excluded"."date"`)
}

func TestDBValue(t *testing.T) {
	assert.Equal(t, int64(7), dbValue(json.Number("7")))
	assert.Equal(t, 1.5, dbValue(json.Number("1.5")))
	assert.Equal(t, "2024-07-15", dbValue(model.NewDate(2024, 7, 15)))
	assert.Equal(t, `[{"id":"p1","path":"1/a.jpg"}]`, dbValue([]any{map[string]any{"id": "p1", "path": "1/a.jpg"}}))
	assert.Equal(t, "3A", dbValue("3A"))
}

func TestPgErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, want: apperr.ErrValidation},
		{name: "privilege", err: &pgconn.PgError{Code: "42501"}, want: apperr.ErrAuth},
		{name: "missing table", err: &pgconn.PgError{Code: "42P01"}, want: apperr.ErrNotFound},
		{name: "record not found", err: gorm.ErrRecordNotFound, want: apperr.ErrNotFound},
		{name: "connection", err: errors.New("dial tcp: connection refused"), want: apperr.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, pgError(tt.err, "query %s", "datasiswa"), tt.want)
		})
	}
}
