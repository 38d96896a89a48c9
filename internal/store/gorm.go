package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/query"
)

// Gorm runs queries directly against the Postgres database behind the
// hosted service.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm { return &Gorm{db: db} }

// OpenPostgres wraps an existing pgx pool (see NewDB) in gorm.
func OpenPostgres(sqlDB *sql.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
}

func (g *Gorm) Query(ctx context.Context, q query.Query, dest any) error {
	var rows []map[string]any
	if err := g.read(g.db.WithContext(ctx), q).Find(&rows).Error; err != nil {
		return pgError(err, "query %s", q.Collection)
	}
	for _, row := range rows {
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = json.RawMessage(b)
				if !json.Valid(b) {
					row[k] = string(b)
				}
			}
		}
	}
	if err := decodeInto(rows, dest); err != nil {
		return fmt.Errorf("decode %s rows: %w", q.Collection, err)
	}
	return nil
}

func (g *Gorm) Write(ctx context.Context, collection string, records any, conflictKey ...string) error {
	rows, err := toRows(records)
	if err != nil {
		return err
	}
	if err := validateWrite(collection, rows, conflictKey); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if err := g.write(g.db.WithContext(ctx), collection, rows, conflictKey).Error; err != nil {
		return pgError(err, "write %s", collection)
	}
	return nil
}

func (g *Gorm) Update(ctx context.Context, q query.Query, patch map[string]any) (int, error) {
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
	tx := g.db.WithContext(ctx).Table(q.Collection).Clauses(where(q.Where)).Updates(dbValues(rows[0]))
	if tx.Error != nil {
		return 0, pgError(tx.Error, "update %s", q.Collection)
	}
	return int(tx.RowsAffected), nil
}

func (g *Gorm) read(tx *gorm.DB, q query.Query) *gorm.DB {
	tx = tx.Table(q.Collection)
	if len(q.Columns) > 0 {
		tx = tx.Select(q.Columns)
	}
	if len(q.Where) > 0 {
		tx = tx.Clauses(where(q.Where))
	}
	for _, s := range q.Order {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: s.Field}, Desc: s.Desc})
	}
	if q.Window != nil {
		tx = tx.Offset(q.Window.Start).Limit(q.Window.Limit())
	}
	return tx
}

func (g *Gorm) write(tx *gorm.DB, collection string, rows []map[string]any, conflictKey []string) *gorm.DB {
	values := make([]map[string]any, len(rows))
	for i, row := range rows {
		values[i] = dbValues(row)
	}
	tx = tx.Table(collection)
	if len(conflictKey) > 0 {
		keys := make([]clause.Column, len(conflictKey))
		isKey := map[string]bool{}
		for i, k := range conflictKey {
			keys[i] = clause.Column{Name: k}
			isKey[k] = true
		}
		var rest []string
		for _, c := range columns(rows) {
			if !isKey[c] {
				rest = append(rest, c)
			}
		}
		oc := clause.OnConflict{Columns: keys, DoNothing: len(rest) == 0}
		if len(rest) > 0 {
			oc.DoUpdates = clause.AssignmentColumns(rest)
		}
		tx = tx.Clauses(oc)
	}
	return tx.Create(&values)
}

func where(clauses []query.Clause) clause.Where {
	exprs := make([]clause.Expression, 0, len(clauses))
	for _, c := range clauses {
		if len(c) == 0 {
			continue
		}
		or := make([]clause.Expression, 0, len(c))
		for _, cond := range c {
			or = append(or, condition(cond))
		}
		if len(or) == 1 {
			exprs = append(exprs, or[0])
			continue
		}
		exprs = append(exprs, clause.Or(or...))
	}
	return clause.Where{Exprs: exprs}
}

func condition(c query.Condition) clause.Expression {
	col := clause.Column{Name: c.Field}
	switch c.Op {
	case query.OpIn:
		vals := make([]any, len(c.Values))
		for i, v := range c.Values {
			vals[i] = dbValue(v)
		}
		return clause.IN{Column: col, Values: vals}
	case query.OpContains:
		return clause.Expr{SQL: "? ILIKE ?", Vars: []any{col, "%" + query.EscapeLike(scalar(c.Value)) + "%"}}
	case query.OpEqJSON:
		doc := scalar(c.Value)
		if doc == "null" {
			return clause.Expr{SQL: "? IS NULL", Vars: []any{col}}
		}
		return clause.Expr{SQL: "? = CAST(? AS jsonb)", Vars: []any{col, doc}}
	}
	return clause.Eq{Column: col, Value: dbValue(c.Value)}
}

func dbValues(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = dbValue(v)
	}
	return out
}

// dbValue converts decoded JSON values into driver-friendly ones. Nested
// objects and arrays are stored as JSON text for jsonb columns.
func dbValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		return string(b)
	case fmt.Stringer:
		return t.String()
	}
	return v
}

func pgError(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Wrap(apperr.KindNotFound, err, format, args...)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42501" || strings.HasPrefix(pgErr.Code, "28"):
			return apperr.Wrap(apperr.KindAuth, err, format, args...)
		case pgErr.Code == "42P01":
			return apperr.Wrap(apperr.KindNotFound, err, format, args...)
		case strings.HasPrefix(pgErr.Code, "22"), strings.HasPrefix(pgErr.Code, "23"), strings.HasPrefix(pgErr.Code, "42"):
			return apperr.Wrap(apperr.KindValidation, err, format, args...)
		}
	}
	return apperr.Transport(err, format, args...)
}
