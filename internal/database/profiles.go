package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/NaN-tic/csvimport/internal/core"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type ProfileRepo struct{ *Repo }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{NewRepo(db)} }

var profileColumns = []string{
	"id", "name", "collection", "active", "header",
	"separator", "quote", "character_encoding", "thousands_separator", "decimal_separator",
	"strategy", "skip_repeated", "update_record", "notify", "columns", "exclude",
}

// Create validates and inserts a profile, assigning its id.
func (r *ProfileRepo) Create(ctx context.Context, p *core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	columns, exclude, err := marshalMappings(p)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	q := r.SQ.Insert("profiles").
		Columns("name", "collection", "active", "header",
			"separator", "quote", "character_encoding", "thousands_separator", "decimal_separator",
			"strategy", "skip_repeated", "update_record", "notify", "columns", "exclude",
			"created_at", "updated_at").
		Values(p.Name, p.Collection, p.Active, p.Header,
			p.Separator, p.Quote, p.CharacterEncoding, p.ThousandsSeparator, p.DecimalSeparator,
			string(p.Strategy), p.SkipRepeated, p.UpdateRecord, p.Notify, columns, exclude,
			now, now)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

// Get returns the profile with the given id.
func (r *ProfileRepo) Get(ctx context.Context, id int64) (*core.Profile, error) {
	return r.get(ctx, sq.Eq{"id": id})
}

// GetByName returns the profile with the given name.
func (r *ProfileRepo) GetByName(ctx context.Context, name string) (*core.Profile, error) {
	return r.get(ctx, sq.Eq{"name": name})
}

func (r *ProfileRepo) get(ctx context.Context, where sq.Eq) (*core.Profile, error) {
	q := r.SQ.Select(profileColumns...).From("profiles").Where(where)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	p, err := scanProfile(r.DB.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List returns every profile, newest first. With activeOnly set,
// inactive profiles are filtered out.
func (r *ProfileRepo) List(ctx context.Context, activeOnly bool) ([]*core.Profile, error) {
	q := r.SQ.Select(profileColumns...).From("profiles").OrderBy("id DESC")
	if activeOnly {
		q = q.Where(sq.Eq{"active": true})
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []*core.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update validates and rewrites a stored profile.
func (r *ProfileRepo) Update(ctx context.Context, p *core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	columns, exclude, err := marshalMappings(p)
	if err != nil {
		return err
	}
	q := r.SQ.Update("profiles").
		Set("name", p.Name).
		Set("collection", p.Collection).
		Set("active", p.Active).
		Set("header", p.Header).
		Set("separator", p.Separator).
		Set("quote", p.Quote).
		Set("character_encoding", p.CharacterEncoding).
		Set("thousands_separator", p.ThousandsSeparator).
		Set("decimal_separator", p.DecimalSeparator).
		Set("strategy", string(p.Strategy)).
		Set("skip_repeated", p.SkipRepeated).
		Set("update_record", p.UpdateRecord).
		Set("notify", p.Notify).
		Set("columns", columns).
		Set("exclude", exclude).
		Set("updated_at", time.Now().UTC().Format(time.RFC3339)).
		Where(sq.Eq{"id": p.ID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a profile.
func (r *ProfileRepo) Delete(ctx context.Context, id int64) error {
	sqlStr, args, err := r.SQ.Delete("profiles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalMappings(p *core.Profile) (string, string, error) {
	columns, err := json.Marshal(p.Columns)
	if err != nil {
		return "", "", fmt.Errorf("marshal columns: %w", err)
	}
	exclude, err := json.Marshal(p.Exclude)
	if err != nil {
		return "", "", fmt.Errorf("marshal exclude: %w", err)
	}
	return string(columns), string(exclude), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*core.Profile, error) {
	var (
		p        core.Profile
		strategy string
		columns  string
		exclude  string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Collection, &p.Active, &p.Header,
		&p.Separator, &p.Quote, &p.CharacterEncoding, &p.ThousandsSeparator, &p.DecimalSeparator,
		&strategy, &p.SkipRepeated, &p.UpdateRecord, &p.Notify, &columns, &exclude); err != nil {
		return nil, err
	}
	p.Strategy = core.Strategy(strategy)
	if err := json.Unmarshal([]byte(columns), &p.Columns); err != nil {
		return nil, fmt.Errorf("unmarshal columns: %w", err)
	}
	if err := json.Unmarshal([]byte(exclude), &p.Exclude); err != nil {
		return nil, fmt.Errorf("unmarshal exclude: %w", err)
	}
	return &p, nil
}
