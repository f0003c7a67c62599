// Package postgres is the relational record store backend. Collections
// map to tables and fields to columns; single relations are id columns
// on the owning table, multi relations live on the related table behind
// the backref column the schema declares.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NaN-tic/csvimport/internal/core"
	"github.com/NaN-tic/csvimport/internal/store"
)

// Store implements core.RecordStore on a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	schema *store.Schema
	sq     sq.StatementBuilderType
}

// Connect opens a pool against the given URL and pings it once.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func New(pool *pgxpool.Pool, schema *store.Schema) *Store {
	return &Store{
		pool:   pool,
		schema: schema,
		sq:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *Store) FieldMeta(collection, field string) (core.FieldMeta, error) {
	return s.schema.FieldMeta(collection, field)
}

func (s *Store) DisplayField(collection string) (string, error) {
	return s.schema.DisplayField(collection)
}

// Search translates the domain into a parameterized SELECT over the
// collection's table. Multi-relation membership becomes an EXISTS probe
// through the backref.
func (s *Store) Search(ctx context.Context, collection string, domain []core.Condition, limit int) ([]core.Record, error) {
	if err := validIdent(collection); err != nil {
		return nil, err
	}

	q := s.sq.Select("id").From(collection).OrderBy("id")
	for _, cond := range domain {
		if err := validIdent(cond.Field); err != nil {
			return nil, err
		}
		switch cond.Op {
		case core.OpEqual:
			q = q.Where(sq.Eq{cond.Field: cond.Value})
		case core.OpIn:
			pred, err := s.inPredicate(collection, cond)
			if err != nil {
				return nil, err
			}
			q = q.Where(pred)
		default:
			return nil, fmt.Errorf("unsupported operator %q", cond.Op)
		}
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search: %w", err)
	}
	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", collection, err)
		}
		out = append(out, core.Record{ID: id})
	}
	return out, rows.Err()
}

// inPredicate builds the membership test for one condition. A relation
// with a backref is probed on the related table; a plain id column
// becomes an ordinary IN.
func (s *Store) inPredicate(collection string, cond core.Condition) (sq.Sqlizer, error) {
	meta, err := s.schema.FieldMeta(collection, cond.Field)
	if err != nil {
		return nil, err
	}
	c, _ := s.schema.Collection(collection)
	f, _ := c.Field(cond.Field)
	if meta.Relation != "" && f.Backref != "" {
		if err := validIdent(meta.Relation); err != nil {
			return nil, err
		}
		if err := validIdent(f.Backref); err != nil {
			return nil, err
		}
		expr := fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s = %s.id AND id = ANY(?))",
			meta.Relation, f.Backref, collection)
		return sq.Expr(expr, cond.Value), nil
	}
	return sq.Eq{cond.Field: cond.Value}, nil
}

// Create inserts the field maps in order inside one transaction and
// returns the new ids. Nested child entries go to the relation's table
// with the backref pointing at the new parent; resolver-produced id
// lists are linked by updating the backref on the existing rows.
func (s *Store) Create(ctx context.Context, collection string, fields []core.FieldMap) ([]core.Record, error) {
	if err := validIdent(collection); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	out := make([]core.Record, 0, len(fields))
	for _, f := range fields {
		id, err := s.insert(ctx, tx, collection, f, 0, "")
		if err != nil {
			return nil, err
		}
		out = append(out, core.Record{ID: id, Fields: f})
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// Save applies each update inside one transaction. Child entries and id
// lists replace the previous links: the old backrefs are cleared first.
func (s *Store) Save(ctx context.Context, collection string, updates []core.Update) error {
	if err := validIdent(collection); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, u := range updates {
		scalars, manyIDs, children, err := s.split(collection, u.Fields)
		if err != nil {
			return err
		}
		if len(scalars) > 0 {
			q := s.sq.Update(collection).Where(sq.Eq{"id": u.ID})
			for _, k := range sortedKeys(scalars) {
				q = q.Set(k, scalars[k])
			}
			sqlStr, args, err := q.ToSql()
			if err != nil {
				return fmt.Errorf("build update: %w", err)
			}
			if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
				return fmt.Errorf("update %s %d: %w", collection, u.ID, err)
			}
		}
		if err := s.relink(ctx, tx, collection, u.ID, manyIDs, children, true); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// txlike is the slice of pgx.Tx the insert path needs, split out so the
// same code serves pool-level calls in tests.
type txlike interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// insert writes one record and its relation links. When backref and
// owner are set the row is a child entry and gets the owner id written
// into the backref column.
func (s *Store) insert(ctx context.Context, tx txlike, collection string, fields core.FieldMap, owner int64, backref string) (int64, error) {
	scalars, manyIDs, children, err := s.split(collection, fields)
	if err != nil {
		return 0, err
	}
	if backref != "" {
		scalars[backref] = owner
	}

	cols := sortedKeys(scalars)
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = scalars[c]
	}
	sqlStr, args, err := s.sq.Insert(collection).Columns(cols...).Values(vals...).
		Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	var id int64
	if err := tx.QueryRow(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert into %s: %w", collection, err)
	}

	if err := s.relink(ctx, tx, collection, id, manyIDs, children, false); err != nil {
		return 0, err
	}
	return id, nil
}

// relink attaches multi-relation values to a record: existing ids by
// updating their backref, nested entries by inserting child rows. With
// replace set, previous links for the touched fields are cleared first.
func (s *Store) relink(ctx context.Context, tx txlike, collection string, id int64, manyIDs map[string][]int64, children map[string][]core.FieldMap, replace bool) error {
	c, _ := s.schema.Collection(collection)

	touch := map[string]bool{}
	for k := range manyIDs {
		touch[k] = true
	}
	for k := range children {
		touch[k] = true
	}
	for _, field := range sortedStrings(touch) {
		f, ok := c.Field(field)
		if !ok || f.Relation == "" || f.Backref == "" {
			return fmt.Errorf("field %q in collection %q needs a relation with a backref", field, collection)
		}
		if err := validIdent(f.Relation); err != nil {
			return err
		}
		if err := validIdent(f.Backref); err != nil {
			return err
		}

		if replace {
			sqlStr, args, err := s.sq.Update(f.Relation).Set(f.Backref, nil).
				Where(sq.Eq{f.Backref: id}).ToSql()
			if err != nil {
				return fmt.Errorf("build unlink: %w", err)
			}
			if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
				return fmt.Errorf("unlink %s.%s: %w", collection, field, err)
			}
		}
		if ids := manyIDs[field]; len(ids) > 0 {
			sqlStr, args, err := s.sq.Update(f.Relation).Set(f.Backref, id).
				Where(sq.Expr("id = ANY(?)", ids)).ToSql()
			if err != nil {
				return fmt.Errorf("build link: %w", err)
			}
			if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
				return fmt.Errorf("link %s.%s: %w", collection, field, err)
			}
		}
		for _, childFields := range children[field] {
			if _, err := s.insert(ctx, tx, f.Relation, childFields, id, f.Backref); err != nil {
				return err
			}
		}
	}
	return nil
}

// split partitions a field map into scalar columns, resolver-produced id
// lists and nested child entries.
func (s *Store) split(collection string, fields core.FieldMap) (core.FieldMap, map[string][]int64, map[string][]core.FieldMap, error) {
	scalars := core.FieldMap{}
	manyIDs := map[string][]int64{}
	children := map[string][]core.FieldMap{}
	for k, v := range fields {
		if err := validIdent(k); err != nil {
			return nil, nil, nil, err
		}
		switch vv := v.(type) {
		case []core.FieldMap:
			children[k] = vv
		case []int64:
			manyIDs[k] = vv
		default:
			scalars[k] = v
		}
	}
	return scalars, manyIDs, children, nil
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

func sortedKeys(fields core.FieldMap) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStrings(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
