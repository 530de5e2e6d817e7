package store

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"time"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateTableName rejects names that are not plain identifiers or that
// belong to the bookkeeping schema.
func ValidateTableName(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%w: invalid table name %q", ErrSchemaMismatch, name)
	}
	lower := strings.ToLower(name)
	switch lower {
	case "runs", "vector_tables", "schema_version":
		return fmt.Errorf("%w: table name %q is reserved", ErrSchemaMismatch, name)
	}
	if strings.HasPrefix(lower, "sqlite_") {
		return fmt.Errorf("%w: table name %q is reserved", ErrSchemaMismatch, name)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Table is a handle to one vector table with a fixed vector size.
type Table struct {
	db   *DB
	name string
	dims int
}

// Initialize opens or creates the named table. With overwrite any existing
// table is dropped first, so the table is always empty afterwards. Without
// overwrite an existing table is reused and must have the same dimension.
func (db *DB) Initialize(ctx context.Context, name string, dims int, overwrite bool) (*Table, error) {
	if err := ValidateTableName(name); err != nil {
		return nil, err
	}
	if dims <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrSchemaMismatch, dims)
	}

	tx, err := db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin transaction", err)
	}
	defer tx.Rollback()

	if overwrite {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
			return nil, storageErr("drop table", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM vector_tables WHERE name = ?", name); err != nil {
			return nil, storageErr("forget table", err)
		}
	} else {
		existing, err := tableDimension(ctx, tx, name)
		if err != nil {
			return nil, err
		}
		if existing > 0 {
			if existing != dims {
				return nil, fmt.Errorf("%w: table %s stores %d-dimension vectors, got %d", ErrSchemaMismatch, name, existing, dims)
			}
			if err := tx.Commit(); err != nil {
				return nil, storageErr("commit", err)
			}
			return &Table{db: db, name: name, dims: dims}, nil
		}
	}

	create := fmt.Sprintf(`CREATE TABLE %s (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		vector     BLOB NOT NULL CHECK (length(vector) = %d),
		text       TEXT NOT NULL,
		meta       TEXT NOT NULL CHECK (json_valid(meta)),
		created_at TEXT NOT NULL
	)`, quoteIdent(name), dims*4)
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return nil, storageErr("create table", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO vector_tables (name, dimension, created_at) VALUES (?, ?, ?)",
		name, dims, time.Now().UTC().Format(timeFormat),
	); err != nil {
		return nil, storageErr("register table", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit", err)
	}
	return &Table{db: db, name: name, dims: dims}, nil
}

// OpenTable returns a handle to an existing table.
func (db *DB) OpenTable(ctx context.Context, name string) (*Table, error) {
	if err := ValidateTableName(name); err != nil {
		return nil, err
	}
	dims, err := tableDimension(ctx, db.sqlDB, name)
	if err != nil {
		return nil, err
	}
	if dims == 0 {
		return nil, fmt.Errorf("%w: table %s does not exist", ErrStorage, name)
	}
	return &Table{db: db, name: name, dims: dims}, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableDimension(ctx context.Context, q queryRower, name string) (int, error) {
	var dims int
	err := q.QueryRowContext(ctx, "SELECT dimension FROM vector_tables WHERE name = ?", name).Scan(&dims)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("read table dimension", err)
	}
	return dims, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Dimensions returns the vector size of the table.
func (t *Table) Dimensions() int { return t.dims }

func (t *Table) check(row Row) error {
	if len(row.Vector) != t.dims {
		return fmt.Errorf("%w: vector has %d elements, table %s expects %d", ErrSchemaMismatch, len(row.Vector), t.name, t.dims)
	}
	if _, err := ParseMeta(row.Meta); err != nil {
		return err
	}
	return nil
}

// Insert appends one row. The write is committed when Insert returns.
func (t *Table) Insert(ctx context.Context, row Row) (int64, error) {
	if err := t.check(row); err != nil {
		return 0, err
	}
	res, err := t.db.sqlDB.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (vector, text, meta, created_at) VALUES (?, ?, ?, ?)", quoteIdent(t.name)),
		vectorToBlob(row.Vector), row.Text, row.Meta, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return 0, storageErr("insert row", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("read row id", err)
	}
	return id, nil
}

// Count returns the number of rows.
func (t *Table) Count(ctx context.Context) (int, error) {
	var count int
	err := t.db.sqlDB.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(t.name))).Scan(&count)
	if err != nil {
		return 0, storageErr("count rows", err)
	}
	return count, nil
}

// Get loads a row by id.
func (t *Table) Get(ctx context.Context, id int64) (*StoredRow, error) {
	row := t.db.sqlDB.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, vector, text, meta, created_at FROM %s WHERE id = ?", quoteIdent(t.name)), id)
	stored, err := scanStoredRow(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: row %d not found in %s", ErrStorage, id, t.name)
	}
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Rows iterates over all rows in id order. Iteration stops at the first error.
func (t *Table) Rows(ctx context.Context) iter.Seq2[*StoredRow, error] {
	return func(yield func(*StoredRow, error) bool) {
		rows, err := t.db.sqlDB.QueryContext(ctx,
			fmt.Sprintf("SELECT id, vector, text, meta, created_at FROM %s ORDER BY id", quoteIdent(t.name)))
		if err != nil {
			yield(nil, storageErr("query rows", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			stored, err := scanStoredRow(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(stored, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, storageErr("iterate rows", err))
		}
	}
}

// Search returns the k rows most similar to query by cosine similarity.
func (t *Table) Search(ctx context.Context, query []float32, k int) ([]ScoredRow, error) {
	if len(query) != t.dims {
		return nil, fmt.Errorf("%w: query has %d elements, table %s expects %d", ErrSchemaMismatch, len(query), t.name, t.dims)
	}
	if k <= 0 {
		k = 10
	}

	rows, err := t.db.sqlDB.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, vector, text, meta, created_at, vec_cosine(vector, ?) AS score
		FROM %s
		ORDER BY score DESC, id ASC
		LIMIT ?`, quoteIdent(t.name)), vectorToBlob(query), k)
	if err != nil {
		return nil, storageErr("search", err)
	}
	defer rows.Close()

	results := make([]ScoredRow, 0, min(k, 64))
	for rows.Next() {
		var (
			hit   ScoredRow
			blob  []byte
			ts    any
			score sql.NullFloat64
		)
		if err := rows.Scan(&hit.ID, &blob, &hit.Text, &hit.Meta, &ts, &score); err != nil {
			return nil, storageErr("scan search hit", err)
		}
		if err := hit.fill(blob, ts); err != nil {
			return nil, err
		}
		hit.Score = score.Float64
		results = append(results, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate search hits", err)
	}
	return results, nil
}

func scanStoredRow(r rowScanner) (*StoredRow, error) {
	var (
		stored StoredRow
		blob   []byte
		ts     any
	)
	if err := r.Scan(&stored.ID, &blob, &stored.Text, &stored.Meta, &ts); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, storageErr("scan row", err)
	}
	if err := stored.fill(blob, ts); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *StoredRow) fill(blob []byte, ts any) error {
	vector, err := blobToVector(blob)
	if err != nil {
		return fmt.Errorf("%w: row %d: %v", ErrSchemaMismatch, s.ID, err)
	}
	s.Vector = vector
	created, err := parseTimeValue(ts)
	if err != nil {
		return storageErr(fmt.Sprintf("row %d created_at", s.ID), err)
	}
	s.CreatedAt = created
	return nil
}
