// Package metadata lists tables and describes table structure through the
// catalog views of each database family.
package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/logger"
)

const DefaultTimeout = 30 * time.Second

var ErrTableNotFound = errors.New("table not found")

// Acquirer leases connections. *database.Provider implements it.
type Acquirer interface {
	Acquire(ctx context.Context, target types.Target) (*sql.Conn, error)
}

// Column describes one table column.
type Column struct {
	Name       string  `json:"columnName"`
	DataType   string  `json:"dataType"`
	Size       *int64  `json:"columnSize,omitempty"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"defaultValue,omitempty"`
	Position   int     `json:"position"`
	PrimaryKey bool    `json:"isPrimaryKey"`
}

// Index is one index with its columns in key order.
type Index struct {
	Name    string   `json:"indexName"`
	Unique  bool     `json:"unique"`
	Columns []string `json:"columns"`
}

// Constraint is one column of a primary or foreign key. A composite key
// yields one Constraint per column.
type Constraint struct {
	Name             string `json:"constraintName"`
	Type             string `json:"constraintType"`
	Column           string `json:"columnName"`
	ReferencedTable  string `json:"referencedTable,omitempty"`
	ReferencedColumn string `json:"referencedColumn,omitempty"`
}

// Table describes one table.
type Table struct {
	Name        string       `json:"tableName"`
	Comment     string       `json:"tableComment,omitempty"`
	Columns     []Column     `json:"columns"`
	PrimaryKey  []string     `json:"primaryKey"`
	Indexes     []Index      `json:"indexes"`
	Constraints []Constraint `json:"constraints"`
}

// Reader runs catalog queries over connections from the provider.
type Reader struct {
	provider Acquirer
	logger   logger.Logger
	timeout  time.Duration
}

// NewReader creates a Reader. A non-positive timeout selects DefaultTimeout.
func NewReader(provider Acquirer, log logger.Logger, timeout time.Duration) *Reader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Reader{provider: provider, logger: log, timeout: timeout}
}

// ListTables returns the base tables of the target's database or current schema.
func (r *Reader) ListTables(ctx context.Context, target types.Target) ([]string, error) {
	d, err := dialectFor(target.Kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	conn, err := r.provider.Acquire(ctx, target)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	names, err := queryStrings(ctx, conn, d.tables(d.sb, target.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return names, nil
}

// DescribeTable returns the columns, primary key, indexes, key constraints
// and comment of table.
// ErrTableNotFound is returned when the table has no visible columns.
func (r *Reader) DescribeTable(ctx context.Context, target types.Target, table string) (*Table, error) {
	d, err := dialectFor(target.Kind)
	if err != nil {
		return nil, err
	}
	table = d.fold(strings.TrimSpace(table))

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	conn, err := r.provider.Acquire(ctx, target)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	columns, err := queryColumns(ctx, conn, d.columns(d.sb, target.Database, table))
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	pk, err := queryStrings(ctx, conn, d.primaryKey(d.sb, target.Database, table))
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key of %s: %w", table, err)
	}
	inKey := make(map[string]bool, len(pk))
	for _, name := range pk {
		inKey[name] = true
	}
	for i := range columns {
		columns[i].PrimaryKey = inKey[columns[i].Name]
	}

	indexes, err := queryIndexes(ctx, conn, d.indexes(d.sb, target.Database, table))
	if err != nil {
		return nil, fmt.Errorf("failed to read indexes of %s: %w", table, err)
	}
	constraints, err := queryConstraints(ctx, conn, d.constraints(d.sb, target.Database, table))
	if err != nil {
		return nil, fmt.Errorf("failed to read constraints of %s: %w", table, err)
	}

	return &Table{
		Name:        table,
		Comment:     r.comment(ctx, conn, d, target, table),
		Columns:     columns,
		PrimaryKey:  pk,
		Indexes:     indexes,
		Constraints: constraints,
	}, nil
}

// comment is best effort: a failed lookup is logged and yields "".
func (r *Reader) comment(ctx context.Context, conn *sql.Conn, d *dialect, target types.Target, table string) string {
	query, args, err := d.comment(d.sb, target.Database, table).ToSql()
	if err != nil {
		return ""
	}

	var comment sql.NullString
	err = conn.QueryRowContext(ctx, query, args...).Scan(&comment)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		r.logger.Warn().
			Err(err).
			Str("pool", target.String()).
			Str("table", table).
			Msg("Failed to read table comment")
	}
	return comment.String
}

func queryStrings(ctx context.Context, conn *sql.Conn, b squirrel.SelectBuilder) ([]string, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func queryColumns(ctx context.Context, conn *sql.Conn, b squirrel.SelectBuilder) ([]Column, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Column
	for rows.Next() {
		var (
			c        Column
			size     sql.NullInt64
			nullable string
			def      sql.NullString
		)
		if err := rows.Scan(&c.Name, &c.DataType, &size, &nullable, &def, &c.Position); err != nil {
			return nil, err
		}
		if size.Valid {
			c.Size = &size.Int64
		}
		if def.Valid {
			c.Default = &def.String
		}
		c.Nullable = isNullable(nullable)
		out = append(out, c)
	}
	return out, rows.Err()
}

// queryIndexes groups consecutive rows of the same index.
func queryIndexes(ctx context.Context, conn *sql.Conn, b squirrel.SelectBuilder) ([]Index, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Index{}
	for rows.Next() {
		var (
			name, column string
			unique       any
		)
		if err := rows.Scan(&name, &unique, &column); err != nil {
			return nil, err
		}
		if n := len(out); n > 0 && out[n-1].Name == name {
			out[n-1].Columns = append(out[n-1].Columns, column)
			continue
		}
		out = append(out, Index{Name: name, Unique: truthy(unique), Columns: []string{column}})
	}
	return out, rows.Err()
}

func queryConstraints(ctx context.Context, conn *sql.Conn, b squirrel.SelectBuilder) ([]Constraint, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Constraint{}
	for rows.Next() {
		var (
			c                Constraint
			refTable, refCol sql.NullString
		)
		if err := rows.Scan(&c.Name, &c.Type, &c.Column, &refTable, &refCol); err != nil {
			return nil, err
		}
		c.ReferencedTable = refTable.String
		c.ReferencedColumn = refCol.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// truthy reads a flag column that drivers report as bool, number or text.
func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case []byte:
		return truthy(string(x))
	case string:
		switch strings.ToUpper(strings.TrimSpace(x)) {
		case "1", "TRUE", "T", "Y", "YES", "UNIQUE":
			return true
		}
	}
	return false
}

// isNullable reads YES/NO (ANSI catalogs) and Y/N (Oracle).
func isNullable(flag string) bool {
	switch strings.ToUpper(strings.TrimSpace(flag)) {
	case "YES", "Y":
		return true
	default:
		return false
	}
}
