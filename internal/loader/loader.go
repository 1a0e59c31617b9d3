package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

const loadOp = "load"

// tableExistsSQL looks table up in the session's current schema, which is
// the first entry of the search_path the connection was opened with.
const tableExistsSQL = `SELECT EXISTS (
    SELECT 1 FROM pg_catalog.pg_tables
    WHERE schemaname = current_schema() AND tablename = $1
)`

// columnTypesSQL returns {"column": "data_type", ...} for table.
const columnTypesSQL = `SELECT COALESCE(json_object_agg(column_name, data_type), '{}')::text
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1`

// TableExists reports whether table exists in the session's current schema.
func TableExists(ctx context.Context, q pipekit.Querier, table string) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, tableExistsSQL, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("check table %q: %w", table, err)
	}
	return exists, nil
}

// Loader writes datasets into tables.
type Loader struct {
	logger pipekit.Logger

	// maxParams caps bind parameters per INSERT statement.
	maxParams int
}

// New creates a Loader that reports progress to logger.
func New(logger pipekit.Logger) *Loader {
	return &Loader{logger: logger, maxParams: pipekit.MaxBindParameters}
}

// Load writes ds into table on conn and returns the number of rows inserted.
//
// mode decides what happens when table exists: replace drops and recreates
// it, append inserts into it, fail refuses. A missing table is created with
// types inferred from the dataset. Everything runs in one transaction, so a
// failed load leaves the destination untouched.
//
// Failures are logged and returned as *pipekit.Error.
func (l *Loader) Load(ctx context.Context, ds *pipekit.Dataset, table string, conn pipekit.DBConnection, mode pipekit.IfExists) (int64, error) {
	l.logger.Info("Loading data into the database...")

	n, err := l.load(ctx, ds, table, conn, mode)
	if err != nil {
		l.logger.Error("Error loading data into the database: %v", err)
		return 0, pipekit.NewError(loadOp, classify(err), err)
	}

	l.logger.Info("Data loaded successfully")
	return n, nil
}

func (l *Loader) load(ctx context.Context, ds *pipekit.Dataset, table string, conn pipekit.DBConnection, mode pipekit.IfExists) (int64, error) {
	mode, err := pipekit.ParseIfExists(string(mode))
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(table) == "" {
		return 0, fmt.Errorf("table name is empty: %w", pipekit.ErrInvalidConfig)
	}
	if conn == nil {
		return 0, fmt.Errorf("no database connection: %w", pipekit.ErrConnectionFailed)
	}
	if err := ds.Validate(); err != nil {
		return 0, err
	}
	if len(ds.Columns) > l.maxParams {
		return 0, fmt.Errorf("%d columns exceed the %d parameter limit: %w", len(ds.Columns), l.maxParams, pipekit.ErrInvalidDataset)
	}

	cols := InferColumns(ds)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	exists, err := TableExists(ctx, tx, table)
	if err != nil {
		return 0, err
	}
	l.logger.Verbose("Table %s.%s exists: %t (mode %s)", conn.Schema(), table, exists, mode)

	create := !exists
	if exists {
		switch mode {
		case pipekit.IfExistsFail:
			return 0, fmt.Errorf("table %q: %w", table, pipekit.ErrTableExists)
		case pipekit.IfExistsReplace:
			if _, err := tx.Exec(ctx, "DROP TABLE "+pgx.Identifier{table}.Sanitize()); err != nil {
				return 0, fmt.Errorf("drop table %q: %w", table, err)
			}
			create = true
		case pipekit.IfExistsAppend:
			if cols, err = existingColumns(ctx, tx, table, cols); err != nil {
				return 0, err
			}
		}
	}

	if create {
		ddl := CreateTableSQL(table, cols)
		l.logger.Verbose("%s", ddl)
		if _, err := tx.Exec(ctx, ddl); err != nil {
			return 0, fmt.Errorf("create table %q: %w", table, err)
		}
	}

	inserted, err := l.insertRows(ctx, tx, table, ds, cols)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// existingColumns retypes cols to the columns table already has, so appended
// values are encoded for the type they are stored as. Columns the table lacks
// keep their inferred type and are rejected by the server on insert.
func existingColumns(ctx context.Context, q pipekit.Querier, table string, cols []Column) ([]Column, error) {
	var raw string
	if err := q.QueryRow(ctx, columnTypesSQL, table).Scan(&raw); err != nil {
		return nil, fmt.Errorf("read columns of %q: %w", table, err)
	}
	var types map[string]string
	if err := json.Unmarshal([]byte(raw), &types); err != nil {
		return nil, fmt.Errorf("read columns of %q: %w", table, err)
	}

	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = c
		if dataType, ok := types[c.Name]; ok {
			out[i].SQLType = appendType(c.SQLType, dataType)
		}
	}
	return out, nil
}

// insertRows writes all rows with as few INSERT statements as the bind
// parameter limit allows.
func (l *Loader) insertRows(ctx context.Context, q pipekit.Querier, table string, ds *pipekit.Dataset, cols []Column) (int64, error) {
	perStmt := l.maxParams / len(cols)
	var total int64

	for start := 0; start < len(ds.Rows); start += perStmt {
		end := min(start+perStmt, len(ds.Rows))

		sql, args, err := buildInsert(table, cols, ds.Rows[start:end])
		if err != nil {
			return total, fmt.Errorf("rows %d-%d: %w", start, end-1, err)
		}
		tag, err := q.Exec(ctx, sql, args...)
		if err != nil {
			return total, fmt.Errorf("insert rows %d-%d into %q: %w", start, end-1, table, err)
		}
		total += tag.RowsAffected()
		l.logger.Verbose("Inserted %d/%d rows", total, len(ds.Rows))
	}
	return total, nil
}

// buildInsert renders one multi-row INSERT with positional parameters.
func buildInsert(table string, cols []Column, rows []pipekit.Row) (string, []any, error) {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = pgx.Identifier{c.Name}.Sanitize()
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(pgx.Identifier{table}.Sanitize())
	sb.WriteString(" (")
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(cols))
	for r, row := range rows {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for i, c := range cols {
			if i > 0 {
				sb.WriteString(", ")
			}
			v, err := normalize(row[c.Name], c.SQLType)
			if err != nil {
				return "", nil, fmt.Errorf("column %q: %w", c.Name, err)
			}
			args = append(args, v)
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(len(args)))
		}
		sb.WriteByte(')')
	}
	return sb.String(), args, nil
}

// classify maps a load failure onto an error kind. Server-side rejections
// (constraint, type, undefined object) are data errors; a broken session is
// a connection error.
func classify(err error) pipekit.ErrorKind {
	switch {
	case errors.Is(err, pipekit.ErrInvalidIfExists), errors.Is(err, pipekit.ErrInvalidConfig):
		return pipekit.KindConfig
	case errors.Is(err, pipekit.ErrConnectionFailed):
		return pipekit.KindConnection
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception.
		if strings.HasPrefix(pgErr.Code, "08") {
			return pipekit.KindConnection
		}
		return pipekit.KindData
	}
	if pgconn.SafeToRetry(err) || isClosed(err) {
		return pipekit.KindConnection
	}
	return pipekit.KindData
}

func isClosed(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "conn closed") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "broken pipe")
}
