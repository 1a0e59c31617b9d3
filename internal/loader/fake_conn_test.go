package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

// fakeConn records statements instead of sending them to a server.
type fakeConn struct {
	tableExists bool
	columnTypes map[string]string // existing table's columns, as information_schema reports them
	queryErr    error
	failOn      string // Exec fails for statements starting with this prefix
	execErr     error

	statements []string
	args       [][]any
	committed  bool
	rolledBack bool
}

func (f *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.failOn != "" && strings.HasPrefix(sql, f.failOn) {
		return pgconn.CommandTag{}, f.execErr
	}
	f.statements = append(f.statements, sql)
	f.args = append(f.args, args)
	if strings.HasPrefix(sql, "INSERT") {
		return pgconn.NewCommandTag(fmt.Sprintf("INSERT 0 %d", strings.Count(sql, "(")-1)), nil
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pipekit.ResultRow {
	if f.queryErr != nil {
		return fakeRow{err: f.queryErr}
	}
	if strings.Contains(sql, "information_schema.columns") {
		types := f.columnTypes
		if types == nil {
			types = map[string]string{}
		}
		raw, err := json.Marshal(types)
		return fakeRow{value: string(raw), err: err}
	}
	return fakeRow{value: f.tableExists}
}

func (f *fakeConn) Begin(ctx context.Context) (pipekit.Tx, error) {
	return &fakeTx{conn: f}, nil
}

func (f *fakeConn) Schema() string { return "staging" }

func (f *fakeConn) Close(ctx context.Context) error { return nil }

func (f *fakeConn) inserts() []string {
	var out []string
	for _, s := range f.statements {
		if strings.HasPrefix(s, "INSERT") {
			out = append(out, s)
		}
	}
	return out
}

type fakeTx struct {
	conn *fakeConn
	done bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.conn.Exec(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pipekit.ResultRow {
	return t.conn.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.done = true
	t.conn.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.done {
		return errors.New("tx is closed")
	}
	t.conn.rolledBack = true
	return nil
}

type fakeRow struct {
	value any
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	switch d := dest[0].(type) {
	case *bool:
		*d = r.value.(bool)
	case *string:
		*d = r.value.(string)
	default:
		return fmt.Errorf("fakeRow: unsupported destination %T", d)
	}
	return nil
}
