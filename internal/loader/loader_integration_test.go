package loader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pipekit/internal/db"
	"github.com/vvka-141/pipekit/internal/logging"
	testhelpers "github.com/vvka-141/pipekit/internal/testing"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

func connectTestSchema(t *testing.T) (*db.Handle, string) {
	t.Helper()

	connString := testhelpers.RequireDatabase(t)
	schema := testhelpers.CreateTestSchema(t, connString)
	path := testhelpers.WriteConnectionINI(t, connString, "warehouse", schema)

	handle, err := db.Connect(context.Background(), path, "warehouse", logging.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { handle.Close(context.Background()) }) //nolint:errcheck
	return handle, schema
}

func countRows(t *testing.T, h *db.Handle, table string) int {
	t.Helper()
	var n int
	require.NoError(t, h.QueryRow(context.Background(), `SELECT count(*) FROM "`+table+`"`).Scan(&n))
	return n
}

func TestLoadIntegration_ReplaceAndAppend(t *testing.T) {
	handle, schema := connectTestSchema(t)
	ctx := context.Background()
	l := New(logging.NewNullLogger())
	table := testhelpers.UniqueName("orders")

	ds := pipekit.NewDataset("id", "customer", "amount", "paid", "created")
	created := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	ds.Append(pipekit.Row{"id": 1, "customer": "acme", "amount": 10.5, "paid": true, "created": created})
	ds.Append(pipekit.Row{"id": 2, "customer": "globex", "amount": 3, "paid": false})

	n, err := l.Load(ctx, ds, table, handle, pipekit.IfExistsReplace)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	var tableSchema string
	require.NoError(t, handle.QueryRow(ctx,
		"SELECT table_schema FROM information_schema.tables WHERE table_name = $1", table).Scan(&tableSchema))
	assert.Equal(t, schema, tableSchema, "table must be created in the section's schema")

	var amount float64
	var paid bool
	var ts *time.Time
	require.NoError(t, handle.QueryRow(ctx,
		`SELECT amount, paid, created FROM "`+table+`" WHERE id = 1`).Scan(&amount, &paid, &ts))
	assert.Equal(t, 10.5, amount)
	assert.True(t, paid)
	require.NotNil(t, ts)
	assert.True(t, created.Equal(*ts))

	_, err = l.Load(ctx, ds, table, handle, pipekit.IfExistsAppend)
	require.NoError(t, err)
	assert.Equal(t, 4, countRows(t, handle, table))

	_, err = l.Load(ctx, ds, table, handle, pipekit.IfExistsReplace)
	require.NoError(t, err)
	assert.Equal(t, 2, countRows(t, handle, table))
}

func TestLoadIntegration_FailModeLeavesTable(t *testing.T) {
	handle, _ := connectTestSchema(t)
	ctx := context.Background()
	l := New(logging.NewNullLogger())
	table := testhelpers.UniqueName("events")

	ds := pipekit.NewDataset("event")
	ds.Append(pipekit.Row{"event": "start"})

	_, err := l.Load(ctx, ds, table, handle, pipekit.IfExistsFail)
	require.NoError(t, err)

	_, err = l.Load(ctx, ds, table, handle, pipekit.IfExistsFail)
	assert.True(t, errors.Is(err, pipekit.ErrTableExists))
	assert.Equal(t, 1, countRows(t, handle, table))
}

func TestLoadIntegration_IncompatibleAppendRollsBack(t *testing.T) {
	handle, _ := connectTestSchema(t)
	ctx := context.Background()
	l := New(logging.NewNullLogger())
	table := testhelpers.UniqueName("metrics")

	numbers := pipekit.NewDataset("value")
	numbers.Append(pipekit.Row{"value": 1})
	_, err := l.Load(ctx, numbers, table, handle, pipekit.IfExistsReplace)
	require.NoError(t, err)

	extra := pipekit.NewDataset("value", "unit")
	extra.Append(pipekit.Row{"value": 2, "unit": "ms"})
	_, err = l.Load(ctx, extra, table, handle, pipekit.IfExistsAppend)

	require.Error(t, err)
	assert.Equal(t, pipekit.KindData, pipekit.KindOf(err))
	assert.Equal(t, 1, countRows(t, handle, table))
}

func TestLoadIntegration_AppendFollowsExistingColumnTypes(t *testing.T) {
	handle, _ := connectTestSchema(t)
	ctx := context.Background()
	l := New(logging.NewNullLogger())
	table := testhelpers.UniqueName("codes")

	_, err := handle.Exec(ctx, `CREATE TABLE "`+table+`" (code TEXT, amount NUMERIC(10,2), day DATE)`)
	require.NoError(t, err)

	ds := pipekit.NewDataset("code", "amount", "day")
	ds.Append(pipekit.Row{"code": 7, "amount": 12.5, "day": "2024-05-01"})
	_, err = l.Load(ctx, ds, table, handle, pipekit.IfExistsAppend)
	require.NoError(t, err)

	var code, amount, day string
	require.NoError(t, handle.QueryRow(ctx,
		`SELECT code, amount::text, day::text FROM "`+table+`"`).Scan(&code, &amount, &day))
	assert.Equal(t, "7", code)
	assert.Equal(t, "12.50", amount)
	assert.Equal(t, "2024-05-01", day)
}
