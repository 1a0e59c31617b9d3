package loader

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

// SQL column types chosen by InferColumns.
const (
	TypeBigInt      = "BIGINT"
	TypeDouble      = "DOUBLE PRECISION"
	TypeBoolean     = "BOOLEAN"
	TypeTimestampTZ = "TIMESTAMPTZ"
	TypeBytea       = "BYTEA"
	TypeText        = "TEXT"
)

// Column is one destination column with its inferred SQL type.
type Column struct {
	Name    string
	SQLType string
}

// InferColumns derives a SQL type for every dataset column from the non-NULL
// values it holds:
//
//   - integers only          -> BIGINT
//   - integers and floats    -> DOUBLE PRECISION
//   - booleans               -> BOOLEAN
//   - time.Time              -> TIMESTAMPTZ
//   - []byte                 -> BYTEA
//   - anything else, mixed, or all NULL -> TEXT
func InferColumns(ds *pipekit.Dataset) []Column {
	cols := make([]Column, len(ds.Columns))
	for i, name := range ds.Columns {
		kind := kindNull
		for _, row := range ds.Rows {
			kind = kind.merge(kindOf(row[name]))
		}
		cols[i] = Column{Name: name, SQLType: kind.sqlType()}
	}
	return cols
}

// CreateTableSQL renders CREATE TABLE for cols. Identifiers are quoted, so
// names keep their case and may contain any character.
func CreateTableSQL(table string, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + c.SQLType
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", pgx.Identifier{table}.Sanitize(), strings.Join(defs, ",\n    "))
}

// valueKind is the lattice InferColumns folds each column's values into.
type valueKind int

const (
	kindNull valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindTime
	kindBytes
	kindText
)

func kindOf(v any) valueKind {
	switch v.(type) {
	case nil:
		return kindNull
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return kindInt
	case float32, float64:
		return kindFloat
	case bool:
		return kindBool
	case time.Time:
		return kindTime
	case []byte:
		return kindBytes
	default:
		return kindText
	}
}

func (k valueKind) merge(other valueKind) valueKind {
	switch {
	case k == other || other == kindNull:
		return k
	case k == kindNull:
		return other
	case (k == kindInt && other == kindFloat) || (k == kindFloat && other == kindInt):
		return kindFloat
	default:
		return kindText
	}
}

func (k valueKind) sqlType() string {
	switch k {
	case kindInt:
		return TypeBigInt
	case kindFloat:
		return TypeDouble
	case kindBool:
		return TypeBoolean
	case kindTime:
		return TypeTimestampTZ
	case kindBytes:
		return TypeBytea
	default:
		return TypeText
	}
}

// canonicalType maps an information_schema data_type onto the types
// InferColumns produces. Other types map to "".
func canonicalType(dataType string) string {
	switch strings.ToLower(dataType) {
	case "bigint", "integer", "smallint":
		return TypeBigInt
	case "double precision", "real":
		return TypeDouble
	case "boolean":
		return TypeBoolean
	case "timestamp with time zone":
		return TypeTimestampTZ
	case "bytea":
		return TypeBytea
	case "text", "character varying", "character":
		return TypeText
	}
	return ""
}

// appendType picks how values inferred as inferred are sent to a column of
// dataType. Values that cannot be encoded natively go as text and the
// server parses them, as it would a literal.
func appendType(inferred, dataType string) string {
	switch target := canonicalType(dataType); {
	case target == inferred:
		return inferred
	case target == TypeDouble && inferred == TypeBigInt:
		return TypeDouble
	default:
		return TypeText
	}
}

// normalize converts v to the Go type pgx encodes for sqlType.
func normalize(v any, sqlType string) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch sqlType {
	case TypeBigInt:
		return toInt64(v)
	case TypeDouble:
		if n, err := toInt64(v); err == nil {
			return float64(n), nil
		}
		switch f := v.(type) {
		case float32:
			return float64(f), nil
		case float64:
			return f, nil
		}
	case TypeText:
		switch s := v.(type) {
		case string:
			return s, nil
		case time.Time:
			return s.Format(time.RFC3339Nano), nil
		case []byte:
			return string(s), nil
		case fmt.Stringer:
			return s.String(), nil
		default:
			return fmt.Sprint(v), nil
		}
	}
	return v, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows BIGINT: %w", n, pipekit.ErrInvalidDataset)
		}
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows BIGINT: %w", n, pipekit.ErrInvalidDataset)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%T is not an integer: %w", v, pipekit.ErrInvalidDataset)
	}
}
