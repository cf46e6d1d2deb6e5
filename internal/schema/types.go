package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Column represents a table column
type Column struct {
	Name     string
	Type     string
	Nullable bool
	IsUnique bool
}

var integerTypes = []string{
	"bigint", "int", "integer", "mediumint", "smallint", "tinyint",
	"int2", "int4", "int8", "bigserial", "serial", "smallserial",
}

// IsInteger reports whether the column can hold an integer id. A column
// with no recorded type is assumed to.
func (c Column) IsInteger() bool {
	t := strings.ToLower(strings.TrimSpace(c.Type))
	if t == "" {
		return true
	}
	// "bigint(10)", "int unsigned"
	if i := strings.IndexAny(t, "( "); i >= 0 {
		t = t[:i]
	}
	for _, it := range integerTypes {
		if t == it {
			return true
		}
	}
	return false
}

// Row is one database record keyed by column name. Rows are treated as
// immutable: code that rewrites values builds a new Row.
type Row map[string]any

// Clone returns a shallow copy of the row
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RowSet holds the rows fetched from one table together with their column order
type RowSet struct {
	Table   string
	Columns []string
	Rows    []Row
}

// IsEmptyValue reports whether a value is NULL or the empty string
func IsEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []byte:
		return len(val) == 0
	default:
		return false
	}
}

// ToID converts a database value into an integer id
func ToID(v any) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", val)
		}
		return int64(val), nil
	case float64:
		if val != float64(int64(val)) {
			return 0, fmt.Errorf("value %v is not an integer", val)
		}
		return int64(val), nil
	case []byte:
		return parseID(string(val))
	case string:
		return parseID(val)
	default:
		return 0, fmt.Errorf("unsupported id type %T", v)
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value %q is not an integer", s)
	}
	return id, nil
}

// FormatValue renders a database value for text output
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
