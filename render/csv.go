/*
csv.go - CSV rendering of fetched report tables

PURPOSE:
  Turns a report.Table into the bytes of a CSV attachment: header row first,
  one line per record, helper columns dropped.

COLUMN ORDER:
  The store's column order is kept. Hand-built tables without a column list
  use the sorted union of their row keys, so output is deterministic.

VALUES:
  nil                    ->  empty cell
  time at midnight       ->  2006-01-02
  other times            ->  2006-01-02 15:04:05[.fraction]
  float32/float64        ->  shortest exact decimal, never exponent form
  decimal.Decimal        ->  String()
  []byte                 ->  string
  bool                   ->  True / False
  maps, slices, structs  ->  RenderError

SEE ALSO:
  - summary.go: HTML body listing the rendered reports
*/
package render

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/stage5-reports/report"
)

// ContentType is the MIME type of rendered reports.
const ContentType = "text/csv"

// ExcludedColumns never appear in a rendered report.
var ExcludedColumns = []string{"report_month", "report_quarter", "created_at", "updated_at"}

var errUnsupportedValue = errors.New("unsupported value type")

// CSV renders tables as comma separated values.
type CSV struct {
	// Exclude overrides ExcludedColumns when non-nil.
	Exclude []string
}

// NewCSV returns a renderer dropping the default helper columns.
func NewCSV() *CSV {
	return &CSV{}
}

// Render serializes table. filename is only used to label errors.
func (r *CSV) Render(table report.Table, filename string) ([]byte, error) {
	columns := r.columns(table)
	if len(columns) == 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return nil, &report.RenderError{Filename: filename, Err: err}
	}

	record := make([]string, len(columns))
	for _, row := range table.Rows {
		for i, col := range columns {
			cell, err := FormatValue(row[col])
			if err != nil {
				return nil, &report.RenderError{Filename: filename, Column: col, Err: err}
			}
			record[i] = cell
		}
		if err := w.Write(record); err != nil {
			return nil, &report.RenderError{Filename: filename, Err: err}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, &report.RenderError{Filename: filename, Err: err}
	}
	return buf.Bytes(), nil
}

func (r *CSV) columns(table report.Table) []string {
	exclude := r.Exclude
	if exclude == nil {
		exclude = ExcludedColumns
	}

	source := table.Columns
	if len(source) == 0 {
		seen := make(map[string]struct{})
		for _, row := range table.Rows {
			for k := range row {
				if _, ok := seen[k]; !ok {
					seen[k] = struct{}{}
					source = append(source, k)
				}
			}
		}
		slices.Sort(source)
	}

	out := make([]string, 0, len(source))
	for _, col := range source {
		if !slices.Contains(exclude, col) {
			out = append(out, col)
		}
	}
	return out
}

// =============================================================================
// VALUE FORMATTING
// =============================================================================

// FormatValue renders a single cell. Pointers are rendered as what they
// point to; a nil pointer is an empty cell.
func FormatValue(v any) (string, error) {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", nil
		}
		out, err := FormatValue(rv.Elem().Interface())
		if err != nil {
			if s, ok := v.(fmt.Stringer); ok {
				return s.String(), nil
			}
		}
		return out, err
	}

	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case bool:
		if val {
			return "True", nil
		}
		return "False", nil
	case time.Time:
		return formatTime(val), nil
	case decimal.Decimal:
		return val.String(), nil
	case float64:
		return formatFloat(val, 64), nil
	case float32:
		return formatFloat(float64(val), 32), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(val), nil
	case fmt.Stringer:
		return val.String(), nil
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Func, reflect.Chan:
		return "", fmt.Errorf("%w: %T", errUnsupportedValue, v)
	}
	return fmt.Sprint(v), nil
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05.999999999")
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return ""
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if bits == 32 {
		// Shortest float32 representation, then exact decimal text.
		d, err := decimal.NewFromString(strconv.FormatFloat(f, 'g', -1, 32))
		if err == nil {
			return d.String()
		}
	}
	return decimal.NewFromFloat(f).String()
}
