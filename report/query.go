package report

import (
	"fmt"
	"strings"
)

// Query is a SQL template using '?' positional placeholders. How a window
// maps onto the table (equality on a pre-tagged column, or a date range) is
// decided by the template, not by the selector.
type Query struct {
	SQL string
}

// Bind returns the positional arguments for w: one placeholder binds the
// window start, two bind start and end. Dates are passed as YYYY-MM-DD.
func (q Query) Bind(w Window) ([]any, error) {
	switch n := CountPlaceholders(q.SQL); n {
	case 1:
		return []any{w.Start.String()}, nil
	case 2:
		return []any{w.Start.String(), w.End.String()}, nil
	default:
		return nil, &QueryError{
			Kind: w.Kind,
			Err:  fmt.Errorf("template has %d placeholders, want 1 (start) or 2 (start, end)", n),
		}
	}
}

// Queries holds one template per report variant.
type Queries struct {
	Monthly    Query
	Cumulative Query
	Quarterly  Query
}

// For returns the template for kind.
func (qs Queries) For(kind Kind) (Query, error) {
	switch kind {
	case KindMonthly:
		return qs.Monthly, nil
	case KindCumulative:
		return qs.Cumulative, nil
	case KindQuarterly:
		return qs.Quarterly, nil
	}
	return Query{}, &QueryError{Kind: kind, Err: fmt.Errorf("unknown report kind")}
}

// CountPlaceholders counts '?' placeholders. See ScanPlaceholders for what
// is skipped.
func CountPlaceholders(sql string) int {
	n := 0
	ScanPlaceholders(sql, func(int) { n++ })
	return n
}

// ScanPlaceholders calls fn with the byte offset of every '?' placeholder in
// sql. Single-quoted strings, double-quoted identifiers, "--" line comments,
// "/* */" block comments and the Postgres jsonb operators "?|" and "?&" are
// skipped. The bare jsonb "?" operator cannot be told apart from a
// placeholder; write it as jsonb_exists(col, key) instead.
func ScanPlaceholders(sql string, fn func(offset int)) {
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '-' && strings.HasPrefix(sql[i:], "--"):
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				return
			}
			i += end
		case c == '/' && strings.HasPrefix(sql[i:], "/*"):
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return
			}
			i += end + 3
		case c == '?':
			if i+1 < len(sql) && (sql[i+1] == '|' || sql[i+1] == '&') {
				i++
				continue
			}
			fn(i)
		}
	}
}
