package sqldb

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/warp/stage5-reports/report"
)

// DefaultTable is the stage 5 source table.
const DefaultTable = "public.stage_5_plots"

// TableFor returns the name table has on dialect. SQLite has no schemas (a
// dotted prefix names an attached database), so only the last segment is
// kept there.
func TableFor(dialect Dialect, table string) string {
	if table == "" {
		table = DefaultTable
	}
	if dialect == DialectSQLite {
		if i := strings.LastIndex(table, "."); i >= 0 {
			table = table[i+1:]
		}
	}
	return strings.TrimSpace(table)
}

// ReportColumns are the columns every report selects.
var ReportColumns = []string{
	"id", "ucr", "company", "region", "development", "plot",
	"stage_5_achieved_date", "uprn", "postcode",
}

// QuoteTable quotes each dotted segment of a table name ("public.stage_5_plots"
// becomes "public"."stage_5_plots").
func QuoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}

// DefaultQueries returns the report queries against table:
//
//	monthly:    report_month = start
//	cumulative: start <= stage_5_achieved_date <= reference date
//	quarterly:  start <= report_quarter <= end
func DefaultQueries(table string) report.Queries {
	if table == "" {
		table = DefaultTable
	}
	base := fmt.Sprintf("SELECT %s FROM %s", strings.Join(ReportColumns, ", "), QuoteTable(table))

	return report.Queries{
		Monthly: report.Query{
			SQL: base + " WHERE report_month = ? ORDER BY id",
		},
		Cumulative: report.Query{
			SQL: base + " WHERE stage_5_achieved_date >= ? AND stage_5_achieved_date <= ? ORDER BY id",
		},
		Quarterly: report.Query{
			SQL: base + " WHERE report_quarter >= ? AND report_quarter <= ? ORDER BY id",
		},
	}
}

// Queries returns the default report queries against table as named on
// this store's dialect.
func (s *Store) Queries(table string) report.Queries {
	return DefaultQueries(s.Table(table))
}
