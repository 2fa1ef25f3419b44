package sqldb

import (
	"context"
	"fmt"
	"time"
)

// Migrate creates the stage 5 source table on a SQLite store, under the name
// table has there (see TableFor). It exists for local development and tests;
// the production Postgres table is owned by the upstream system and is never
// migrated from here.
func (s *Store) Migrate(ctx context.Context, table string) error {
	if s.dialect != DialectSQLite {
		return fmt.Errorf("migrate: only supported for sqlite stores, got %s", s.dialect)
	}

	name := s.Table(table)
	quoted := QuoteTable(name)
	schema := `
	CREATE TABLE IF NOT EXISTS ` + quoted + ` (
		id INTEGER PRIMARY KEY,
		ucr TEXT,
		company TEXT,
		region TEXT,
		development TEXT,
		plot TEXT,
		stage_5_achieved_date DATE,
		uprn TEXT,
		postcode TEXT,
		report_month DATE,
		report_quarter DATE,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS ` + QuoteTable("idx_"+name+"_report_month") + `
		ON ` + quoted + `(report_month);
	CREATE INDEX IF NOT EXISTS ` + QuoteTable("idx_"+name+"_report_quarter") + `
		ON ` + quoted + `(report_quarter);
	CREATE INDEX IF NOT EXISTS ` + QuoteTable("idx_"+name+"_achieved") + `
		ON ` + quoted + `(stage_5_achieved_date);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Plot is one stage 5 source row, used to seed development databases.
type Plot struct {
	ID            int64
	UCR           string
	Company       string
	Region        string
	Development   string
	Plot          string
	AchievedDate  string // YYYY-MM-DD
	UPRN          *string
	Postcode      string
	ReportMonth   string // first day of the reporting month
	ReportQuarter string // first day of the reporting quarter
}

// InsertPlots seeds table on a SQLite store.
func (s *Store) InsertPlots(ctx context.Context, table string, plots []Plot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO ` + QuoteTable(s.Table(table)) + ` (id, ucr, company, region, development, plot,
			stage_5_achieved_date, uprn, postcode, report_month, report_quarter, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC().Format("2006-01-02 15:04:05")
	for _, p := range plots {
		_, err := tx.ExecContext(ctx, insert,
			p.ID, p.UCR, p.Company, p.Region, p.Development, p.Plot,
			p.AchievedDate, p.UPRN, p.Postcode, p.ReportMonth, p.ReportQuarter, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert plot %d: %w", p.ID, err)
		}
	}
	return tx.Commit()
}
