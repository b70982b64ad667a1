// Package sqlite keeps the history of generated capacity reports.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"capacityreport/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type ReportRun = domain.ReportRun
type ExcludedItem = domain.ExcludedItem

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS report_runs (
		id                     INTEGER PRIMARY KEY AUTOINCREMENT,
		team                   TEXT NOT NULL,
		quarter                TEXT NOT NULL,
		url                    TEXT NOT NULL DEFAULT '',
		planned_fte            TEXT NOT NULL DEFAULT '',
		planned_sp             TEXT NOT NULL DEFAULT '',
		planned_ratio          TEXT NOT NULL DEFAULT '',
		final_sp               TEXT NOT NULL DEFAULT '',
		final_ratio            TEXT NOT NULL DEFAULT '',
		final_fte              TEXT NOT NULL DEFAULT '',
		missing_estimate_count INTEGER NOT NULL DEFAULT 0,
		multi_tagged_count     INTEGER NOT NULL DEFAULT 0,
		requested_by           TEXT DEFAULT '',
		created_at             DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_report_runs_team ON report_runs(team);
	CREATE INDEX IF NOT EXISTS idx_report_runs_created_at ON report_runs(created_at);

	CREATE TABLE IF NOT EXISTS excluded_items (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     INTEGER NOT NULL REFERENCES report_runs(id) ON DELETE CASCADE,
		issue_key  TEXT NOT NULL,
		summary    TEXT DEFAULT '',
		reason     TEXT NOT NULL,
		url        TEXT DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_excluded_items_run ON excluded_items(run_id);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// InsertReportRun stores run and its excluded items in one transaction and
// returns the new run id.
func InsertReportRun(db *sql.DB, run ReportRun, excluded []ExcludedItem) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := tx.Exec(
		`INSERT INTO report_runs (team, quarter, url, planned_fte, planned_sp, planned_ratio,
			final_sp, final_ratio, final_fte, missing_estimate_count, multi_tagged_count, requested_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Team, run.Quarter, run.URL,
		domain.FormatVector(run.PlannedFTE), domain.FormatVector(run.PlannedSP), domain.FormatVector(run.PlannedRatio),
		domain.FormatVector(run.FinalSP), domain.FormatVector(run.FinalRatio), domain.FormatVector(run.FinalFTE),
		run.MissingEstimateCount, run.MultiTaggedCount, run.RequestedBy, createdAt,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(excluded) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO excluded_items (run_id, issue_key, summary, reason, url) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer stmt.Close()
		for _, item := range excluded {
			if _, err := stmt.Exec(id, item.Key, item.Summary, item.Reason, item.URL); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// RecentReportRuns returns the latest runs, newest first. An empty team
// matches every team.
func RecentReportRuns(db *sql.DB, team string, limit int) ([]ReportRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(
		`SELECT id, team, quarter, url, planned_fte, planned_sp, planned_ratio, final_sp, final_ratio, final_fte,
			missing_estimate_count, multi_tagged_count, requested_by, created_at
		 FROM report_runs
		 WHERE (? = '' OR team = ?)
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		team, team, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ReportRun
	for rows.Next() {
		var run ReportRun
		var pFTE, pSP, pRatio, fSP, fRatio, fFTE string
		var requestedBy sql.NullString
		if err := rows.Scan(&run.ID, &run.Team, &run.Quarter, &run.URL,
			&pFTE, &pSP, &pRatio, &fSP, &fRatio, &fFTE,
			&run.MissingEstimateCount, &run.MultiTaggedCount, &requestedBy, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.RequestedBy = requestedBy.String
		if err := scanVectors(&run, pFTE, pSP, pRatio, fSP, fRatio, fFTE); err != nil {
			return nil, fmt.Errorf("run %d: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanVectors(run *ReportRun, pFTE, pSP, pRatio, fSP, fRatio, fFTE string) error {
	targets := []struct {
		raw string
		dst *[domain.BucketCount]float64
	}{
		{pFTE, (*[domain.BucketCount]float64)(&run.PlannedFTE)},
		{pSP, (*[domain.BucketCount]float64)(&run.PlannedSP)},
		{pRatio, (*[domain.BucketCount]float64)(&run.PlannedRatio)},
		{fSP, (*[domain.BucketCount]float64)(&run.FinalSP)},
		{fRatio, (*[domain.BucketCount]float64)(&run.FinalRatio)},
		{fFTE, (*[domain.BucketCount]float64)(&run.FinalFTE)},
	}
	for _, t := range targets {
		v, err := domain.ParseVector(t.raw)
		if err != nil {
			return err
		}
		*t.dst = v
	}
	return nil
}

func GetExcludedItems(db *sql.DB, runID int64) ([]ExcludedItem, error) {
	rows, err := db.Query(
		`SELECT run_id, issue_key, summary, reason, url FROM excluded_items WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ExcludedItem
	for rows.Next() {
		var item ExcludedItem
		var summary, url sql.NullString
		if err := rows.Scan(&item.RunID, &item.Key, &summary, &item.Reason, &url); err != nil {
			return nil, err
		}
		item.Summary = summary.String
		item.URL = url.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// RunStore adapts a database handle to the report pipeline.
type RunStore struct {
	DB *sql.DB
}

func (s RunStore) InsertReportRun(run ReportRun, excluded []ExcludedItem) (int64, error) {
	return InsertReportRun(s.DB, run, excluded)
}

func (s RunStore) ReportRunExists(team, quarter string) (bool, error) {
	return ReportRunExists(s.DB, team, quarter)
}

// ReportRunExists reports whether any run was recorded for team and quarter.
func ReportRunExists(db *sql.DB, team, quarter string) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM report_runs WHERE team = ? AND quarter = ?`, team, quarter).Scan(&count)
	return count > 0, err
}
