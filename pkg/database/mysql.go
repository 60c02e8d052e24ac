package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"dev/bravebird/auth-probe-go/pkg/models"

	_ "github.com/go-sql-driver/mysql"
)

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// ==================== Probe Runs ====================

// CreateProbeRun inserts a new probe run record.
func (db *DB) CreateProbeRun(ctx context.Context, run *models.ProbeRun) error {
	query := `
		INSERT INTO probe_runs (id, target_url, temporal_run_id, temporal_workflow_id, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			temporal_run_id = VALUES(temporal_run_id),
			temporal_workflow_id = VALUES(temporal_workflow_id),
			status = VALUES(status)
	`

	_, err := db.conn.ExecContext(ctx, query,
		run.ID,
		run.TargetURL,
		run.TemporalRunID,
		run.TemporalWorkflowID,
		run.Status,
		run.StartedAt,
	)

	return err
}

// GetProbeRun retrieves a probe run by ID.
func (db *DB) GetProbeRun(ctx context.Context, id string) (*models.ProbeRun, error) {
	query := `
		SELECT id, target_url, temporal_run_id, temporal_workflow_id, status,
		       started_at, completed_at, COALESCE(error_message, '')
		FROM probe_runs
		WHERE id = ?
	`

	var run models.ProbeRun
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.TargetURL,
		&run.TemporalRunID,
		&run.TemporalWorkflowID,
		&run.Status,
		&run.StartedAt,
		&run.CompletedAt,
		&run.ErrorMessage,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &run, nil
}

// ListProbeRuns retrieves the most recent probe runs.
func (db *DB) ListProbeRuns(ctx context.Context, limit int) ([]models.ProbeRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, target_url, temporal_run_id, temporal_workflow_id, status,
		       started_at, completed_at, COALESCE(error_message, '')
		FROM probe_runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ProbeRun
	for rows.Next() {
		var run models.ProbeRun
		err := rows.Scan(
			&run.ID,
			&run.TargetURL,
			&run.TemporalRunID,
			&run.TemporalWorkflowID,
			&run.Status,
			&run.StartedAt,
			&run.CompletedAt,
			&run.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, nil
}

// UpdateProbeRunStatus updates the status of a probe run.
func (db *DB) UpdateProbeRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error {
	query := `
		UPDATE probe_runs
		SET status = ?, error_message = ?,
		    completed_at = CASE WHEN ? IN ('success', 'failed', 'canceled') THEN NOW() ELSE completed_at END
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query, status, errorMsg, status, id)
	return err
}

// ==================== Probe Reports ====================

// SaveProbeReport stores the final report for a run. The verdict columns are
// denormalized so the dashboard can filter without unpacking the JSON.
func (db *DB) SaveProbeReport(ctx context.Context, report *models.ProbeReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		INSERT INTO probe_reports
			(run_id, report, login_redirected, token_present, has_required_scope, permission_denied, table_rendered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			report = VALUES(report),
			login_redirected = VALUES(login_redirected),
			token_present = VALUES(token_present),
			has_required_scope = VALUES(has_required_scope),
			permission_denied = VALUES(permission_denied),
			table_rendered = VALUES(table_rendered)
	`

	_, err = db.conn.ExecContext(ctx, query,
		report.RunID,
		string(reportJSON),
		report.LoginRedirected,
		report.Token.Present,
		report.Token.HasRequiredScope,
		report.PermissionDenied,
		report.TableRendered,
		time.Now(),
	)

	return err
}

// GetProbeReport loads the stored report for a run, or nil when none exists.
func (db *DB) GetProbeReport(ctx context.Context, runID string) (*models.ProbeReport, error) {
	query := `SELECT report FROM probe_reports WHERE run_id = ?`

	var reportJSON string
	err := db.conn.QueryRowContext(ctx, query, runID).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report models.ProbeReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return &report, nil
}
