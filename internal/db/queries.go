package db

import (
	"database/sql"
	"fmt"
)

// RunEvent represents a row in the run_events table.
type RunEvent struct {
	ID        int
	RunID     string
	TargetID  string
	Mode      string
	Event     string
	Status    string
	Detail    string
	Timestamp string
}

// StageEvent represents a row in the stage_events table.
type StageEvent struct {
	ID         int
	RunID      string
	TargetID   string
	Stage      string
	IssueID    string
	Outcome    string
	DurationMs int
	Detail     string
	Timestamp  string
}

// LogRunEvent inserts a run lifecycle event.
func (d *DB) LogRunEvent(runID, targetID, mode, event, status, detail string) error {
	_, err := d.conn.Exec(
		`INSERT INTO run_events (run_id, target_id, mode, event, status, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, targetID, mode, event, status, detail,
	)
	if err != nil {
		return fmt.Errorf("log run event: %w", err)
	}
	return nil
}

// LogStageEvent inserts a stage outcome event.
func (d *DB) LogStageEvent(runID, targetID, stage, issueID, outcome string, durationMs int, detail string) error {
	_, err := d.conn.Exec(
		`INSERT INTO stage_events (run_id, target_id, stage, issue_id, outcome, duration_ms, detail) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, targetID, stage, issueID, outcome, durationMs, detail,
	)
	if err != nil {
		return fmt.Errorf("log stage event: %w", err)
	}
	return nil
}

// RunEvents returns all events for one run in insertion order.
func (d *DB) RunEvents(runID string) ([]RunEvent, error) {
	rows, err := d.conn.Query(
		`SELECT id, run_id, target_id, mode, event, status, detail, timestamp
		 FROM run_events WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run events: %w", err)
	}
	defer rows.Close()

	var events []RunEvent
	for rows.Next() {
		var e RunEvent
		var status, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.TargetID, &e.Mode, &e.Event, &status, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		e.Status = status.String
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// StageEvents returns all stage events for one run in insertion order.
func (d *DB) StageEvents(runID string) ([]StageEvent, error) {
	rows, err := d.conn.Query(
		`SELECT id, run_id, target_id, stage, issue_id, outcome, duration_ms, detail, timestamp
		 FROM stage_events WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stage events: %w", err)
	}
	defer rows.Close()

	var events []StageEvent
	for rows.Next() {
		var e StageEvent
		var issueID, detail sql.NullString
		var durationMs sql.NullInt64
		if err := rows.Scan(&e.ID, &e.RunID, &e.TargetID, &e.Stage, &issueID, &e.Outcome, &durationMs, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan stage event: %w", err)
		}
		e.IssueID = issueID.String
		e.DurationMs = int(durationMs.Int64)
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}
