// Package analytics computes summary statistics from the events database.
package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
}

// StageDuration holds duration stats for a stage.
type StageDuration struct {
	Stage string  `json:"stage"`
	Count int     `json:"count"`
	Avg   float64 `json:"avg_ms"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
}

// QueryStageDurations returns average and percentile durations per stage
// from recorded stage events.
func QueryStageDurations(database DB, since string) ([]StageDuration, error) {
	query := `
		SELECT stage, duration_ms
		FROM stage_events
		WHERE duration_ms IS NOT NULL AND duration_ms > 0`

	args := []interface{}{}
	if since != "" {
		query += ` AND timestamp >= ?`
		args = append(args, since)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stage durations: %w", err)
	}
	defer rows.Close()

	stageDurations := make(map[string][]float64)
	for rows.Next() {
		var stage string
		var ms float64
		if err := rows.Scan(&stage, &ms); err != nil {
			return nil, fmt.Errorf("scan stage duration: %w", err)
		}
		stageDurations[stage] = append(stageDurations[stage], ms)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []StageDuration
	for stage, durations := range stageDurations {
		sort.Float64s(durations)
		results = append(results, StageDuration{
			Stage: stage,
			Count: len(durations),
			Avg:   avg(durations),
			P50:   percentile(durations, 50),
			P95:   percentile(durations, 95),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Stage < results[j].Stage
	})
	return results, nil
}

// StageOutcomeRate holds the outcome distribution for one stage.
type StageOutcomeRate struct {
	Stage       string  `json:"stage"`
	Total       int     `json:"total"`
	SuccessPct  float64 `json:"success_pct"`
	TimeoutPct  float64 `json:"timeout_pct"`
	ContractPct float64 `json:"contract_rejected_pct"`
}

// QueryStageOutcomes returns per-stage outcome rates.
func QueryStageOutcomes(database DB, since string) ([]StageOutcomeRate, error) {
	query := `
		SELECT stage,
			COUNT(*) as total,
			SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END) as successes,
			SUM(CASE WHEN outcome = 'timeout' THEN 1 ELSE 0 END) as timeouts,
			SUM(CASE WHEN outcome = 'contract_rejected' THEN 1 ELSE 0 END) as rejected
		FROM stage_events`

	args := []interface{}{}
	if since != "" {
		query += ` WHERE timestamp >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY stage ORDER BY stage`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stage outcomes: %w", err)
	}
	defer rows.Close()

	var results []StageOutcomeRate
	for rows.Next() {
		var stage string
		var total, successes, timeouts, rejected int
		if err := rows.Scan(&stage, &total, &successes, &timeouts, &rejected); err != nil {
			return nil, fmt.Errorf("scan stage outcome: %w", err)
		}
		r := StageOutcomeRate{Stage: stage, Total: total}
		if total > 0 {
			r.SuccessPct = pct(successes, total)
			r.TimeoutPct = pct(timeouts, total)
			r.ContractPct = pct(rejected, total)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// RunStatusCount holds how many runs finished with each status.
type RunStatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// QueryRunStatuses returns finished-run counts grouped by status.
func QueryRunStatuses(database DB, since string) ([]RunStatusCount, error) {
	query := `
		SELECT status, COUNT(*)
		FROM run_events
		WHERE event = 'finished' AND status IS NOT NULL`

	args := []interface{}{}
	if since != "" {
		query += ` AND timestamp >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY status ORDER BY status`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run statuses: %w", err)
	}
	defer rows.Close()

	var results []RunStatusCount
	for rows.Next() {
		var r RunStatusCount
		if err := rows.Scan(&r.Status, &r.Count); err != nil {
			return nil, fmt.Errorf("scan run status: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func avg(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return round2(sum / float64(len(sorted)))
}

// percentile assumes the input is sorted ascending.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return round2(sorted[idx])
}

func pct(n, total int) float64 {
	return round2(float64(n) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
