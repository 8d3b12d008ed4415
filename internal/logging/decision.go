package logging

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// DecisionLogSchema creates the decision_log table.
const DecisionLogSchema = `
CREATE TABLE IF NOT EXISTS decision_log (
	entry_id     TEXT PRIMARY KEY,
	campaign_id  TEXT NOT NULL,
	template     TEXT NOT NULL,
	refuse       INTEGER NOT NULL,
	reason       TEXT,
	context_json TEXT,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decision_log_campaign ON decision_log(campaign_id, entry_id);
`

// #region log-decision
// LogDecision writes a refusal decision to the decision_log table and
// returns its entry id.
func LogDecision(db *sql.DB, entry DecisionEntry) (string, error) {
	if entry.EntryID == "" {
		entry.EntryID = ulid.Make().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO decision_log (entry_id, campaign_id, template, refuse, reason, context_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.EntryID,
		entry.CampaignID,
		entry.Template,
		boolToInt(entry.Refuse),
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.ContextJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("log decision: %w", err)
	}
	return entry.EntryID, nil
}

// #endregion log-decision

// #region list-decisions
// ListDecisions returns the most recent decisions for a campaign, oldest
// first. limit <= 0 returns all.
func ListDecisions(db *sql.DB, campaignID string, limit int) ([]DecisionRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(
		`SELECT entry_id, campaign_id, template, refuse, reason, context_json, created_at
		 FROM (SELECT * FROM decision_log WHERE campaign_id = ? ORDER BY entry_id DESC LIMIT ?)
		 ORDER BY entry_id ASC`,
		campaignID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRow
	for rows.Next() {
		var r DecisionRow
		var refuse int
		var reason, ctxJSON sql.NullString
		var createdAt string
		if err := rows.Scan(&r.EntryID, &r.CampaignID, &r.Template, &refuse, &reason, &ctxJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		r.Refuse = refuse != 0
		r.Reason = reason.String
		if ctxJSON.Valid {
			r.Context = []byte(ctxJSON.String)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion list-decisions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
