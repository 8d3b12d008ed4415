package logging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/epistemic-control/internal/gate"
)

// #region decision-entry
// DecisionEntry is a single row in the decision_log table.
type DecisionEntry struct {
	EntryID     string // ULID; generated when empty
	CampaignID  string
	Template    string
	Refuse      bool
	Reason      string
	ContextJSON string
	CreatedAt   time.Time
}

// NewDecisionEntry builds a log entry from a gate decision.
func NewDecisionEntry(campaignID string, d gate.Decision) (DecisionEntry, error) {
	ctx, err := json.Marshal(d.Context)
	if err != nil {
		return DecisionEntry{}, fmt.Errorf("marshal decision context: %w", err)
	}
	return DecisionEntry{
		CampaignID:  campaignID,
		Template:    d.Context.Template,
		Refuse:      d.Refuse,
		Reason:      string(d.Reason),
		ContextJSON: string(ctx),
	}, nil
}

// #endregion decision-entry

// #region decision-row
// DecisionRow is a decision_log row as read back for inspection.
type DecisionRow struct {
	EntryID    string          `json:"entry_id"`
	CampaignID string          `json:"campaign_id"`
	Template   string          `json:"template"`
	Refuse     bool            `json:"refuse"`
	Reason     string          `json:"reason,omitempty"`
	Context    json.RawMessage `json:"context,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// #endregion decision-row
