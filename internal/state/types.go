package state

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/epistemic-control/internal/ledger"
)

var (
	// ErrNotFound is returned when a campaign or version does not exist.
	ErrNotFound = errors.New("snapshot not found")
	// ErrChecksumMismatch is returned when a stored payload no longer
	// matches its recorded checksum.
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")
)

// #region snapshot
// Snapshot is one versioned ledger record of a campaign.
type Snapshot struct {
	VersionID  string    `json:"version_id"`
	ParentID   string    `json:"parent_id,omitempty"`
	CampaignID string    `json:"campaign_id"`
	Trigger    string    `json:"trigger"` // "shutdown" | "replay" | "manual"
	TotalDebt  float64   `json:"total_debt"`
	Checksum   string    `json:"checksum"` // blake3 hex of Payload
	Payload    []byte    `json:"-"`        // ledger.Record JSON
	CreatedAt  time.Time `json:"created_at"`
}

// Ledger decodes the snapshot payload into a ledger.
func (s Snapshot) Ledger() (*ledger.Ledger, error) {
	return ledger.Decode(s.Payload)
}

// #endregion snapshot

// #region campaign-summary
// CampaignSummary describes a campaign's active snapshot.
type CampaignSummary struct {
	CampaignID      string    `json:"campaign_id"`
	ActiveVersionID string    `json:"active_version_id"`
	TotalDebt       float64   `json:"total_debt"`
	Versions        int       `json:"versions"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// #endregion campaign-summary
