package state

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/epistemic-control/internal/ledger"
	"github.com/danielpatrickdp/epistemic-control/internal/logging"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS ledger_snapshots (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	campaign_id   TEXT NOT NULL,
	trigger_type  TEXT NOT NULL,
	total_debt    REAL NOT NULL,
	payload       TEXT NOT NULL,
	checksum      TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES ledger_snapshots(version_id)
);
CREATE INDEX IF NOT EXISTS idx_ledger_snapshots_campaign ON ledger_snapshots(campaign_id);

CREATE TABLE IF NOT EXISTS active_snapshot (
	campaign_id   TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES ledger_snapshots(version_id)
);
`

// #endregion schema

// #region store-struct
// Store manages versioned ledger snapshots in SQLite.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations, including the
// decision_log table.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if _, err := db.Exec(logging.DecisionLogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate decision log: %w", err)
	}
	return &Store{db: db, clock: time.Now}, nil
}

// WithClock overrides the timestamp source for testing.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region save-snapshot
// SaveSnapshot persists the ledger as a new version of campaignID, parented
// on the campaign's active version, and makes it active.
func (s *Store) SaveSnapshot(campaignID, trigger string, l *ledger.Ledger) (Snapshot, error) {
	payload, err := l.Encode()
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode ledger: %w", err)
	}

	snap := Snapshot{
		VersionID:  uuid.New().String(),
		CampaignID: campaignID,
		Trigger:    trigger,
		TotalDebt:  l.TotalDebt(),
		Checksum:   checksum(payload),
		Payload:    payload,
		CreatedAt:  s.clock().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentID sql.NullString
	err = tx.QueryRow(`SELECT version_id FROM active_snapshot WHERE campaign_id = ?`, campaignID).Scan(&parentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("get parent: %w", err)
	}
	snap.ParentID = parentID.String

	_, err = tx.Exec(
		`INSERT INTO ledger_snapshots (version_id, parent_id, campaign_id, trigger_type, total_debt, payload, checksum, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.VersionID, parentID, snap.CampaignID, snap.Trigger, snap.TotalDebt,
		string(payload), snap.Checksum, snap.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_snapshot (campaign_id, version_id) VALUES (?, ?)
		 ON CONFLICT(campaign_id) DO UPDATE SET version_id = excluded.version_id`,
		campaignID, snap.VersionID,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("commit: %w", err)
	}
	return snap, nil
}

// #endregion save-snapshot

// #region get-current
// GetCurrent reads the active snapshot of campaignID.
func (s *Store) GetCurrent(campaignID string) (Snapshot, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_snapshot WHERE campaign_id = ?`, campaignID).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("campaign %s: %w", campaignID, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-current

// #region get-version
// GetVersion retrieves a snapshot by ID and verifies its checksum.
func (s *Store) GetVersion(id string) (Snapshot, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, campaign_id, trigger_type, total_debt, payload, checksum, created_at
		 FROM ledger_snapshots WHERE version_id = ?`, id,
	)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get version %s: %w", id, err)
	}
	if got := checksum(snap.Payload); got != snap.Checksum {
		return Snapshot{}, fmt.Errorf("version %s: %w", id, ErrChecksumMismatch)
	}
	return snap, nil
}

// #endregion get-version

// #region rollback
// Rollback sets the active pointer of campaignID to a previous version.
func (s *Store) Rollback(campaignID, targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM ledger_snapshots WHERE version_id = ? AND campaign_id = ?`,
		targetVersionID, campaignID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s in campaign %s: %w", targetVersionID, campaignID, ErrNotFound)
	}

	_, err = s.db.Exec(`UPDATE active_snapshot SET version_id = ? WHERE campaign_id = ?`, targetVersionID, campaignID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent snapshots of campaignID, newest first.
// Payloads are included but not verified.
func (s *Store) ListVersions(campaignID string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, campaign_id, trigger_type, total_debt, payload, checksum, created_at
		 FROM ledger_snapshots WHERE campaign_id = ? ORDER BY rowid DESC LIMIT ?`, campaignID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// ListCampaigns summarizes every campaign with an active snapshot.
func (s *Store) ListCampaigns() ([]CampaignSummary, error) {
	rows, err := s.db.Query(
		`SELECT a.campaign_id, a.version_id, v.total_debt, v.created_at,
		        (SELECT COUNT(*) FROM ledger_snapshots c WHERE c.campaign_id = a.campaign_id)
		 FROM active_snapshot a JOIN ledger_snapshots v ON v.version_id = a.version_id
		 ORDER BY a.campaign_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []CampaignSummary
	for rows.Next() {
		var c CampaignSummary
		var createdStr string
		if err := rows.Scan(&c.CampaignID, &c.ActiveVersionID, &c.TotalDebt, &createdStr, &c.Versions); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, c)
	}
	return out, rows.Err()
}

// #endregion list-versions

// #region helpers
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(r rowScanner) (Snapshot, error) {
	var snap Snapshot
	var parentID sql.NullString
	var payload, createdStr string
	err := r.Scan(&snap.VersionID, &parentID, &snap.CampaignID, &snap.Trigger,
		&snap.TotalDebt, &payload, &snap.Checksum, &createdStr)
	if err != nil {
		return Snapshot{}, err
	}
	snap.ParentID = parentID.String
	snap.Payload = []byte(payload)
	snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return snap, nil
}

func checksum(payload []byte) string {
	h := blake3.New()
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// #endregion helpers
