package state

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/epistemic-control/internal/ledger"
	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ledgerWithDebt(t *testing.T, debt float64) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(ledger.RepaymentForgiveness())
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	if debt > 0 {
		if _, err := l.Claim(ledger.ClaimRequest{ActionID: "a1", ActionType: "imaging", ClaimedGainBits: debt}); err != nil {
			t.Fatalf("claim: %v", err)
		}
		l.Realize("a1", 0)
	}
	return l
}

func TestSaveAndGetCurrent(t *testing.T) {
	s := tempDB(t)

	snap, err := s.SaveSnapshot("c1", "manual", ledgerWithDebt(t, 1.25))
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if snap.VersionID == "" || snap.ParentID != "" {
		t.Fatalf("expected root snapshot, got %+v", snap)
	}
	if len(snap.Checksum) != 64 {
		t.Fatalf("expected 32-byte hex checksum, got %q", snap.Checksum)
	}

	cur, err := s.GetCurrent("c1")
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if cur.VersionID != snap.VersionID || cur.TotalDebt != 1.25 {
		t.Fatalf("unexpected current: %+v", cur)
	}

	l, err := cur.Ledger()
	if err != nil {
		t.Fatalf("decode ledger: %v", err)
	}
	if l.TotalDebt() != 1.25 || len(l.Claims()) != 1 {
		t.Fatalf("ledger not restored: debt=%f claims=%d", l.TotalDebt(), len(l.Claims()))
	}
}

func TestGetCurrentUnknownCampaign(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetCurrent("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetVersion("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshotChainAndRollback(t *testing.T) {
	s := tempDB(t)

	first, err := s.SaveSnapshot("c1", "manual", ledgerWithDebt(t, 0.5))
	if err != nil {
		t.Fatalf("save first: %v", err)
	}
	second, err := s.SaveSnapshot("c1", "shutdown", ledgerWithDebt(t, 2.0))
	if err != nil {
		t.Fatalf("save second: %v", err)
	}
	if second.ParentID != first.VersionID {
		t.Fatalf("expected parent %s, got %s", first.VersionID, second.ParentID)
	}

	if err := s.Rollback("c1", first.VersionID); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	cur, err := s.GetCurrent("c1")
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if cur.VersionID != first.VersionID || cur.TotalDebt != 0.5 {
		t.Fatalf("expected rollback to first, got %+v", cur)
	}

	// the next save branches from the rolled-back version
	third, err := s.SaveSnapshot("c1", "manual", ledgerWithDebt(t, 0.75))
	if err != nil {
		t.Fatalf("save third: %v", err)
	}
	if third.ParentID != first.VersionID {
		t.Fatalf("expected branch from %s, got %s", first.VersionID, third.ParentID)
	}
}

func TestRollbackRejectsForeignVersion(t *testing.T) {
	s := tempDB(t)
	other, err := s.SaveSnapshot("c2", "manual", ledgerWithDebt(t, 0))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	s.SaveSnapshot("c1", "manual", ledgerWithDebt(t, 0))

	if err := s.Rollback("c1", other.VersionID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChecksumMismatchDetected(t *testing.T) {
	s := tempDB(t)
	snap, err := s.SaveSnapshot("c1", "manual", ledgerWithDebt(t, 1.0))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := s.DB().Exec(`UPDATE ledger_snapshots SET payload = ? WHERE version_id = ?`, `{"tampered":true}`, snap.VersionID); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if _, err := s.GetVersion(snap.VersionID); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestListVersionsAndCampaigns(t *testing.T) {
	s := tempDB(t)
	for _, debt := range []float64{0.25, 0.5, 1.0} {
		if _, err := s.SaveSnapshot("c1", "manual", ledgerWithDebt(t, debt)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	s.SaveSnapshot("c2", "manual", ledgerWithDebt(t, 3.0))

	versions, err := s.ListVersions("c1", 2)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 || versions[0].TotalDebt != 1.0 || versions[1].TotalDebt != 0.5 {
		t.Fatalf("expected newest two, got %+v", versions)
	}

	all, err := s.ListVersions("c1", 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 versions, got %d (%v)", len(all), err)
	}

	campaigns, err := s.ListCampaigns()
	if err != nil {
		t.Fatalf("ListCampaigns: %v", err)
	}
	if len(campaigns) != 2 {
		t.Fatalf("expected 2 campaigns, got %+v", campaigns)
	}
	if campaigns[0].CampaignID != "c1" || campaigns[0].Versions != 3 || campaigns[0].TotalDebt != 1.0 {
		t.Fatalf("unexpected c1 summary: %+v", campaigns[0])
	}
	if campaigns[1].CampaignID != "c2" || campaigns[1].TotalDebt != 3.0 {
		t.Fatalf("unexpected c2 summary: %+v", campaigns[1])
	}
}

func TestDecisionLogTableMigrated(t *testing.T) {
	s := tempDB(t)
	var name string
	err := s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='decision_log'`).Scan(&name)
	if err != nil || name != "decision_log" {
		t.Fatalf("expected decision_log table, got %q (%v)", name, err)
	}
}
