package main

import (
	"fmt"
	"io"

	"github.com/danielpatrickdp/epistemic-control/internal/ledger"
	"github.com/danielpatrickdp/epistemic-control/internal/logging"
	"github.com/danielpatrickdp/epistemic-control/internal/state"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect campaigns, ledger snapshots and refusal decisions",
		Long: `Without --campaign, lists every campaign with its active snapshot.
With --campaign, lists its recent snapshots and decisions.
With --version, shows one snapshot's ledger statistics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			if dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			campaign, _ := cmd.Flags().GetString("campaign")
			versionID, _ := cmd.Flags().GetString("version")
			last, _ := cmd.Flags().GetInt("last")
			jsonOut, _ := cmd.Flags().GetBool("json")

			store, err := state.NewStore(dbPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer store.Close()

			w := cmd.OutOrStdout()
			switch {
			case versionID != "":
				return runDetailMode(w, store, versionID, jsonOut)
			case campaign != "":
				return runCampaignMode(w, store, campaign, last, jsonOut)
			default:
				return runListMode(w, store, jsonOut)
			}
		},
	}

	cmd.Flags().String("db", "", "Snapshot database path (required)")
	cmd.Flags().String("campaign", "", "Show one campaign")
	cmd.Flags().String("version", "", "Show one snapshot")
	cmd.Flags().Int("last", 20, "Show N most recent snapshots and decisions")
	return cmd
}

// #region list-mode

func runListMode(w io.Writer, store *state.Store, jsonOut bool) error {
	campaigns, err := store.ListCampaigns()
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(w, campaigns)
	}
	if len(campaigns) == 0 {
		fmt.Fprintln(w, "no campaigns found")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-12s  %10s  %8s  %s\n", "Campaign", "Active", "Debt", "Versions", "Updated")
	for _, c := range campaigns {
		fmt.Fprintf(w, "%-36s  %-12s  %10.4f  %8d  %s\n",
			c.CampaignID, shortID(c.ActiveVersionID), c.TotalDebt, c.Versions, c.UpdatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion list-mode

// #region campaign-mode

type campaignOutput struct {
	CampaignID string                `json:"campaign_id"`
	Snapshots  []state.Snapshot      `json:"snapshots"`
	Decisions  []logging.DecisionRow `json:"decisions"`
}

func runCampaignMode(w io.Writer, store *state.Store, campaign string, last int, jsonOut bool) error {
	snaps, err := store.ListVersions(campaign, last)
	if err != nil {
		return err
	}
	decisions, err := logging.ListDecisions(store.DB(), campaign, last)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(w, campaignOutput{CampaignID: campaign, Snapshots: snaps, Decisions: decisions})
	}

	fmt.Fprintf(w, "Campaign: %s\n\n", campaign)
	fmt.Fprintf(w, "%-12s  %-12s  %-10s  %10s  %s\n", "Version", "Parent", "Trigger", "Debt", "Time")
	for _, s := range snaps {
		parent := "-"
		if s.ParentID != "" {
			parent = shortID(s.ParentID)
		}
		fmt.Fprintf(w, "%-12s  %-12s  %-10s  %10.4f  %s\n",
			shortID(s.VersionID), parent, s.Trigger, s.TotalDebt, s.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}

	fmt.Fprintf(w, "\n%-26s  %-24s  %-7s  %s\n", "Decision", "Template", "Refuse", "Reason")
	refusals := 0
	for _, d := range decisions {
		if d.Refuse {
			refusals++
		}
		fmt.Fprintf(w, "%-26s  %-24s  %-7v  %s\n", d.EntryID, d.Template, d.Refuse, d.Reason)
	}
	fmt.Fprintf(w, "\n%d snapshots, %d decisions (%d refused)\n", len(snaps), len(decisions), refusals)
	return nil
}

// #endregion campaign-mode

// #region detail-mode

type detailOutput struct {
	Snapshot    state.Snapshot     `json:"snapshot"`
	Forgiveness ledger.Forgiveness `json:"forgiveness"`
	Statistics  ledger.Statistics  `json:"statistics"`
	OpenClaims  []string           `json:"open_claims,omitempty"`

	Contaminated        bool   `json:"contaminated"`
	ContaminationReason string `json:"contamination_reason,omitempty"`
}

func runDetailMode(w io.Writer, store *state.Store, versionID string, jsonOut bool) error {
	snap, err := store.GetVersion(versionID)
	if err != nil {
		return err
	}
	l, err := snap.Ledger()
	if err != nil {
		return err
	}

	out := detailOutput{Snapshot: snap, Forgiveness: l.Forgiveness(), Statistics: l.Statistics()}
	out.Contaminated, out.ContaminationReason = l.Contamination()
	for _, c := range l.Claims() {
		if !c.IsResolved() {
			out.OpenClaims = append(out.OpenClaims, c.ActionID)
		}
	}

	if jsonOut {
		return printJSON(w, out)
	}

	s := out.Statistics
	fmt.Fprintf(w, "Version:     %s\n", snap.VersionID)
	fmt.Fprintf(w, "Parent:      %s\n", snap.ParentID)
	fmt.Fprintf(w, "Campaign:    %s\n", snap.CampaignID)
	fmt.Fprintf(w, "Trigger:     %s\n", snap.Trigger)
	fmt.Fprintf(w, "Checksum:    %s\n", snap.Checksum)
	fmt.Fprintf(w, "Forgiveness: %s\n", out.Forgiveness.Mode)
	fmt.Fprintf(w, "Debt:        %.4f (repaid %.4f over %d repayments)\n", s.TotalDebt, s.TotalRepaid, s.Repayments)
	fmt.Fprintf(w, "Claims:      %d (%d resolved, %d open)\n", s.TotalClaims, s.ResolvedClaims, len(out.OpenClaims))
	fmt.Fprintf(w, "Overclaim:   mean %.4f, rate %.2f\n", s.MeanOverclaim, s.OverclaimRate)
	if out.Contaminated {
		fmt.Fprintf(w, "Contaminated: %s\n", out.ContaminationReason)
	}
	return nil
}

// #endregion detail-mode

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
