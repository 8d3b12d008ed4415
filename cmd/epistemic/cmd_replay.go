package main

import (
	"fmt"
	"io"
	"os"

	"github.com/danielpatrickdp/epistemic-control/internal/logging"
	"github.com/danielpatrickdp/epistemic-control/internal/replay"
	"github.com/danielpatrickdp/epistemic-control/internal/state"
	"github.com/spf13/cobra"
)

type replayOutput struct {
	Fixture   string               `json:"fixture"`
	Campaign  string               `json:"campaign_id"`
	Summary   replay.ReplaySummary `json:"summary"`
	Failures  map[string][]string  `json:"failures,omitempty"`
	VersionID string               `json:"version_id,omitempty"`
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a scripted campaign fixture through a fresh controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			fixturePath, _ := cmd.Flags().GetString("fixture")
			if fixturePath == "" {
				return fmt.Errorf("--fixture is required")
			}
			dbPath, _ := cmd.Flags().GetString("db")
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stderr)

			f, err := replay.LoadFixture(fixturePath)
			if err != nil {
				return err
			}
			ctrl, results, err := replay.Run(f, logger)
			if err != nil {
				return err
			}

			out := replayOutput{
				Fixture:  fixturePath,
				Campaign: f.CampaignID,
				Summary:  replay.Summarize(ctrl, results),
			}
			for _, r := range results {
				if !r.Passed() {
					if out.Failures == nil {
						out.Failures = make(map[string][]string)
					}
					out.Failures[r.StepID] = r.Mismatches
				}
			}

			// Persist decisions and the final ledger when a db is given
			if dbPath != "" {
				store, err := state.NewStore(dbPath)
				if err != nil {
					return fmt.Errorf("open store: %w", err)
				}
				defer store.Close()

				for _, r := range results {
					if r.Decision == nil {
						continue
					}
					entry, err := logging.NewDecisionEntry(f.CampaignID, *r.Decision)
					if err != nil {
						return err
					}
					if _, err := logging.LogDecision(store.DB(), entry); err != nil {
						return err
					}
				}
				snap, err := store.SaveSnapshot(f.CampaignID, "replay", ctrl.Ledger())
				if err != nil {
					return err
				}
				out.VersionID = snap.VersionID
			}

			if jsonOut {
				if err := printJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
			} else {
				printReplayTable(cmd.OutOrStdout(), results, out)
			}

			if out.Summary.Failed > 0 {
				return fmt.Errorf("%d of %d steps failed", out.Summary.Failed, out.Summary.TotalSteps)
			}
			return nil
		},
	}

	cmd.Flags().String("fixture", "", "Campaign fixture JSON (required)")
	cmd.Flags().String("db", "", "Write decisions and the final snapshot to this database")
	return cmd
}

func printReplayTable(w io.Writer, results []replay.StepResult, out replayOutput) {
	fmt.Fprintf(w, "%-24s  %-16s  %10s  %8s  %-6s  %s\n", "Step", "Op", "Value", "Debt", "Result", "Detail")
	fmt.Fprintf(w, "%-24s+-%-16s+-%10s+-%8s+-%-6s+-%s\n",
		"------------------------", "----------------", "----------", "--------", "------", "--------------------")
	for _, r := range results {
		result := "ok"
		detail := r.Err
		if r.Decision != nil && r.Decision.Refuse {
			detail = string(r.Decision.Reason)
		}
		if !r.Passed() {
			result = "FAIL"
			detail = fmt.Sprint(r.Mismatches)
		}
		fmt.Fprintf(w, "%-24s  %-16s  %10.4f  %8.4f  %-6s  %s\n", r.StepID, r.Op, r.Value, r.Debt, result, detail)
	}

	s := out.Summary
	fmt.Fprintf(w, "\nCampaign %s: %d steps, %d passed, %d failed, %d refusals, final debt %.4f\n",
		out.Campaign, s.TotalSteps, s.Passed, s.Failed, s.Refusals, s.FinalDebt)
	if s.Statistics.IsContaminated {
		fmt.Fprintf(w, "WARNING: run contaminated (%s)\n", s.Statistics.ContaminationReason)
	}
	if out.VersionID != "" {
		fmt.Fprintf(w, "Snapshot: %s\n", out.VersionID)
	}
}
