package main

import (
	"fmt"

	"github.com/danielpatrickdp/epistemic-control/internal/state"
	"github.com/spf13/cobra"
)

type rollbackOutput struct {
	CampaignID  string  `json:"campaign_id"`
	FromVersion string  `json:"from_version"`
	ToVersion   string  `json:"to_version"`
	TotalDebt   float64 `json:"total_debt"`
}

func newRollbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Point a campaign's active snapshot at an earlier version",
		Long: `Rollback makes --version the active snapshot of --campaign. The next
serve of that campaign resumes from it. No snapshot is deleted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			campaign, _ := cmd.Flags().GetString("campaign")
			versionID, _ := cmd.Flags().GetString("version")
			if dbPath == "" || campaign == "" || versionID == "" {
				return fmt.Errorf("--db, --campaign and --version are required")
			}
			jsonOut, _ := cmd.Flags().GetBool("json")

			store, err := state.NewStore(dbPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer store.Close()

			cur, err := store.GetCurrent(campaign)
			if err != nil {
				return err
			}
			if err := store.Rollback(campaign, versionID); err != nil {
				return err
			}
			target, err := store.GetVersion(versionID)
			if err != nil {
				return err
			}

			out := rollbackOutput{
				CampaignID:  campaign,
				FromVersion: cur.VersionID,
				ToVersion:   target.VersionID,
				TotalDebt:   target.TotalDebt,
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s (debt %.4f)\n",
				campaign, shortID(out.FromVersion), shortID(out.ToVersion), out.TotalDebt)
			return nil
		},
	}

	cmd.Flags().String("db", "", "Snapshot database path (required)")
	cmd.Flags().String("campaign", "", "Campaign to roll back (required)")
	cmd.Flags().String("version", "", "Snapshot version to make active (required)")
	return cmd
}
