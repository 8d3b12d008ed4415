package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/danielpatrickdp/epistemic-control/internal/controller"
	"github.com/danielpatrickdp/epistemic-control/internal/rpc"
	"github.com/danielpatrickdp/epistemic-control/internal/state"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ControlPlane gRPC server for one campaign",
		Long: `Serve restores the campaign's active ledger snapshot (if any), exposes the
controller over gRPC and writes a new snapshot on shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			if db, _ := cmd.Flags().GetString("db"); db != "" {
				cfg.Store.Path = db
			}
			campaign, _ := cmd.Flags().GetString("campaign")
			if campaign == "" {
				campaign = uuid.New().String()
			}
			logger := newLogger(cfg, os.Stderr)

			// 1. Store
			store, err := state.NewStore(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			// 2. Resume from the active snapshot
			ctrl, err := resumeController(store, campaign, cfg.Controller, logger)
			if err != nil {
				return err
			}

			// 3. gRPC server
			lis, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
			}
			srv := rpc.NewServer(ctrl, logger).WithDecisionLog(store.DB(), campaign)
			gs := grpc.NewServer(grpc.UnaryInterceptor(srv.UnaryInterceptor()))
			rpc.RegisterControlPlaneServer(gs, srv)

			serveErr := make(chan error, 1)
			go func() { serveErr <- gs.Serve(lis) }()
			logger.Info("control plane listening", "addr", lis.Addr().String(), "db", cfg.Store.Path)

			sig := make(chan os.Signal, 1)
			notifySignals(sig)
			select {
			case s := <-sig:
				logger.Info("shutting down", "signal", s.String())
				gs.GracefulStop()
			case err := <-serveErr:
				if err != nil {
					logger.Error("serve failed", "error", err)
				}
			}

			// 4. Snapshot on shutdown
			return srv.Do(func(c *controller.Controller) error {
				snap, err := store.SaveSnapshot(campaign, "shutdown", c.Ledger())
				if err != nil {
					return fmt.Errorf("shutdown snapshot: %w", err)
				}
				logger.Info("snapshot saved", "campaign_id", campaign, "version_id", snap.VersionID, "total_debt", snap.TotalDebt)
				return nil
			})
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default from config)")
	cmd.Flags().String("db", "", "Snapshot database path (default from config)")
	cmd.Flags().String("campaign", "", "Campaign id to resume (default: new id)")
	return cmd
}

// resumeController builds a controller for campaign and loads its active
// snapshot, if one exists. A contaminated snapshot keeps the controller
// contaminated whatever config enables.
func resumeController(store *state.Store, campaign string, config controller.Config, logger *slog.Logger) (*controller.Controller, error) {
	ctrl, err := controller.New(config, logger)
	if err != nil {
		return nil, err
	}

	snap, err := store.GetCurrent(campaign)
	switch {
	case err == nil:
		l, err := snap.Ledger()
		if err != nil {
			return nil, fmt.Errorf("restore snapshot %s: %w", snap.VersionID, err)
		}
		ctrl.WithLedger(l)
		logger.Info("resumed campaign", "campaign_id", campaign, "version_id", snap.VersionID,
			"total_debt", l.TotalDebt(), "contaminated", ctrl.IsContaminated())
	case errors.Is(err, state.ErrNotFound):
		logger.Info("starting new campaign", "campaign_id", campaign)
	default:
		return nil, err
	}
	return ctrl, nil
}
