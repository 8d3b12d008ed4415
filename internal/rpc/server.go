package rpc

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"

	"github.com/danielpatrickdp/epistemic-control/internal/controller"
	"github.com/danielpatrickdp/epistemic-control/internal/ledger"
	"github.com/danielpatrickdp/epistemic-control/internal/logging"
	"github.com/danielpatrickdp/epistemic-control/internal/penalty"
	"github.com/danielpatrickdp/epistemic-control/internal/provisional"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region server-struct
// Server implements ControlPlaneServer over a single controller. All calls
// are serialized; the controller itself is single-writer.
type Server struct {
	mu         sync.Mutex
	ctrl       *controller.Controller
	db         *sql.DB
	campaignID string
	logger     *slog.Logger
}

// NewServer wraps ctrl. A nil logger uses slog.Default().
func NewServer(ctrl *controller.Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ctrl: ctrl, logger: logger}
}

// WithDecisionLog records every ShouldRefuseAction decision in db's
// decision_log under campaignID.
func (s *Server) WithDecisionLog(db *sql.DB, campaignID string) *Server {
	s.db = db
	s.campaignID = campaignID
	return s
}

// Do runs fn with exclusive access to the controller.
func (s *Server) Do(fn func(*controller.Controller) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ctrl)
}

// UnaryInterceptor attaches the served controller to every request context.
// Handlers read it back with controller.FromContext.
func (s *Server) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(controller.NewContext(ctx, s.ctrl), req)
	}
}

// ctrlFrom returns the controller carried by ctx, or the served one when the
// server runs without UnaryInterceptor.
func (s *Server) ctrlFrom(ctx context.Context) *controller.Controller {
	if c, ok := controller.FromContext(ctx); ok {
		return c
	}
	return s.ctrl
}

// #endregion server-struct

// #region claim
// ClaimAction records a claim before the action runs.
func (s *Server) ClaimAction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ClaimRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	ctrl := s.ctrlFrom(ctx)
	s.mu.Lock()
	claim, err := ctrl.ClaimAction(ledger.ClaimRequest{
		ActionID:            req.ActionID,
		ActionType:          req.ActionType,
		ClaimedGainBits:     req.ClaimedGainBits,
		PriorModalities:     req.PriorModalities,
		ClaimedMarginalGain: req.ClaimedMarginalGain,
	})
	s.mu.Unlock()
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(claim)
}

// #endregion claim

// #region resolve
// ResolveAction settles a claim with its realized gain.
func (s *Server) ResolveAction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ResolveRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.ActionID == "" {
		return nil, status.Error(codes.InvalidArgument, ledger.ErrEmptyActionID.Error())
	}

	ctrl := s.ctrlFrom(ctx)
	s.mu.Lock()
	res, err := ctrl.ResolveAction(req.ActionID, req.ActualGainBits, req.ActionType)
	debt := ctrl.TotalDebt()
	s.mu.Unlock()
	if err != nil {
		return nil, toStatus(err)
	}

	return reply(ResolveResponse{Resolution: res, TotalDebt: debt})
}

// #endregion resolve

// #region refuse
// ShouldRefuseAction evaluates the refusal gate and logs the decision.
func (s *Server) ShouldRefuseAction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RefuseRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.Template == "" {
		return nil, status.Error(codes.InvalidArgument, "template is required")
	}

	ctrl := s.ctrlFrom(ctx)
	s.mu.Lock()
	d := ctrl.ShouldRefuseAction(req.Template, req.BaseCostWells, req.BudgetRemaining)
	state := ctrl.State(req.BudgetRemaining)
	s.mu.Unlock()

	resp := RefuseResponse{
		Refuse:  d.Refuse,
		Reason:  string(d.Reason),
		Context: d.Context,
		State:   string(state),
	}
	for _, v := range d.Vetoes {
		resp.Vetoes = append(resp.Vetoes, Veto{Reason: string(v.Reason), Detail: v.Detail})
	}

	if s.db != nil {
		entry, err := logging.NewDecisionEntry(s.campaignID, d)
		if err == nil {
			resp.EntryID, err = logging.LogDecision(s.db, entry)
		}
		if err != nil {
			// audit failure must not change the decision
			s.logger.Error("decision log write failed", "template", req.Template, "error", err)
		}
	}
	return reply(resp)
}

// #endregion refuse

// #region repay
// ApplyCalibrationRepayment applies the repayment earned by a calibration.
func (s *Server) ApplyCalibrationRepayment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RepayRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.ActionID == "" || req.Template == "" {
		return nil, status.Error(codes.InvalidArgument, "action_id and template are required")
	}

	ctrl := s.ctrlFrom(ctx)
	s.mu.Lock()
	applied, res, err := ctrl.ApplyCalibrationRepayment(req.ActionID, req.Template, req.NoiseImprovement)
	debt := ctrl.TotalDebt()
	s.mu.Unlock()
	if err != nil {
		return nil, toStatus(err)
	}

	return reply(RepayResponse{
		Eligible:    res.Eligible,
		BaseBits:    res.BaseBits,
		BonusBits:   res.BonusBits,
		RepayBits:   res.RepayBits,
		AppliedBits: applied,
		Reason:      res.Reason,
		TotalDebt:   debt,
	})
}

// #endregion repay

// #region statistics
// Statistics returns the merged controller statistics.
func (s *Server) Statistics(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	ctrl := s.ctrlFrom(ctx)
	s.mu.Lock()
	stats := ctrl.Statistics()
	s.mu.Unlock()
	return reply(stats)
}

// #endregion statistics

// #region measure
// MeasureInformationGain reports prior - posterior bits and feeds the
// thrashing detector. Callers send it after every action with a posterior.
func (s *Server) MeasureInformationGain(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req MeasureRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	ctrl := s.ctrlFrom(ctx)
	s.mu.Lock()
	gain := ctrl.MeasureInformationGain(req.PriorEntropy, req.PosteriorEntropy)
	vol := ctrl.Statistics().Volatility
	s.mu.Unlock()

	return reply(MeasureResponse{InformationGainBits: gain, Volatility: vol})
}

// #endregion measure

// #region penalty
// ComputePenalty returns the combined penalty for one measurement.
func (s *Server) ComputePenalty(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req PenaltyRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	src := penalty.EntropySource(req.EntropySource)
	if src == "" {
		src = penalty.SourceMeasurementAmbiguous
	}
	if !src.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "unknown entropy source %q", req.EntropySource)
	}

	ctrl := s.ctrlFrom(ctx)
	s.mu.Lock()
	b := ctrl.ComputePenalty(controller.PenaltyInput{
		ActionType:       req.ActionType,
		PriorEntropy:     req.PriorEntropy,
		PosteriorEntropy: req.PosteriorEntropy,
		BaselineEntropy:  req.BaselineEntropy,
		Source:           src,
	})
	s.mu.Unlock()

	return reply(b)
}

// #endregion penalty

// #region escrow
// EscrowWidening holds a widening penalty until its settlement horizon.
func (s *Server) EscrowWidening(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req EscrowRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.ActionID == "" {
		return nil, status.Error(codes.InvalidArgument, ledger.ErrEmptyActionID.Error())
	}

	ctrl := s.ctrlFrom(ctx)
	s.mu.Lock()
	err := ctrl.EscrowWidening(req.ActionID, req.Amount, req.PriorEntropy, req.SettlementHours)
	stats := ctrl.Statistics().Provisional
	s.mu.Unlock()
	if err != nil {
		return nil, toStatus(err)
	}

	return reply(EscrowResponse{ActionID: req.ActionID, Amount: req.Amount, Provisional: stats})
}

// Advance moves the escrow clock and settles entries whose horizon elapsed.
func (s *Server) Advance(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req AdvanceRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	ctrl := s.ctrlFrom(ctx)
	s.mu.Lock()
	res, err := ctrl.Advance(req.CurrentEntropy, req.ElapsedHours)
	stats := ctrl.Statistics().Provisional
	s.mu.Unlock()
	if err != nil {
		return nil, toStatus(err)
	}

	return reply(AdvanceResponse{
		Charge:      res.Charge,
		Refunded:    res.Refunded,
		Finalized:   res.Finalized,
		Provisional: stats,
	})
}

// #endregion escrow

// #region helpers
func reply(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, ledger.ErrDuplicateClaim), errors.Is(err, provisional.ErrDuplicateEntry):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ledger.ErrEmptyActionID), errors.Is(err, ledger.ErrNegativeRepayment),
		errors.Is(err, ledger.ErrNonFiniteGain),
		errors.Is(err, provisional.ErrNegativeAmount), errors.Is(err, provisional.ErrNegativeElapsed):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ledger.ErrRepaymentDisabled):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// #endregion helpers
