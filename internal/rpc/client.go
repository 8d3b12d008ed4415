package rpc

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/epistemic-control/internal/controller"
	"github.com/danielpatrickdp/epistemic-control/internal/ledger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region client-struct
// Client calls a remote ControlPlane service.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewClient connects to the ControlPlane server at addr.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection.
// The caller owns cc.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close shuts down the connection if the client owns it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion constructor

// #region calls
// ClaimAction records a claim.
func (c *Client) ClaimAction(ctx context.Context, req ClaimRequest) (ledger.Claim, error) {
	var out ledger.Claim
	err := c.call(ctx, MethodClaimAction, req, &out)
	return out, err
}

// ResolveAction settles a claim.
func (c *Client) ResolveAction(ctx context.Context, req ResolveRequest) (ResolveResponse, error) {
	var out ResolveResponse
	err := c.call(ctx, MethodResolveAction, req, &out)
	return out, err
}

// ShouldRefuseAction asks the gate whether an action may run.
func (c *Client) ShouldRefuseAction(ctx context.Context, req RefuseRequest) (RefuseResponse, error) {
	var out RefuseResponse
	err := c.call(ctx, MethodShouldRefuseAction, req, &out)
	return out, err
}

// ApplyCalibrationRepayment applies an earned repayment.
func (c *Client) ApplyCalibrationRepayment(ctx context.Context, req RepayRequest) (RepayResponse, error) {
	var out RepayResponse
	err := c.call(ctx, MethodApplyCalibrationRepayment, req, &out)
	return out, err
}

// Statistics fetches the merged controller statistics.
func (c *Client) Statistics(ctx context.Context) (controller.Statistics, error) {
	var out controller.Statistics
	err := c.call(ctx, MethodStatistics, struct{}{}, &out)
	return out, err
}

// MeasureInformationGain reports a posterior after an action.
func (c *Client) MeasureInformationGain(ctx context.Context, req MeasureRequest) (MeasureResponse, error) {
	var out MeasureResponse
	err := c.call(ctx, MethodMeasureInformationGain, req, &out)
	return out, err
}

// ComputePenalty fetches the combined penalty for a measurement.
func (c *Client) ComputePenalty(ctx context.Context, req PenaltyRequest) (controller.PenaltyBreakdown, error) {
	var out controller.PenaltyBreakdown
	err := c.call(ctx, MethodComputePenalty, req, &out)
	return out, err
}

// EscrowWidening escrows a widening penalty.
func (c *Client) EscrowWidening(ctx context.Context, req EscrowRequest) (EscrowResponse, error) {
	var out EscrowResponse
	err := c.call(ctx, MethodEscrowWidening, req, &out)
	return out, err
}

// Advance moves the escrow clock.
func (c *Client) Advance(ctx context.Context, req AdvanceRequest) (AdvanceResponse, error) {
	var out AdvanceResponse
	err := c.call(ctx, MethodAdvance, req, &out)
	return out, err
}

func (c *Client) call(ctx context.Context, method string, req, out any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, resp); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return fromStruct(resp, out)
}

// #endregion calls
