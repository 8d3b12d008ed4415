// Package rpc exposes the controller as the epistemic.v1.ControlPlane gRPC
// service. Messages travel as google.protobuf.Struct documents whose keys
// follow the JSON field names of the request and response types.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "epistemic.v1.ControlPlane"

// Method names.
const (
	MethodClaimAction               = "ClaimAction"
	MethodResolveAction             = "ResolveAction"
	MethodShouldRefuseAction        = "ShouldRefuseAction"
	MethodApplyCalibrationRepayment = "ApplyCalibrationRepayment"
	MethodStatistics                = "Statistics"
	MethodMeasureInformationGain    = "MeasureInformationGain"
	MethodComputePenalty            = "ComputePenalty"
	MethodEscrowWidening            = "EscrowWidening"
	MethodAdvance                   = "Advance"
)

// #region server-interface
// ControlPlaneServer is the server API for the ControlPlane service.
type ControlPlaneServer interface {
	ClaimAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ShouldRefuseAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyCalibrationRepayment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Statistics(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MeasureInformationGain(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ComputePenalty(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EscrowWidening(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Advance(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// #endregion server-interface

// #region service-desc
type unaryCall func(ControlPlaneServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlPlaneServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ControlPlaneServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes the ControlPlane service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlPlaneServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodClaimAction, Handler: unaryHandler(MethodClaimAction, ControlPlaneServer.ClaimAction)},
		{MethodName: MethodResolveAction, Handler: unaryHandler(MethodResolveAction, ControlPlaneServer.ResolveAction)},
		{MethodName: MethodShouldRefuseAction, Handler: unaryHandler(MethodShouldRefuseAction, ControlPlaneServer.ShouldRefuseAction)},
		{MethodName: MethodApplyCalibrationRepayment, Handler: unaryHandler(MethodApplyCalibrationRepayment, ControlPlaneServer.ApplyCalibrationRepayment)},
		{MethodName: MethodStatistics, Handler: unaryHandler(MethodStatistics, ControlPlaneServer.Statistics)},
		{MethodName: MethodMeasureInformationGain, Handler: unaryHandler(MethodMeasureInformationGain, ControlPlaneServer.MeasureInformationGain)},
		{MethodName: MethodComputePenalty, Handler: unaryHandler(MethodComputePenalty, ControlPlaneServer.ComputePenalty)},
		{MethodName: MethodEscrowWidening, Handler: unaryHandler(MethodEscrowWidening, ControlPlaneServer.EscrowWidening)},
		{MethodName: MethodAdvance, Handler: unaryHandler(MethodAdvance, ControlPlaneServer.Advance)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "epistemic/v1/control_plane.proto",
}

// RegisterControlPlaneServer registers srv on s.
func RegisterControlPlaneServer(s grpc.ServiceRegistrar, srv ControlPlaneServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// #endregion service-desc

// #region struct-codec
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// #endregion struct-codec
