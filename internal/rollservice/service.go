// Package rollservice exposes dice rolling as the gRPC service
// dice.v1.DiceService. Requests and responses are protobuf well-known
// wrapper types, so no generated code is required.
package rollservice

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/cory-johannsen/diceroll/internal/dice"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dice.v1.DiceService"

const (
	rollMethod     = "/" + ServiceName + "/Roll"
	validateMethod = "/" + ServiceName + "/Validate"
)

// ErrorDomain is the ErrorInfo domain attached to rejected expressions.
const ErrorDomain = "dice.v1"

// ErrorInfo reasons.
const (
	ReasonSyntax     = "SYNTAX_ERROR"
	ReasonValidation = "VALIDATION_ERROR"
	ReasonOverflow   = "OVERFLOW"
	ReasonTooMany    = "TOO_MANY_DICE"
)

// DiceServiceServer is the server API for dice.v1.DiceService.
type DiceServiceServer interface {
	// Roll evaluates the expression in the request and returns the total.
	Roll(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error)
	// Validate parses and validates the expression without rolling it.
	Validate(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

// ServiceDesc describes dice.v1.DiceService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DiceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Roll", Handler: rollHandler},
		{MethodName: "Validate", Handler: validateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dice/v1/dice.proto",
}

// Register registers srv on s.
func Register(s grpc.ServiceRegistrar, srv DiceServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func rollHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DiceServiceServer).Roll(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: rollMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DiceServiceServer).Roll(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func validateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DiceServiceServer).Validate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: validateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DiceServiceServer).Validate(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Service implements DiceServiceServer on top of a shared dice.Roller.
type Service struct {
	roller *dice.Roller
	logger *zap.Logger
}

// NewService creates a Service.
//
// Precondition: roller and logger must be non-nil.
func NewService(roller *dice.Roller, logger *zap.Logger) *Service {
	return &Service{roller: roller, logger: logger}
}

// Roll implements DiceServiceServer.
func (s *Service) Roll(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	start := time.Now()
	result, err := s.roller.Roll(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Debug("grpc roll",
		zap.String("expression", in.GetValue()),
		zap.Uint64("total", result.Total()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return wrapperspb.UInt64(result.Total()), nil
}

// Validate implements DiceServiceServer.
func (s *Service) Validate(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.roller.Validate(in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// toStatus maps a roll failure to InvalidArgument carrying an ErrorInfo
// detail. Syntax errors include the byte offset in metadata["offset"].
func toStatus(err error) error {
	info := &errdetails.ErrorInfo{Domain: ErrorDomain, Metadata: map[string]string{}}

	var se *dice.SyntaxError
	var ve *dice.ValidationError
	switch {
	case errors.As(err, &se):
		info.Reason = ReasonSyntax
		info.Metadata["offset"] = strconv.Itoa(se.Offset)
	case errors.As(err, &ve):
		info.Reason = ReasonValidation
		info.Metadata["term"] = strconv.Itoa(ve.Term)
	case errors.Is(err, dice.ErrOverflow):
		info.Reason = ReasonOverflow
	case errors.Is(err, dice.ErrTooManyDice):
		info.Reason = ReasonTooMany
	default:
		return status.Error(codes.Internal, err.Error())
	}

	st := status.New(codes.InvalidArgument, err.Error())
	withDetails, derr := st.WithDetails(info)
	if derr != nil {
		return st.Err()
	}
	return withDetails.Err()
}

// NewServer builds a grpc.Server with svc and the standard health service
// registered, both reporting SERVING.
//
// Postcondition: Returns the server and its health server, so callers can
// flip the status to NOT_SERVING during shutdown.
func NewServer(svc DiceServiceServer, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(opts...)
	healthServer := health.NewServer()
	Register(grpcServer, svc)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return grpcServer, healthServer
}
