package grpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
)

// EscrowInternalService is the mesh-internal read surface: payout and
// reporting services fetch balances here instead of going through the
// public HTTP API.
type EscrowInternalService interface {
	GetWalletBalance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEscrowStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type EscrowInternalServer struct {
	service *application.Service
}

func NewEscrowInternalServer(service *application.Service) *EscrowInternalServer {
	return &EscrowInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc EscrowInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "viralforge.escrow.v1.EscrowInternalService",
		HandlerType: (*EscrowInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetWalletBalance",
				Handler:    getWalletBalanceHandler(svc),
			},
			{
				MethodName: "GetEscrowStatus",
				Handler:    getEscrowStatusHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "mesh/contracts/proto/escrow/v1/escrow_internal.proto",
	}, svc)
}

func (s *EscrowInternalServer) GetWalletBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := uuidField(req, "user_id")
	if err != nil {
		return nil, err
	}

	balance, err := s.service.InternalWalletBalance(ctx, userID)
	if err != nil {
		return nil, mapInternalError(err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"user_id":           balance.UserID.String(),
		"available_balance": balance.Available.Major(),
		"pending_balance":   balance.Pending.Major(),
		"total_balance":     balance.Total().Major(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *EscrowInternalServer) GetEscrowStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	contractID, err := uuidField(req, "contract_id")
	if err != nil {
		return nil, err
	}

	escrow, err := s.service.InternalEscrowStatus(ctx, contractID)
	if err != nil {
		return nil, mapInternalError(err)
	}

	fields := map[string]any{
		"contract_id": contractID.String(),
		"present":     escrow.Present,
	}
	if escrow.Present {
		fields["held_amount"] = escrow.Held.Major()
		fields["initial_amount"] = escrow.Initial.Major()
		fields["status"] = escrow.Status
	}
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func uuidField(req *structpb.Struct, name string) (uuid.UUID, error) {
	val := req.GetFields()[name]
	if val == nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "missing %s", name)
	}
	id, err := uuid.Parse(val.GetStringValue())
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s", name)
	}
	return id, nil
}

func mapInternalError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, "invalid input")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func getWalletBalanceHandler(svc EscrowInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetWalletBalance(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/viralforge.escrow.v1.EscrowInternalService/GetWalletBalance",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetWalletBalance(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func getEscrowStatusHandler(svc EscrowInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetEscrowStatus(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/viralforge.escrow.v1.EscrowInternalService/GetEscrowStatus",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetEscrowStatus(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
