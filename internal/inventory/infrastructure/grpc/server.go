package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmehra2102/tenant-commerce/internal/inventory/application"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
	"github.com/dmehra2102/tenant-commerce/pkg/tracing"
)

type Server struct {
	log *slog.Logger
	svc *application.Service
}

var _ InventoryServer = (*Server)(nil)

func NewServer(log *slog.Logger, svc *application.Service) *Server {
	return &Server{log: log, svc: svc}
}

func (s *Server) CreateTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	t, err := s.svc.CreateTransfer(ctx,
		f[FieldTenantID].GetStringValue(),
		f[FieldProductID].GetStringValue(),
		int(f[FieldQuantity].GetNumberValue()),
		f[FieldReference].GetStringValue(),
	)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		FieldTransferID: t.ID,
		FieldProductID:  t.ProductID,
		FieldQuantity:   float64(t.Quantity),
		FieldReference:  t.Reference,
	})
}

func (s *Server) ReleaseTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	t, err := s.svc.ReleaseTransfer(ctx, f[FieldTenantID].GetStringValue(), f[FieldTransferID].GetStringValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		FieldTransferID: t.ID,
		FieldReleased:   t.Released(),
	})
}

func (s *Server) ReleaseByReference(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	released, err := s.svc.ReleaseByReference(ctx,
		f[FieldTenantID].GetStringValue(),
		f[FieldProductID].GetStringValue(),
		f[FieldReference].GetStringValue(),
	)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		FieldReference: f[FieldReference].GetStringValue(),
		FieldCount:     float64(len(released)),
	})
}

func toStatus(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case apperr.KindReservationFailed:
		return status.Error(codes.FailedPrecondition, err.Error())
	case apperr.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// LoggingInterceptor logs every call with its outcome and continues the
// caller's trace.
func LoggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = tracing.ExtractGRPC(ctx)
		start := time.Now()
		resp, err := handler(ctx, req)
		log.InfoContext(ctx, "grpc call", "method", info.FullMethod, "code", status.Code(err).String(), "took", time.Since(start))
		return resp, err
	}
}

func NewGRPCServer(log *slog.Logger, srv InventoryServer) *grpc.Server {
	gs := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(log)))
	RegisterInventoryServer(gs, srv)
	return gs
}

func Run(addr string, gs *grpc.Server) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return gs.Serve(lis)
}
