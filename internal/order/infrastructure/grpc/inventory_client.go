package grpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	inventorygrpc "github.com/dmehra2102/tenant-commerce/internal/inventory/infrastructure/grpc"
	"github.com/dmehra2102/tenant-commerce/internal/order/application"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
	"github.com/dmehra2102/tenant-commerce/pkg/tracing"
)

// InventoryClient reserves stock through the inventory gRPC service.
type InventoryClient struct {
	log  *slog.Logger
	conn grpc.ClientConnInterface
}

var _ application.InventoryReservation = (*InventoryClient)(nil)

// Dial opens a client connection to addr with trace propagation.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(tracing.UnaryClientInterceptor()),
	}, opts...)
	return grpc.NewClient(addr, opts...)
}

func NewInventoryClient(log *slog.Logger, conn grpc.ClientConnInterface) *InventoryClient {
	return &InventoryClient{log: log, conn: conn}
}

func (c *InventoryClient) CreateTransfer(ctx context.Context, tenantID string, req application.TransferRequest) (application.TransferRecord, error) {
	in, err := structpb.NewStruct(map[string]any{
		inventorygrpc.FieldTenantID:  tenantID,
		inventorygrpc.FieldProductID: req.ProductID,
		inventorygrpc.FieldQuantity:  float64(req.Quantity),
		inventorygrpc.FieldReference: req.Reference,
	})
	if err != nil {
		return application.TransferRecord{}, apperr.Infrastructure("inventory.CreateTransfer", err)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, inventorygrpc.CreateTransferMethod, in, out); err != nil {
		return application.TransferRecord{}, fromStatus("inventory.CreateTransfer", err)
	}
	f := out.GetFields()
	return application.TransferRecord{
		ID:        f[inventorygrpc.FieldTransferID].GetStringValue(),
		ProductID: f[inventorygrpc.FieldProductID].GetStringValue(),
		Quantity:  int(f[inventorygrpc.FieldQuantity].GetNumberValue()),
	}, nil
}

func (c *InventoryClient) ReleaseTransfer(ctx context.Context, tenantID, transferID string) error {
	in, err := structpb.NewStruct(map[string]any{
		inventorygrpc.FieldTenantID:   tenantID,
		inventorygrpc.FieldTransferID: transferID,
	})
	if err != nil {
		return apperr.Infrastructure("inventory.ReleaseTransfer", err)
	}
	if err := c.conn.Invoke(ctx, inventorygrpc.ReleaseTransferMethod, in, new(structpb.Struct)); err != nil {
		return fromStatus("inventory.ReleaseTransfer", err)
	}
	return nil
}

func (c *InventoryClient) ReleaseByReference(ctx context.Context, tenantID, productID, reference string) error {
	in, err := structpb.NewStruct(map[string]any{
		inventorygrpc.FieldTenantID:  tenantID,
		inventorygrpc.FieldProductID: productID,
		inventorygrpc.FieldReference: reference,
	})
	if err != nil {
		return apperr.Infrastructure("inventory.ReleaseByReference", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, inventorygrpc.ReleaseByReferenceMethod, in, out); err != nil {
		return fromStatus("inventory.ReleaseByReference", err)
	}
	if n := out.GetFields()[inventorygrpc.FieldCount].GetNumberValue(); n > 0 {
		c.log.InfoContext(ctx, "released transfers by reference", "tenant_id", tenantID, "product_id", productID, "reference", reference, "count", int(n))
	}
	return nil
}

// fromStatus maps a gRPC status to an error kind. A refused reservation is
// the caller's problem; everything else means inventory is unhealthy.
func fromStatus(op string, err error) error {
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.FailedPrecondition:
		return &apperr.Error{Kind: apperr.KindReservationFailed, Op: op, Msg: st.Message(), Err: err}
	case codes.InvalidArgument:
		return &apperr.Error{Kind: apperr.KindValidation, Op: op, Msg: st.Message(), Err: err}
	case codes.NotFound:
		return &apperr.Error{Kind: apperr.KindNotFound, Op: op, Msg: st.Message(), Err: err}
	case codes.DeadlineExceeded:
		return apperr.Infrastructure(op, context.DeadlineExceeded)
	default:
		return apperr.Infrastructure(op, err)
	}
}
