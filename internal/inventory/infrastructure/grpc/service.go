package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Wire contract of inventory.v1.Inventory. Requests and responses are
// structpb.Struct values with the fields named below.
const (
	ServiceName              = "inventory.v1.Inventory"
	CreateTransferMethod     = "/" + ServiceName + "/CreateTransfer"
	ReleaseTransferMethod    = "/" + ServiceName + "/ReleaseTransfer"
	ReleaseByReferenceMethod = "/" + ServiceName + "/ReleaseByReference"

	FieldTenantID   = "tenant_id"
	FieldProductID  = "product_id"
	FieldQuantity   = "quantity"
	FieldReference  = "reference"
	FieldTransferID = "transfer_id"
	FieldReleased   = "released"
	FieldCount      = "count"
)

type InventoryServer interface {
	CreateTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ReleaseTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ReleaseByReference(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateTransfer", Handler: unaryHandler(CreateTransferMethod, InventoryServer.CreateTransfer)},
		{MethodName: "ReleaseTransfer", Handler: unaryHandler(ReleaseTransferMethod, InventoryServer.ReleaseTransfer)},
		{MethodName: "ReleaseByReference", Handler: unaryHandler(ReleaseByReferenceMethod, InventoryServer.ReleaseByReference)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inventory/v1/inventory.proto",
}

func unaryHandler(fullMethod string, call func(InventoryServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InventoryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(InventoryServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
