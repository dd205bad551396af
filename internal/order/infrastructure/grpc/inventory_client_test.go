package grpc

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	inventoryapp "github.com/dmehra2102/tenant-commerce/internal/inventory/application"
	inventorydomain "github.com/dmehra2102/tenant-commerce/internal/inventory/domain"
	inventorygrpc "github.com/dmehra2102/tenant-commerce/internal/inventory/infrastructure/grpc"
	"github.com/dmehra2102/tenant-commerce/internal/order/application"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
	"github.com/dmehra2102/tenant-commerce/pkg/logging"
)

func startInventory(t *testing.T) (*InventoryClient, *inventorydomain.Ledger) {
	t.Helper()
	log := logging.Discard()
	ledger := inventorydomain.NewLedger(uuid.NewString, time.Now)
	svc := inventoryapp.NewService(log, ledger)
	require.NoError(t, svc.LoadSeed(strings.NewReader(`{"acme": {"p-1": 3}}`)))

	lis := bufconn.Listen(1 << 20)
	gs := inventorygrpc.NewGRPCServer(log, inventorygrpc.NewServer(log, svc))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewInventoryClient(log, conn), ledger
}

func TestCreateAndReleaseTransfer(t *testing.T) {
	client, ledger := startInventory(t)
	ctx := context.Background()

	tr, err := client.CreateTransfer(ctx, "acme", application.TransferRequest{ProductID: "p-1", Quantity: 2, Reference: "ORD-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, "p-1", tr.ProductID)
	assert.Equal(t, 2, tr.Quantity)

	qty, _ := ledger.Available("acme", "p-1")
	assert.Equal(t, 1, qty)

	require.NoError(t, client.ReleaseTransfer(ctx, "acme", tr.ID))
	qty, _ = ledger.Available("acme", "p-1")
	assert.Equal(t, 3, qty)
}

func TestReleaseByReferenceUndoesUnacknowledgedTransfer(t *testing.T) {
	client, ledger := startInventory(t)
	ctx := context.Background()

	// The reservation lands but its reply never reaches the caller.
	_, err := ledger.Reserve("acme", "p-1", 2, "ORD-7")
	require.NoError(t, err)

	require.NoError(t, client.ReleaseByReference(ctx, "acme", "p-1", "ORD-7"))
	qty, _ := ledger.Available("acme", "p-1")
	assert.Equal(t, 3, qty)

	require.NoError(t, client.ReleaseByReference(ctx, "acme", "p-1", "ORD-7"))
	qty, _ = ledger.Available("acme", "p-1")
	assert.Equal(t, 3, qty)

	err = client.ReleaseByReference(ctx, "acme", "p-1", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestTransferErrorKinds(t *testing.T) {
	client, _ := startInventory(t)
	ctx := context.Background()

	_, err := client.CreateTransfer(ctx, "acme", application.TransferRequest{ProductID: "p-1", Quantity: 4})
	assert.Equal(t, apperr.KindReservationFailed, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "insufficient stock")

	_, err = client.CreateTransfer(ctx, "acme", application.TransferRequest{ProductID: "p-1", Quantity: 0})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = client.ReleaseTransfer(ctx, "acme", "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUnreachableInventoryIsInfrastructure(t *testing.T) {
	lis := bufconn.Listen(1 << 10)
	require.NoError(t, lis.Close())

	conn, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = NewInventoryClient(logging.Discard(), conn).CreateTransfer(ctx, "acme", application.TransferRequest{ProductID: "p-1", Quantity: 1})
	assert.Equal(t, apperr.KindInfrastructure, apperr.KindOf(err))
}
