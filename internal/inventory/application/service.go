package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/dmehra2102/tenant-commerce/internal/inventory/domain"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

type Service struct {
	log    *slog.Logger
	ledger *domain.Ledger
}

func NewService(log *slog.Logger, ledger *domain.Ledger) *Service {
	return &Service{log: log, ledger: ledger}
}

// LoadSeed reads stock levels shaped as {"tenant": {"product": qty}}.
func (s *Service) LoadSeed(r io.Reader) error {
	var seed map[string]map[string]int
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return err
	}
	for tenant, products := range seed {
		for product, qty := range products {
			s.ledger.Seed(tenant, product, qty)
		}
		s.log.Info("inventory seeded", "tenant_id", tenant, "products", len(products))
	}
	return nil
}

func (s *Service) CreateTransfer(ctx context.Context, tenantID, productID string, qty int, reference string) (domain.Transfer, error) {
	switch {
	case strings.TrimSpace(tenantID) == "":
		return domain.Transfer{}, apperr.Validation("tenant id is required")
	case strings.TrimSpace(productID) == "":
		return domain.Transfer{}, apperr.Validation("product id is required")
	case qty <= 0:
		return domain.Transfer{}, apperr.Validation("quantity must be greater than zero")
	}

	t, err := s.ledger.Reserve(tenantID, productID, qty, reference)
	switch {
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrUnknownProduct):
		s.log.InfoContext(ctx, "transfer refused", "tenant_id", tenantID, "product_id", productID, "quantity", qty, "err", err)
		return domain.Transfer{}, &apperr.Error{Kind: apperr.KindReservationFailed, Msg: err.Error(), Err: err}
	case err != nil:
		return domain.Transfer{}, apperr.Infrastructure("inventory.CreateTransfer", err)
	}
	s.log.InfoContext(ctx, "transfer created", "tenant_id", tenantID, "transfer_id", t.ID, "product_id", productID, "quantity", qty, "reference", reference)
	return t, nil
}

// ReleaseByReference undoes a CreateTransfer whose outcome the caller never
// learned. Releasing a reference with no open transfers succeeds.
func (s *Service) ReleaseByReference(ctx context.Context, tenantID, productID, reference string) ([]domain.Transfer, error) {
	switch {
	case strings.TrimSpace(tenantID) == "":
		return nil, apperr.Validation("tenant id is required")
	case strings.TrimSpace(productID) == "":
		return nil, apperr.Validation("product id is required")
	case strings.TrimSpace(reference) == "":
		return nil, apperr.Validation("reference is required")
	}
	released := s.ledger.ReleaseReference(tenantID, productID, reference)
	for _, t := range released {
		s.log.InfoContext(ctx, "transfer released by reference", "tenant_id", tenantID, "transfer_id", t.ID, "product_id", productID, "quantity", t.Quantity, "reference", reference)
	}
	return released, nil
}

func (s *Service) ReleaseTransfer(ctx context.Context, tenantID, transferID string) (domain.Transfer, error) {
	t, err := s.ledger.Release(tenantID, transferID)
	if errors.Is(err, domain.ErrTransferNotFound) {
		return domain.Transfer{}, apperr.NotFound("transfer %s not found", transferID)
	}
	if err != nil {
		return domain.Transfer{}, apperr.Infrastructure("inventory.ReleaseTransfer", err)
	}
	s.log.InfoContext(ctx, "transfer released", "tenant_id", tenantID, "transfer_id", t.ID, "product_id", t.ProductID, "quantity", t.Quantity)
	return t, nil
}
