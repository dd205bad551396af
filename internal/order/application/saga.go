package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	orchestrator "github.com/dmehra2102/tenant-commerce/internal/orchestrator/application"
	"github.com/dmehra2102/tenant-commerce/internal/order/domain"
	paymentdomain "github.com/dmehra2102/tenant-commerce/internal/payment/domain"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

const sagaName = "create_order"

// Saga creates an order as one unit across the catalog, inventory,
// payment and the tenant store. No order row is written unless stock is
// reserved and payment captured; if persisting fails afterwards the payment
// is refunded and the transfers released, newest first.
type Saga struct {
	log         *slog.Logger
	repos       Repositories
	catalog     ProductCatalog
	inventory   InventoryReservation
	payment     PaymentCapture
	coordinator *orchestrator.Coordinator

	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

type SagaOption func(*Saga)

// WithCollaboratorTimeout bounds every single catalog, inventory and payment call.
func WithCollaboratorTimeout(d time.Duration) SagaOption {
	return func(s *Saga) { s.timeout = d }
}

func WithCoordinator(c *orchestrator.Coordinator) SagaOption {
	return func(s *Saga) { s.coordinator = c }
}

func NewSaga(log *slog.Logger, repos Repositories, catalog ProductCatalog, inventory InventoryReservation, payment PaymentCapture, opts ...SagaOption) *Saga {
	s := &Saga{
		log:       log,
		repos:     repos,
		catalog:   catalog,
		inventory: inventory,
		payment:   payment,
		timeout:   5 * time.Second,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.coordinator == nil {
		s.coordinator = orchestrator.NewCoordinator(log)
	}
	return s
}

// Create runs the order creation saga for tenantID.
func (s *Saga) Create(ctx context.Context, tenantID string, d domain.Draft, userID string) (domain.Order, error) {
	o, err := domain.NewOrder(s.newID(), d, userID, s.now())
	if err != nil {
		return domain.Order{}, err
	}
	if err := checkPayable(o); err != nil {
		return domain.Order{}, err
	}
	repo, err := s.repos.ForTenant(ctx, tenantID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.checkProducts(ctx, tenantID, d, &o); err != nil {
		return domain.Order{}, err
	}

	steps := make([]orchestrator.Step, 0, len(o.Items)+2)
	for i := range o.Items {
		steps = append(steps, s.reserveStep(tenantID, o.Code, o.Items[i]))
	}
	steps = append(steps, s.captureStep(tenantID, &o), s.persistStep(repo, &o, userID))

	saga, err := s.coordinator.Run(ctx, sagaName, o.ID, steps)
	if err != nil {
		s.log.WarnContext(ctx, "order saga aborted", "tenant_id", tenantID, "saga_id", o.ID, "step", saga.FailedStep, "state", saga.State, "err", err)
		return domain.Order{}, err
	}
	s.log.InfoContext(ctx, "order created", "tenant_id", tenantID, "order_id", o.ID, "code", o.Code, "payment_reference", o.PaymentReference)
	return o, nil
}

// checkProducts verifies every distinct product before any side effect and
// copies the catalog names onto the lines.
func (s *Saga) checkProducts(ctx context.Context, tenantID string, d domain.Draft, o *domain.Order) error {
	names := make(map[string]string, len(o.Items))
	for _, id := range d.ProductIDs() {
		var p Product
		err := s.bounded(ctx, func(ctx context.Context) error {
			var err error
			p, err = s.catalog.FindByID(ctx, tenantID, id)
			return err
		})
		switch {
		case apperr.Is(err, apperr.KindNotFound):
			return apperr.Validation("product %s does not exist", id)
		case err != nil:
			return classify("catalog.FindByID", err)
		case p.IsDeleted:
			return apperr.Validation("product %s has been deleted", id)
		case !p.IsActive:
			return apperr.Validation("product %s is not active", id)
		}
		names[id] = p.Name
	}
	for i := range o.Items {
		o.Items[i].ProductName = names[o.Items[i].ProductID]
	}
	return nil
}

// checkPayable rejects a charge the payment step could never capture, so
// no stock is held for it.
func checkPayable(o domain.Order) error {
	if !o.TotalPaid.IsPositive() {
		return nil
	}
	if strings.TrimSpace(o.PaymentMethod) == "" {
		return apperr.Validation("payment method is required for a total of %s", o.TotalPaid)
	}
	_, err := paymentdomain.MinorUnits(o.TotalPaid)
	return err
}

func (s *Saga) reserveStep(tenantID, reference string, it domain.Item) orchestrator.Step {
	var transfer TransferRecord
	return orchestrator.StepFunc{
		Label: "reserve " + it.ProductID,
		Do: func(ctx context.Context) error {
			err := s.bounded(ctx, func(ctx context.Context) error {
				var err error
				transfer, err = s.inventory.CreateTransfer(ctx, tenantID, TransferRequest{
					ProductID: it.ProductID,
					Quantity:  it.Quantity,
					Reference: reference,
				})
				return classify("inventory.CreateTransfer", err)
			})
			if apperr.Is(err, apperr.KindInfrastructure) {
				// The transfer may exist without us holding its id.
				s.releaseReference(ctx, tenantID, it.ProductID, reference)
			}
			return err
		},
		Undo: func(ctx context.Context) error {
			return s.bounded(ctx, func(ctx context.Context) error {
				return s.inventory.ReleaseTransfer(ctx, tenantID, transfer.ID)
			})
		},
	}
}

func (s *Saga) releaseReference(ctx context.Context, tenantID, productID, reference string) {
	err := s.bounded(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return s.inventory.ReleaseByReference(ctx, tenantID, productID, reference)
	})
	if err != nil {
		s.log.ErrorContext(ctx, "release by reference failed", "tenant_id", tenantID, "product_id", productID, "reference", reference, "err", err)
	}
}

func (s *Saga) captureStep(tenantID string, o *domain.Order) orchestrator.Step {
	var receipt PaymentReceipt
	return orchestrator.StepFunc{
		Label: "capture payment",
		Do: func(ctx context.Context) error {
			if !o.TotalPaid.IsPositive() {
				return nil
			}
			return s.bounded(ctx, func(ctx context.Context) error {
				var err error
				receipt, err = s.payment.Process(ctx, tenantID, o.TotalPaid, o.PaymentMethod)
				if err != nil {
					return classify("payment.Process", err)
				}
				o.PaymentReference = receipt.ID
				return nil
			})
		},
		Undo: func(ctx context.Context) error {
			if receipt.ID == "" {
				return nil
			}
			return s.bounded(ctx, func(ctx context.Context) error {
				return s.payment.Refund(ctx, tenantID, receipt.ID)
			})
		},
	}
}

func (s *Saga) persistStep(repo Repository, o *domain.Order, userID string) orchestrator.Step {
	return orchestrator.StepFunc{
		Label: "persist order",
		Do: func(ctx context.Context) error {
			msg, err := auditMessage(ctx, domain.AuditCreated, *o, userID, o.CreatedAt)
			if err != nil {
				return err
			}
			return repo.Create(ctx, *o, msg)
		},
	}
}

func (s *Saga) bounded(ctx context.Context, call func(ctx context.Context) error) error {
	if s.timeout <= 0 {
		return call(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return call(ctx)
}

// classify keeps the kind a collaborator reported. Anything untyped,
// timeouts included, is an infrastructure failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Infrastructure(op, err)
}
