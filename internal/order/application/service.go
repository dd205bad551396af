package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/tenant-commerce/internal/order/domain"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service is the direct order path: no reservation or payment is coordinated.
type Service struct {
	log   *slog.Logger
	repos Repositories
	now   func() time.Time
	newID func() string
}

func NewService(log *slog.Logger, repos Repositories) *Service {
	return &Service{
		log:   log,
		repos: repos,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

func (s *Service) CreateOrder(ctx context.Context, tenantID string, d domain.Draft, userID string) (domain.Order, error) {
	o, err := domain.NewOrder(s.newID(), d, userID, s.now())
	if err != nil {
		return domain.Order{}, err
	}
	repo, err := s.repos.ForTenant(ctx, tenantID)
	if err != nil {
		return domain.Order{}, err
	}
	msg, err := auditMessage(ctx, domain.AuditCreated, o, userID, o.CreatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if err := repo.Create(ctx, o, msg); err != nil {
		return domain.Order{}, err
	}
	s.log.InfoContext(ctx, "order created", "tenant_id", tenantID, "order_id", o.ID, "code", o.Code)
	return o, nil
}

// FindOne returns a non-deleted order.
func (s *Service) FindOne(ctx context.Context, tenantID, id string) (domain.Order, error) {
	repo, err := s.repos.ForTenant(ctx, tenantID)
	if err != nil {
		return domain.Order{}, err
	}
	return repo.FindByID(ctx, id, false)
}

func (s *Service) List(ctx context.Context, tenantID string, f ListFilter) ([]domain.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("unknown order status %q", f.Status)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, apperr.Validation("limit and offset must not be negative")
	}
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	}
	f.Limit = min(f.Limit, maxListLimit)

	repo, err := s.repos.ForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return repo.List(ctx, f)
}

func (s *Service) Update(ctx context.Context, tenantID, id string, p domain.Patch, userID string) (domain.Order, error) {
	return s.mutate(ctx, tenantID, id, false, domain.AuditUpdated, userID, func(o *domain.Order, now time.Time) error {
		return o.Update(p, userID, now)
	})
}

func (s *Service) Confirm(ctx context.Context, tenantID, id, userID string) (domain.Order, error) {
	return s.transition(ctx, tenantID, id, domain.ActionConfirm, userID)
}

func (s *Service) Ship(ctx context.Context, tenantID, id, userID string) (domain.Order, error) {
	return s.transition(ctx, tenantID, id, domain.ActionShip, userID)
}

func (s *Service) Complete(ctx context.Context, tenantID, id, userID string) (domain.Order, error) {
	return s.transition(ctx, tenantID, id, domain.ActionComplete, userID)
}

func (s *Service) Cancel(ctx context.Context, tenantID, id, userID string) (domain.Order, error) {
	return s.transition(ctx, tenantID, id, domain.ActionCancel, userID)
}

// Delete soft-deletes the order. Its status is kept.
func (s *Service) Delete(ctx context.Context, tenantID, id, userID string) (domain.Order, error) {
	return s.mutate(ctx, tenantID, id, false, domain.AuditDeleted, userID, func(o *domain.Order, now time.Time) error {
		return o.Delete(userID, now)
	})
}

func (s *Service) Restore(ctx context.Context, tenantID, id, userID string) (domain.Order, error) {
	return s.mutate(ctx, tenantID, id, true, domain.AuditRestored, userID, func(o *domain.Order, now time.Time) error {
		return o.Restore(userID, now)
	})
}

func (s *Service) transition(ctx context.Context, tenantID, id string, a domain.Action, userID string) (domain.Order, error) {
	return s.mutate(ctx, tenantID, id, false, a.AuditAction(), userID, func(o *domain.Order, now time.Time) error {
		return o.Apply(a, userID, now)
	})
}

// mutate is the read-check-write cycle shared by every change. The write is
// conditional on the version read, so of two racing changes one gets conflict.
func (s *Service) mutate(ctx context.Context, tenantID, id string, includeDeleted bool, action, userID string, change func(*domain.Order, time.Time) error) (domain.Order, error) {
	repo, err := s.repos.ForTenant(ctx, tenantID)
	if err != nil {
		return domain.Order{}, err
	}
	o, err := repo.FindByID(ctx, id, includeDeleted)
	if err != nil {
		return domain.Order{}, err
	}

	expected := o.Version
	if err := change(&o, s.now()); err != nil {
		return domain.Order{}, err
	}
	o.Version = expected + 1

	msg, err := auditMessage(ctx, action, o, userID, o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if err := repo.Update(ctx, o, expected, msg); err != nil {
		return domain.Order{}, err
	}
	s.log.InfoContext(ctx, "order changed", "tenant_id", tenantID, "order_id", o.ID, "action", action, "status", o.Status, "version", o.Version)
	return o, nil
}
