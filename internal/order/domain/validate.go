package domain

import (
	"strings"

	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

type rule func(Draft) error

// draftRules run in order; the first failure wins.
var draftRules = []rule{
	requireItems,
	requirePositiveLines,
	requireProductIDs,
	requireCustomer,
	requireNonNegativeAdjustments,
}

// ValidateDraft checks d without consulting any collaborator.
func ValidateDraft(d Draft) error {
	for _, r := range draftRules {
		if err := r(d); err != nil {
			return err
		}
	}
	return nil
}

func requireItems(d Draft) error {
	if len(d.Items) == 0 {
		return apperr.Validation("order must contain at least one item")
	}
	return nil
}

func requirePositiveLines(d Draft) error {
	for i, it := range d.Items {
		if it.Quantity <= 0 {
			return apperr.Validation("item %d: quantity must be greater than zero, got %d", i+1, it.Quantity)
		}
		if !it.UnitPrice.IsPositive() {
			return apperr.Validation("item %d: unit price must be greater than zero, got %s", i+1, it.UnitPrice)
		}
	}
	return nil
}

func requireProductIDs(d Draft) error {
	for i, it := range d.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return apperr.Validation("item %d: product id is required", i+1)
		}
	}
	return nil
}

func requireCustomer(d Draft) error {
	if strings.TrimSpace(d.CustomerID) == "" {
		return apperr.Validation("customer id is required")
	}
	return nil
}

func requireNonNegativeAdjustments(d Draft) error {
	if d.DiscountAmount.IsNegative() {
		return apperr.Validation("discount amount cannot be negative")
	}
	if d.ShippingFee.IsNegative() {
		return apperr.Validation("shipping fee cannot be negative")
	}
	return nil
}

// ProductIDs returns the distinct product ids of d in first-seen order.
func (d Draft) ProductIDs() []string {
	seen := make(map[string]struct{}, len(d.Items))
	ids := make([]string, 0, len(d.Items))
	for _, it := range d.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}
