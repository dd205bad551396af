package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func draft(items ...ItemInput) Draft {
	return Draft{CustomerID: "cust-1", Items: items, PaymentMethod: "card"}
}

func line(product string, qty int, price string) ItemInput {
	return ItemInput{ProductID: product, Quantity: qty, UnitPrice: dec(price)}
}

func TestNewOrderSingleItemTotals(t *testing.T) {
	o, err := NewOrder("o-1", draft(line("p-1", 2, "100.0")), "u-1", now)
	require.NoError(t, err)

	assert.True(t, dec("200").Equal(o.TotalAmount), o.TotalAmount.String())
	assert.True(t, dec("200").Equal(o.TotalPaid), o.TotalPaid.String())
	assert.True(t, dec("200").Equal(o.Items[0].TotalPrice))
	assert.Equal(t, StatusPending, o.Status)
	assert.False(t, o.IsDeleted)
	assert.Equal(t, int64(1), o.Version)
	assert.Equal(t, "u-1", o.CreatedBy)
	assert.Regexp(t, `^ORD-[0-9A-Z]{26}$`, o.Code)
}

func TestNewOrderDiscountAndShipping(t *testing.T) {
	d := draft(line("p-1", 3, "100.0"), line("p-2", 2, "75.0"))
	d.DiscountAmount = dec("50.0")
	d.ShippingFee = dec("25.0")
	d.Code = "ORD-CUSTOM"

	o, err := NewOrder("o-2", d, "u-1", now)
	require.NoError(t, err)

	assert.True(t, dec("450").Equal(o.TotalAmount), o.TotalAmount.String())
	assert.True(t, dec("425").Equal(o.TotalPaid), o.TotalPaid.String())
	assert.Equal(t, "ORD-CUSTOM", o.Code)
}

func TestTotalsIgnoreItemOrder(t *testing.T) {
	items := []ItemInput{
		line("p-1", 3, "19.99"),
		line("p-2", 1, "0.01"),
		line("p-3", 7, "4.50"),
		line("p-4", 2, "1000"),
	}
	reversed := make([]ItemInput, len(items))
	for i := range items {
		reversed[len(items)-1-i] = items[i]
	}

	a, err := NewOrder("a", draft(items...), "u", now)
	require.NoError(t, err)
	b, err := NewOrder("b", draft(reversed...), "u", now)
	require.NoError(t, err)

	assert.True(t, a.TotalAmount.Equal(b.TotalAmount))
	assert.True(t, a.TotalPaid.Equal(b.TotalPaid))
	assert.True(t, dec("2091.48").Equal(a.TotalAmount), a.TotalAmount.String())
}

func TestNewOrderIgnoresCallerTotals(t *testing.T) {
	d := draft(line("p-1", 2, "10"))
	o, err := NewOrder("o", d, "u", now)
	require.NoError(t, err)

	o.TotalAmount = dec("1")
	require.NoError(t, o.Update(Patch{}, "u", now))
	assert.True(t, dec("20").Equal(o.TotalAmount))
}

func TestNewOrderValidation(t *testing.T) {
	negative := draft(line("p-1", 1, "10"))
	negative.DiscountAmount = dec("-1")

	tooMuchDiscount := draft(line("p-1", 1, "10"))
	tooMuchDiscount.DiscountAmount = dec("11")

	noCustomer := draft(line("p-1", 1, "10"))
	noCustomer.CustomerID = " "

	tests := []struct {
		name  string
		draft Draft
		msg   string
	}{
		{"no items", draft(), "at least one item"},
		{"zero quantity", draft(line("p-1", 0, "10")), "item 1: quantity"},
		{"negative quantity", draft(line("p-1", 1, "10"), line("p-2", -3, "10")), "item 2: quantity"},
		{"zero price", draft(line("p-1", 1, "0")), "item 1: unit price"},
		{"negative price", draft(line("p-1", 1, "-0.01")), "unit price"},
		{"missing product", draft(line("", 1, "10")), "product id"},
		{"missing customer", noCustomer, "customer id"},
		{"negative discount", negative, "discount amount"},
		{"discount above total", tooMuchDiscount, "exceeds order total"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrder("o", tt.draft, "u", now)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestUpdateRecomputesTotals(t *testing.T) {
	o, err := NewOrder("o", draft(line("p-1", 1, "10")), "u-1", now)
	require.NoError(t, err)

	note := "leave at door"
	shipping := dec("5")
	later := now.Add(time.Minute)
	err = o.Update(Patch{
		Note:        &note,
		ShippingFee: &shipping,
		Items:       []ItemInput{line("p-1", 2, "10"), line("p-9", 1, "2.5")},
	}, "u-2", later)
	require.NoError(t, err)

	assert.Equal(t, "leave at door", o.Note)
	assert.Len(t, o.Items, 2)
	assert.True(t, dec("22.5").Equal(o.TotalAmount))
	assert.True(t, dec("27.5").Equal(o.TotalPaid))
	assert.Equal(t, "u-2", o.UpdatedBy)
	assert.Equal(t, later, o.UpdatedAt)
}

func TestUpdateRejectsInvalidPatchWithoutChanges(t *testing.T) {
	o, err := NewOrder("o", draft(line("p-1", 1, "10")), "u", now)
	require.NoError(t, err)
	before := o

	err = o.Update(Patch{Items: []ItemInput{}}, "u", now)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	blank := ""
	err = o.Update(Patch{Code: &blank}, "u", now)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, before, o)
}

func TestUpdateOnlyWhilePending(t *testing.T) {
	note := "gift wrap"
	for _, s := range Statuses() {
		if s == StatusPending {
			continue
		}
		t.Run(string(s), func(t *testing.T) {
			o, err := NewOrder("o", draft(line("p-1", 1, "10")), "u", now)
			require.NoError(t, err)
			o.Status = s

			err = o.Update(Patch{Note: &note}, "u", now)
			require.Error(t, err)
			assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
			assert.Empty(t, o.Note)
		})
	}
}

func TestDeleteAndRestoreKeepStatus(t *testing.T) {
	o, err := NewOrder("o", draft(line("p-1", 1, "10")), "u", now)
	require.NoError(t, err)
	require.NoError(t, o.Apply(ActionConfirm, "u", now))

	err = o.Restore("u", now)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	require.NoError(t, o.Delete("u", now))
	assert.True(t, o.IsDeleted)
	assert.Equal(t, StatusConfirmed, o.Status)

	require.NoError(t, o.Restore("u", now))
	assert.False(t, o.IsDeleted)
	assert.Equal(t, StatusConfirmed, o.Status)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" shipped ")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, s)

	_, err = ParseStatus("lost")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDraftProductIDs(t *testing.T) {
	d := draft(line("b", 1, "1"), line("a", 1, "1"), line("b", 2, "1"))
	assert.Equal(t, []string{"b", "a"}, d.ProductIDs())
}
