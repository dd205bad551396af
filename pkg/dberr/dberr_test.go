package dberr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

func TestMap(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperr.Kind
		msg  string
	}{
		{"no rows", pgx.ErrNoRows, apperr.KindNotFound, "not found"},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), apperr.KindNotFound, ""},
		{"foreign key", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "order_items_order_id_fkey"}, apperr.KindConstraint, "foreign key violation on order_items_order_id_fkey"},
		{"not null", &pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "customer_id"}, apperr.KindConstraint, "missing required value for customer_id"},
		{"unique", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "orders_code_key"}, apperr.KindConstraint, "duplicate value on orders_code_key"},
		{"check", &pgconn.PgError{Code: pgerrcode.CheckViolation}, apperr.KindConstraint, "check violation"},
		{"serialization", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, apperr.KindInfrastructure, ""},
		{"plain", errors.New("connection refused"), apperr.KindInfrastructure, "connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Map("orders.Create", tt.err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), "orders.Create")
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestMapPassesThrough(t *testing.T) {
	assert.NoError(t, Map("op", nil))
	assert.Equal(t, context.Canceled, Map("op", context.Canceled))

	typed := apperr.Conflict("order changed")
	assert.Same(t, typed, Map("op", typed))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("x: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: pgerrcode.CheckViolation}))
	assert.False(t, IsUniqueViolation(errors.New("x")))
}
