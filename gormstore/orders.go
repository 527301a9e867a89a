package gormstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/velmie/notifybox"
)

// OrderFlagger implements notifybox.OrderHook by setting a boolean flag on the orders table.
type OrderFlagger struct {
	db         *gorm.DB
	table      string
	idColumn   string
	flagColumn string
}

var _ notifybox.OrderHook = (*OrderFlagger)(nil)

// OrderFlaggerOption configures an OrderFlagger.
type OrderFlaggerOption func(*OrderFlagger)

// WithOrdersTable overrides the orders table and its key and flag columns.
// Empty values keep the defaults.
func WithOrdersTable(table, idColumn, flagColumn string) OrderFlaggerOption {
	return func(f *OrderFlagger) {
		if table != "" {
			f.table = table
		}
		if idColumn != "" {
			f.idColumn = idColumn
		}
		if flagColumn != "" {
			f.flagColumn = flagColumn
		}
	}
}

// NewOrderFlagger flags orders.customer_notified keyed by orders.id unless overridden.
func NewOrderFlagger(db *gorm.DB, opts ...OrderFlaggerOption) *OrderFlagger {
	f := &OrderFlagger{db: db, table: "orders", idColumn: "id", flagColumn: "customer_notified"}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// MarkOrderNotified implements notifybox.OrderHook. Already flagged orders are left untouched.
func (f *OrderFlagger) MarkOrderNotified(ctx context.Context, orderID string) error {
	err := f.db.WithContext(ctx).Table(f.table).
		Where(clause.Eq{Column: clause.Column{Name: f.idColumn}, Value: orderID}).
		Where(clause.Eq{Column: clause.Column{Name: f.flagColumn}, Value: false}).
		Update(f.flagColumn, true).Error
	if err != nil {
		return fmt.Errorf("notifybox gormstore: flag order failed: %w", err)
	}

	return nil
}
