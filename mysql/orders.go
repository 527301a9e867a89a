package mysql

import (
	"context"
	"fmt"

	"github.com/velmie/notifybox"
)

// OrderFlaggerConfig names the orders table and its customer-notified flag.
type OrderFlaggerConfig struct {
	Table      string
	IDColumn   string
	FlagColumn string
}

func (c OrderFlaggerConfig) withDefaults() OrderFlaggerConfig {
	if c.Table == "" {
		c.Table = "orders"
	}
	if c.IDColumn == "" {
		c.IDColumn = "id"
	}
	if c.FlagColumn == "" {
		c.FlagColumn = "customer_notified"
	}

	return c
}

// OrderFlagger implements notifybox.OrderHook by setting the order's notified flag.
// The update only matches unflagged orders, so repeated calls are no-ops.
type OrderFlagger struct {
	exec  Executor
	query string
}

var _ notifybox.OrderHook = (*OrderFlagger)(nil)

// NewOrderFlagger validates table and column names and prepares the update.
func NewOrderFlagger(exec Executor, cfg OrderFlaggerConfig) (*OrderFlagger, error) {
	if exec == nil {
		return nil, ErrExecutorRequired
	}
	cfg = cfg.withDefaults()

	table, err := sanitizeTableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	idColumn, err := sanitizeColumnName(cfg.IDColumn)
	if err != nil {
		return nil, err
	}
	flagColumn, err := sanitizeColumnName(cfg.FlagColumn)
	if err != nil {
		return nil, err
	}

	return &OrderFlagger{
		exec: exec,
		// #nosec G201 -- names are sanitized above.
		query: fmt.Sprintf("UPDATE %s SET %s = 1 WHERE %s = ? AND %s = 0", table, flagColumn, idColumn, flagColumn),
	}, nil
}

// MarkOrderNotified implements notifybox.OrderHook.
func (f *OrderFlagger) MarkOrderNotified(ctx context.Context, orderID string) error {
	if _, err := f.exec.ExecContext(ctx, f.query, orderID); err != nil {
		return fmt.Errorf("notifybox mysql: flag order failed: %w", err)
	}

	return nil
}
