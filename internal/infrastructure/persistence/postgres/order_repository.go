// Package postgres implements the order repository over pgx. The whole
// aggregate is saved inside one transaction; loading is four queries stitched
// back into the aggregate.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecomkit/orderflow/internal/domain"
	"github.com/ecomkit/orderflow/internal/infrastructure/persistence"
	"github.com/ecomkit/orderflow/internal/ports"
)

const orderColumns = `
	id, token, user_id, user_email, billing_address, shipping_address,
	shipping_price_net::text, shipping_price_gross::text, currency,
	total_net::text, total_gross::text, discount_amount::text, discount_name,
	created, last_status_change
`

type OrderRepository struct {
	pool *pgxpool.Pool
	q    persistence.Executor
	inTx bool
}

var _ ports.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(db *persistence.DB) *OrderRepository {
	return &OrderRepository{pool: db.Pool, q: db.Pool}
}

// WithTx runs fn against a repository bound to a single transaction. Nested
// calls reuse the ambient transaction.
func (r *OrderRepository) WithTx(ctx context.Context, fn func(ports.OrderRepository) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txRepo := &OrderRepository{q: tx, inTx: true}
	if err := fn(txRepo); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if !r.inTx {
		return r.WithTx(ctx, func(tx ports.OrderRepository) error {
			return tx.Create(ctx, order)
		})
	}

	billing, err := marshalAddress(order.BillingAddress)
	if err != nil {
		return err
	}
	var shipping []byte
	if order.ShippingAddress != nil {
		shipping, err = marshalAddress(*order.ShippingAddress)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO orders (
			id, token, user_id, user_email, billing_address, shipping_address,
			shipping_price_net, shipping_price_gross, currency,
			total_net, total_gross, discount_amount, discount_name,
			created, last_status_change
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = r.q.Exec(ctx, query,
		order.ID,
		order.Token,
		order.UserID,
		order.UserEmail,
		billing,
		shipping,
		order.ShippingPrice.Net.Amount.String(),
		order.ShippingPrice.Gross.Amount.String(),
		order.Currency,
		nullableTaxedNet(order.Total),
		nullableTaxedGross(order.Total),
		nullableMoney(order.DiscountAmount),
		order.DiscountName,
		order.Created,
		order.LastStatusChange,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return domain.NewValidationError("order token already exists")
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	for position, group := range order.Groups {
		if err := r.upsertGroup(ctx, order.ID, group, position); err != nil {
			return err
		}
	}
	for position, payment := range order.Payments {
		if err := r.upsertPayment(ctx, payment, position); err != nil {
			return err
		}
	}
	return r.replaceJournal(ctx, order)
}

func (r *OrderRepository) GetByToken(ctx context.Context, token string) (*domain.Order, error) {
	return r.loadOrder(ctx, "token = $1", token)
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.loadOrder(ctx, "id = $1", id)
}

func (r *OrderRepository) GetByRemotePaymentID(ctx context.Context, remoteID string) (*domain.Order, error) {
	where := "id = (SELECT order_id FROM payments WHERE remote_id = $1 ORDER BY position DESC LIMIT 1)"
	return r.loadOrder(ctx, where, remoteID)
}

// Save persists every mutable part of the aggregate. Token, billing address
// and creation time are immutable and never updated.
func (r *OrderRepository) Save(ctx context.Context, order *domain.Order) error {
	if !r.inTx {
		return r.WithTx(ctx, func(tx ports.OrderRepository) error {
			return tx.Save(ctx, order)
		})
	}

	var shipping []byte
	var err error
	if order.ShippingAddress != nil {
		shipping, err = marshalAddress(*order.ShippingAddress)
		if err != nil {
			return err
		}
	}

	query := `
		UPDATE orders
		SET user_email = $1, shipping_address = $2,
			shipping_price_net = $3, shipping_price_gross = $4,
			total_net = $5, total_gross = $6,
			discount_amount = $7, discount_name = $8,
			last_status_change = $9
		WHERE id = $10
	`
	tag, err := r.q.Exec(ctx, query,
		order.UserEmail,
		shipping,
		order.ShippingPrice.Net.Amount.String(),
		order.ShippingPrice.Gross.Amount.String(),
		nullableTaxedNet(order.Total),
		nullableTaxedGross(order.Total),
		nullableMoney(order.DiscountAmount),
		order.DiscountName,
		order.LastStatusChange,
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewOrderNotFoundError(order.ID.String())
	}

	for position, group := range order.Groups {
		if err := r.upsertGroup(ctx, order.ID, group, position); err != nil {
			return err
		}
	}
	for position, payment := range order.Payments {
		if err := r.upsertPayment(ctx, payment, position); err != nil {
			return err
		}
	}
	return r.replaceJournal(ctx, order)
}

// UpdatePayment applies a guarded status update: the row is only touched
// when its persisted status still matches what the caller observed. A lost
// race is reported as STALE_STATE, never applied twice.
func (r *OrderRepository) UpdatePayment(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) error {
	query := `
		UPDATE payments
		SET status = $1, remote_id = $2, captured_amount = $3, modified = $4
		WHERE id = $5 AND status = $6
	`
	tag, err := r.q.Exec(ctx, query,
		string(payment.Status),
		payment.RemoteID,
		payment.CapturedAmount.String(),
		payment.Modified,
		payment.ID,
		string(expected),
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, payment.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check payment existence: %w", err)
	}
	if !exists {
		return domain.NewPaymentNotFoundError(payment.ID.String())
	}
	return domain.NewStaleStateError("payment")
}

func (r *OrderRepository) FindStaleWaitingPayments(ctx context.Context, olderThan time.Duration, limit int) ([]string, error) {
	query := `
		SELECT remote_id FROM payments
		WHERE status = $1 AND remote_id <> '' AND modified < $2
		ORDER BY modified ASC
		LIMIT $3
	`
	rows, err := r.q.Query(ctx, query, string(domain.PaymentWaiting), time.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale payments: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var remoteID string
		err := row.Scan(&remoteID)
		return remoteID, err
	})
}

func (r *OrderRepository) loadOrder(ctx context.Context, where string, arg any) (*domain.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE " + where
	if r.inTx {
		// Serialize concurrent mutations of the same aggregate.
		query += " FOR UPDATE"
	}

	var m orderModel
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&m.ID, &m.Token, &m.UserID, &m.UserEmail, &m.BillingAddress, &m.ShippingAddress,
		&m.ShippingPriceNet, &m.ShippingPriceGross, &m.Currency,
		&m.TotalNet, &m.TotalGross, &m.DiscountAmount, &m.DiscountName,
		&m.Created, &m.LastStatusChange,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewOrderNotFoundError(fmt.Sprintf("%v", arg))
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	currency := m.Currency
	groups, err := r.loadGroups(ctx, m.ID, currency)
	if err != nil {
		return nil, err
	}
	payments, err := r.loadPayments(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	history, notes, err := r.loadJournal(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	return toDomainOrder(m, groups, payments, history, notes)
}

func (r *OrderRepository) loadGroups(ctx context.Context, orderID uuid.UUID, currency string) ([]*domain.DeliveryGroup, error) {
	query := `
		SELECT id, order_id, status, shipping_method_name, tracking_number, last_updated, position
		FROM delivery_groups WHERE order_id = $1 ORDER BY position
	`
	rows, err := r.q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery groups: %w", err)
	}
	models, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (groupModel, error) {
		var m groupModel
		err := row.Scan(&m.ID, &m.OrderID, &m.Status, &m.ShippingMethodName,
			&m.TrackingNumber, &m.LastUpdated, &m.Position)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan delivery groups: %w", err)
	}

	groups := make([]*domain.DeliveryGroup, 0, len(models))
	for _, m := range models {
		lines, err := r.loadLines(ctx, m.ID, currency)
		if err != nil {
			return nil, err
		}
		groups = append(groups, toDomainGroup(m, lines))
	}
	return groups, nil
}

func (r *OrderRepository) loadLines(ctx context.Context, groupID uuid.UUID, currency string) ([]*domain.OrderLine, error) {
	query := `
		SELECT id, group_id, product_id, product_name, product_sku, quantity,
		       unit_price_net::text, unit_price_gross::text,
		       is_shipping_required, stock_location, position
		FROM order_lines WHERE group_id = $1 ORDER BY position
	`
	rows, err := r.q.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	models, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (lineModel, error) {
		var m lineModel
		err := row.Scan(&m.ID, &m.GroupID, &m.ProductID, &m.ProductName, &m.ProductSKU,
			&m.Quantity, &m.UnitPriceNet, &m.UnitPriceGross,
			&m.IsShippingRequired, &m.StockLocation, &m.Position)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan order lines: %w", err)
	}

	lines := make([]*domain.OrderLine, 0, len(models))
	for _, m := range models {
		line, err := toDomainLine(m, currency)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (r *OrderRepository) loadPayments(ctx context.Context, orderID uuid.UUID) ([]*domain.Payment, error) {
	query := `
		SELECT id, order_id, status, remote_id, total::text, tax::text, currency,
		       captured_amount::text, created, modified, position
		FROM payments WHERE order_id = $1 ORDER BY position
	`
	rows, err := r.q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	models, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (paymentModel, error) {
		var m paymentModel
		err := row.Scan(&m.ID, &m.OrderID, &m.Status, &m.RemoteID, &m.Total, &m.Tax,
			&m.Currency, &m.CapturedAmount, &m.Created, &m.Modified, &m.Position)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan payments: %w", err)
	}

	payments := make([]*domain.Payment, 0, len(models))
	for _, m := range models {
		payment, err := toDomainPayment(m)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

func (r *OrderRepository) loadJournal(ctx context.Context, orderID uuid.UUID) ([]domain.HistoryEntry, []domain.Note, error) {
	rows, err := r.q.Query(ctx,
		`SELECT date, content, user_id FROM order_history WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query order history: %w", err)
	}
	historyModels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (historyModel, error) {
		var m historyModel
		err := row.Scan(&m.Date, &m.Content, &m.UserID)
		return m, err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan order history: %w", err)
	}

	rows, err = r.q.Query(ctx,
		`SELECT date, content, is_public, user_id FROM order_notes WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query order notes: %w", err)
	}
	noteModels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (noteModel, error) {
		var m noteModel
		err := row.Scan(&m.Date, &m.Content, &m.IsPublic, &m.UserID)
		return m, err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan order notes: %w", err)
	}

	return toDomainHistory(historyModels), toDomainNotes(noteModels), nil
}

func (r *OrderRepository) upsertGroup(ctx context.Context, orderID uuid.UUID, group *domain.DeliveryGroup, position int) error {
	query := `
		INSERT INTO delivery_groups (
			id, order_id, status, shipping_method_name, tracking_number, last_updated, position
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    tracking_number = EXCLUDED.tracking_number,
		    last_updated = EXCLUDED.last_updated
	`
	_, err := r.q.Exec(ctx, query,
		group.ID, orderID, string(group.Status),
		group.ShippingMethodName, group.TrackingNumber, group.LastUpdated, position,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert delivery group: %w", err)
	}

	for linePosition, line := range group.Lines {
		if err := r.upsertLine(ctx, group.ID, line, linePosition); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepository) upsertLine(ctx context.Context, groupID uuid.UUID, line *domain.OrderLine, position int) error {
	query := `
		INSERT INTO order_lines (
			id, group_id, product_id, product_name, product_sku, quantity,
			unit_price_net, unit_price_gross, is_shipping_required, stock_location, position
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET stock_location = EXCLUDED.stock_location
	`
	_, err := r.q.Exec(ctx, query,
		line.ID, groupID, line.ProductID, line.ProductName, line.ProductSKU, line.Quantity,
		line.UnitPrice.Net.Amount.String(), line.UnitPrice.Gross.Amount.String(),
		line.IsShippingRequired, line.StockLocation, position,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert order line: %w", err)
	}
	return nil
}

func (r *OrderRepository) upsertPayment(ctx context.Context, payment *domain.Payment, position int) error {
	query := `
		INSERT INTO payments (
			id, order_id, status, remote_id, total, tax, currency,
			captured_amount, created, modified, position
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    remote_id = EXCLUDED.remote_id,
		    captured_amount = EXCLUDED.captured_amount,
		    modified = EXCLUDED.modified
	`
	_, err := r.q.Exec(ctx, query,
		payment.ID, payment.OrderID, string(payment.Status), payment.RemoteID,
		payment.Total.String(), payment.Tax.String(), payment.Currency,
		payment.CapturedAmount.String(), payment.Created, payment.Modified, position,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert payment: %w", err)
	}
	return nil
}

// replaceJournal rewrites the append-only history and notes wholesale; both
// are small and carry no identity of their own.
func (r *OrderRepository) replaceJournal(ctx context.Context, order *domain.Order) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM order_history WHERE order_id = $1`, order.ID); err != nil {
		return fmt.Errorf("failed to clear order history: %w", err)
	}
	for _, entry := range order.History {
		_, err := r.q.Exec(ctx,
			`INSERT INTO order_history (order_id, date, content, user_id) VALUES ($1, $2, $3, $4)`,
			order.ID, entry.Date, entry.Content, entry.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert history entry: %w", err)
		}
	}

	if _, err := r.q.Exec(ctx, `DELETE FROM order_notes WHERE order_id = $1`, order.ID); err != nil {
		return fmt.Errorf("failed to clear order notes: %w", err)
	}
	for _, note := range order.Notes {
		_, err := r.q.Exec(ctx,
			`INSERT INTO order_notes (order_id, date, content, is_public, user_id) VALUES ($1, $2, $3, $4, $5)`,
			order.ID, note.Date, note.Content, note.IsPublic, note.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert note: %w", err)
		}
	}
	return nil
}

func nullableMoney(m *domain.Money) any {
	if m == nil {
		return nil
	}
	return m.Amount.String()
}

func nullableTaxedNet(t *domain.TaxedMoney) any {
	if t == nil {
		return nil
	}
	return t.Net.Amount.String()
}

func nullableTaxedGross(t *domain.TaxedMoney) any {
	if t == nil {
		return nil
	}
	return t.Gross.Amount.String()
}
