package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/granarylabs/granary/internal/services/market/domain"
	"github.com/granarylabs/granary/internal/services/market/storage"
)

const orderColumns = `order_id, batch_id, seller_id, buyer_id, buyer_email, buyer_contact,
       quantity_g, price_per_kg, total_amount, status,
       street, city, state, postal_code, country,
       tracking_number, estimated_delivery, notes, seller_notes,
       order_date, confirmed_at, preparing_at, shipped_at, delivered_at,
       rejected_at, cancelled_at, updated_at`

// CreateOrder reserves the order's quantity and inserts the record in one
// transaction. A failed reservation rolls back with no order written.
func (s *Store) CreateOrder(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return fmt.Errorf("order id is required")
	}
	grams, err := toGrams(order.QuantityOrdered)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback order write: %v", cause, rollbackErr)
		}
		return cause
	}

	if err := reserveQuantityExec(ctx, tx, order.BatchID, order.QuantityOrdered, order.OrderDate); err != nil {
		return rollbackWith(err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO orders (
		   order_id, batch_id, seller_id, buyer_id, buyer_email, buyer_contact,
		   quantity_g, price_per_kg, total_amount, status,
		   street, city, state, postal_code, country,
		   tracking_number, estimated_delivery, notes, seller_notes,
		   order_date, confirmed_at, preparing_at, shipped_at, delivered_at,
		   rejected_at, cancelled_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		orderID,
		order.BatchID,
		order.SellerID,
		order.BuyerID,
		order.BuyerEmail,
		order.BuyerContact,
		grams,
		order.PricePerKg.String(),
		order.TotalAmount.String(),
		string(order.Status),
		order.DeliveryAddress.Street,
		order.DeliveryAddress.City,
		order.DeliveryAddress.State,
		order.DeliveryAddress.PostalCode,
		order.DeliveryAddress.Country,
		order.TrackingNumber,
		toMillisPtr(order.EstimatedDelivery),
		order.Notes,
		order.SellerNotes,
		toMillis(order.OrderDate),
		toMillisPtr(order.ConfirmedAt),
		toMillisPtr(order.PreparingAt),
		toMillisPtr(order.ShippedAt),
		toMillisPtr(order.DeliveredAt),
		toMillisPtr(order.RejectedAt),
		toMillisPtr(order.CancelledAt),
		toMillis(order.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return rollbackWith(storage.ErrAlreadyExists)
		}
		return rollbackWith(fmt.Errorf("create order: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order write: %w", err)
	}
	return nil
}

// GetOrder returns one order by ID.
func (s *Store) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Order{}, fmt.Errorf("storage is not configured")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("order id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_id = ?`,
		orderID,
	)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, storage.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// ListOrdersByBuyer returns the buyer's orders, most recent first.
func (s *Store) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return s.listOrdersBy(ctx, "buyer_id", buyerID)
}

// ListOrdersBySeller returns the seller's orders, most recent first.
func (s *Store) ListOrdersBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return s.listOrdersBy(ctx, "seller_id", sellerID)
}

func (s *Store) listOrdersBy(ctx context.Context, column, value string) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%s is required", column)
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+column+` = ? ORDER BY order_date DESC, order_id ASC`,
		value,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// ApplyTransition persists an already-validated transition. The UPDATE
// compares against the expected source status, so two concurrent updates on
// the same order cannot both apply. A release-triggering transition and its
// quantity restore commit together or not at all.
func (s *Store) ApplyTransition(ctx context.Context, order domain.Order, expected domain.Status, releaseQuantity bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback transition write: %v", cause, rollbackErr)
		}
		return cause
	}

	result, err := tx.ExecContext(
		ctx,
		`UPDATE orders
		    SET status = ?,
		        tracking_number = ?,
		        estimated_delivery = ?,
		        seller_notes = ?,
		        confirmed_at = ?,
		        preparing_at = ?,
		        shipped_at = ?,
		        delivered_at = ?,
		        rejected_at = ?,
		        cancelled_at = ?,
		        updated_at = ?
		  WHERE order_id = ? AND status = ?`,
		string(order.Status),
		order.TrackingNumber,
		toMillisPtr(order.EstimatedDelivery),
		order.SellerNotes,
		toMillisPtr(order.ConfirmedAt),
		toMillisPtr(order.PreparingAt),
		toMillisPtr(order.ShippedAt),
		toMillisPtr(order.DeliveredAt),
		toMillisPtr(order.RejectedAt),
		toMillisPtr(order.CancelledAt),
		toMillis(order.UpdatedAt),
		strings.TrimSpace(order.ID),
		string(expected),
	)
	if err != nil {
		return rollbackWith(fmt.Errorf("apply transition: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return rollbackWith(fmt.Errorf("apply transition rows: %w", err))
	}
	if affected == 0 {
		var exists int
		row := tx.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE order_id = ?`, strings.TrimSpace(order.ID))
		if scanErr := row.Scan(&exists); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return rollbackWith(storage.ErrNotFound)
			}
			return rollbackWith(fmt.Errorf("inspect order: %w", scanErr))
		}
		return rollbackWith(storage.ErrStatusConflict)
	}

	if releaseQuantity {
		if err := releaseQuantityExec(ctx, tx, order.BatchID, order.QuantityOrdered, order.UpdatedAt); err != nil {
			return rollbackWith(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition write: %w", err)
	}
	return nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var order domain.Order
	var grams int64
	var price, total, status string
	var estimatedDelivery sql.NullInt64
	var orderDate, updatedAt int64
	var confirmedAt, preparingAt, shippedAt, deliveredAt, rejectedAt, cancelledAt sql.NullInt64

	err := row.Scan(
		&order.ID,
		&order.BatchID,
		&order.SellerID,
		&order.BuyerID,
		&order.BuyerEmail,
		&order.BuyerContact,
		&grams,
		&price,
		&total,
		&status,
		&order.DeliveryAddress.Street,
		&order.DeliveryAddress.City,
		&order.DeliveryAddress.State,
		&order.DeliveryAddress.PostalCode,
		&order.DeliveryAddress.Country,
		&order.TrackingNumber,
		&estimatedDelivery,
		&order.Notes,
		&order.SellerNotes,
		&orderDate,
		&confirmedAt,
		&preparingAt,
		&shippedAt,
		&deliveredAt,
		&rejectedAt,
		&cancelledAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	order.QuantityOrdered = fromGrams(grams)
	order.PricePerKg, err = parsePrice(price)
	if err != nil {
		return domain.Order{}, err
	}
	order.TotalAmount, err = parsePrice(total)
	if err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.Status(status)
	order.EstimatedDelivery = fromMillisPtr(estimatedDelivery)
	order.OrderDate = fromMillis(orderDate)
	order.ConfirmedAt = fromMillisPtr(confirmedAt)
	order.PreparingAt = fromMillisPtr(preparingAt)
	order.ShippedAt = fromMillisPtr(shippedAt)
	order.DeliveredAt = fromMillisPtr(deliveredAt)
	order.RejectedAt = fromMillisPtr(rejectedAt)
	order.CancelledAt = fromMillisPtr(cancelledAt)
	order.UpdatedAt = fromMillis(updatedAt)
	return order, nil
}
