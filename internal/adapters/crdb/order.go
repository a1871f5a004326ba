package crdb

import (
	"context"

	"github.com/fitlife/checkout-and-bookings/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CreateOrder persists the order, its line items and an outbox record in a
// single serializable transaction. A failure anywhere aborts the whole
// transaction, so no partially constructed order is ever visible.
func (r *Repository) CreateOrder(ctx context.Context, order domain.Order, outbox OutboxRecord) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := r.insertOrder(ctx, tx, order); err != nil {
			return err
		}
		return r.InsertOutbox(ctx, tx, outbox)
	})
}

func (r *Repository) insertOrder(ctx context.Context, tx pgx.Tx, order domain.Order) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO orders (id, order_number, user_id, full_name, email, phone_number,
			street_address1, street_address2, town_or_city, county, postcode, country,
			subtotal, delivery_cost, grand_total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, order.ID, order.OrderNumber, order.UserID, order.FullName, order.Email, order.PhoneNumber,
		order.StreetAddress1, order.StreetAddress2, order.TownOrCity, order.County, order.Postcode, order.Country,
		order.Subtotal, order.DeliveryCost, order.GrandTotal, order.CreatedAt)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_line_items (order_id, position, kind, item_id, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, order.ID, item.Position, item.Kind, item.ItemID, item.Quantity, item.UnitPrice, item.LineTotal)
		if err != nil {
			return err
		}
	}
	return nil
}

// FindOrderByBilling is the matching oracle's lookup: buyer fields compared
// case-insensitively, the grand total compared as exact decimal.
func (r *Repository) FindOrderByBilling(ctx context.Context, b domain.BillingDetails, grandTotal decimal.Decimal) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, order_number, user_id, full_name, email, phone_number,
			street_address1, street_address2, town_or_city, county, postcode, country,
			subtotal, delivery_cost, grand_total, created_at
		FROM orders
		WHERE lower(full_name) = lower($1)
		  AND lower(email) = lower($2)
		  AND lower(phone_number) = lower($3)
		  AND lower(street_address1) = lower($4)
		  AND lower(street_address2) = lower($5)
		  AND lower(town_or_city) = lower($6)
		  AND lower(county) = lower($7)
		  AND lower(postcode) = lower($8)
		  AND lower(country) = lower($9)
		  AND grand_total = $10
		ORDER BY created_at DESC
		LIMIT 1
	`, b.FullName, b.Email, b.PhoneNumber, b.StreetAddress1, b.StreetAddress2,
		b.TownOrCity, b.County, b.Postcode, b.Country, grandTotal)

	order, err := scanOrder(row)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Repository) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, order_number, user_id, full_name, email, phone_number,
			street_address1, street_address2, town_or_city, county, postcode, country,
			subtotal, delivery_cost, grand_total, created_at
		FROM orders WHERE order_number = $1
	`, number)

	order, err := scanOrder(row)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var order domain.Order
	err := row.Scan(&order.ID, &order.OrderNumber, &order.UserID, &order.FullName, &order.Email, &order.PhoneNumber,
		&order.StreetAddress1, &order.StreetAddress2, &order.TownOrCity, &order.County, &order.Postcode, &order.Country,
		&order.Subtotal, &order.DeliveryCost, &order.GrandTotal, &order.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) loadItems(ctx context.Context, order *domain.Order) error {
	rows, err := r.pool.Query(ctx, `
		SELECT position, kind, item_id, quantity, unit_price, line_total
		FROM order_line_items WHERE order_id = $1 ORDER BY position
	`, order.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderLineItem
		if err := rows.Scan(&item.Position, &item.Kind, &item.ItemID, &item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return err
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

// DeleteOrder removes an order and its line items. Compensating action only:
// creation normally rolls back as one transaction, this covers operator
// cleanup after a reported construction failure.
func (r *Repository) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM order_line_items WHERE order_id = $1`, orderID); err != nil {
			return err
		}
		result, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}
