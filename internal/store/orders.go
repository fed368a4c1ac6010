package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Order struct {
	ID              int64       `json:"id,string"`
	UserID          int64       `json:"user_id,string"`
	OrderNumber     string      `json:"order_number"`
	Items           []OrderItem `json:"items"`
	Total           float64     `json:"total"`
	ShippingAddress string      `json:"shipping_address"`
	PhoneNumber     string      `json:"phone_number"`
	Status          string      `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderItem is a snapshot line: name and price are copied from the product at
// placement time and never change afterwards, whatever happens to the catalog.
type OrderItem struct {
	ProductID int64   `json:"product_id,string"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// CartItem is a submitted line before validation.
type CartItem struct {
	ProductID int64 `json:"product_id,string" validate:"required"`
	Quantity  int   `json:"quantity" validate:"required,gte=1"`
}

type OrdersStore struct {
	db  *pgxpool.Pool
	gen *OrderNumberGenerator
}

// Create places an order in a single transaction.
//
// The flow is two explicit passes: validate every line against live stock
// first, then decrement. Each decrement is conditional
// (stock >= quantity) so two carts racing on the same product cannot both
// win; the loser's transaction rolls back with ErrInsufficientStock and no
// partial decrement survives.
func (s *OrdersStore) Create(ctx context.Context, userID int64, items []CartItem, shippingAddress, phone string) (*Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("order has no items")
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// validate pass: snapshot name/price, reject absent or short-stocked lines
	lines := make([]OrderItem, 0, len(items))
	var total float64
	for _, item := range items {
		var name string
		var price float64
		var stock int
		err := tx.QueryRow(ctx,
			`SELECT name, price, stock FROM products WHERE id = $1`, item.ProductID,
		).Scan(&name, &price, &stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if stock < item.Quantity {
			return nil, ErrInsufficientStock
		}

		lines = append(lines, OrderItem{
			ProductID: item.ProductID,
			Name:      name,
			Price:     price,
			Quantity:  item.Quantity,
		})
		total += price * float64(item.Quantity)
	}

	// mutate pass: conditional atomic decrement per line
	for _, line := range lines {
		tag, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
			line.ProductID, line.Quantity,
		)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			// lost a race since the validate pass
			return nil, ErrInsufficientStock
		}
	}

	order := &Order{
		UserID:          userID,
		OrderNumber:     s.gen.Generate(userID),
		Items:           lines,
		Total:           total,
		ShippingAddress: shippingAddress,
		PhoneNumber:     phone,
		Status:          OrderPending,
	}

	err = tx.QueryRow(ctx, `
	  INSERT INTO orders (user_id, order_number, total, shipping_address, phone_number, status)
	  VALUES ($1, $2, $3, $4, $5, $6)
	  RETURNING id, created_at, updated_at
	`, order.UserID, order.OrderNumber, order.Total, order.ShippingAddress, order.PhoneNumber, order.Status,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		_, err := tx.Exec(ctx, `
		  INSERT INTO order_items (order_id, product_id, name, price, quantity)
		  VALUES ($1, $2, $3, $4, $5)
		`, order.ID, line.ProductID, line.Name, line.Price, line.Quantity)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return order, nil
}

func (s *OrdersStore) GetByID(ctx context.Context, orderID int64) (*Order, error) {
	query := `
	  SELECT id, COALESCE(user_id, 0), order_number, total, shipping_address, phone_number, status, created_at, updated_at
	  FROM orders WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var o Order
	err := s.db.QueryRow(ctx, query, orderID).Scan(
		&o.ID, &o.UserID, &o.OrderNumber, &o.Total, &o.ShippingAddress, &o.PhoneNumber,
		&o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.loadItems(ctx, []*Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OrdersStore) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	query := `
	  SELECT id, COALESCE(user_id, 0), order_number, total, shipping_address, phone_number, status, created_at, updated_at
	  FROM orders
	  WHERE user_id = $1
	  ORDER BY created_at DESC
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return s.queryOrders(ctx, query, userID)
}

// ListBySeller returns orders that contain at least one of the seller's
// products. The order/seller link goes through the live products table, so
// items whose product was deleted no longer count toward the seller view.
func (s *OrdersStore) ListBySeller(ctx context.Context, sellerID int64) ([]Order, error) {
	query := `
	  SELECT DISTINCT o.id, COALESCE(o.user_id, 0), o.order_number, o.total, o.shipping_address,
	         o.phone_number, o.status, o.created_at, o.updated_at
	  FROM orders o
	  JOIN order_items oi ON oi.order_id = o.id
	  JOIN products p ON p.id = oi.product_id
	  WHERE p.seller_id = $1
	  ORDER BY o.created_at DESC
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return s.queryOrders(ctx, query, sellerID)
}

func (s *OrdersStore) ListAll(ctx context.Context, status string, limit, offset int) ([]Order, error) {
	query := `
	  SELECT id, COALESCE(user_id, 0), order_number, total, shipping_address, phone_number, status, created_at, updated_at
	  FROM orders
	  WHERE ($1 = '' OR status = $1)
	  ORDER BY created_at DESC
	  LIMIT $2 OFFSET $3
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return s.queryOrders(ctx, query, status, limit, offset)
}

func (s *OrdersStore) UpdateStatus(ctx context.Context, orderID int64, status string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	order, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !CanTransitionOrder(order.Status, status) {
		return nil, ErrInvalidStatus
	}

	// The update is conditional on the status we validated against, like the
	// stock decrement: a concurrent writer that moved the order first makes
	// this a no-op instead of overwriting a terminal state.
	err = s.db.QueryRow(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3 RETURNING updated_at`,
		orderID, status, order.Status,
	).Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStatus
		}
		return nil, err
	}
	order.Status = status
	return order, nil
}

// HasSellerItems reports whether any line in the order belongs to the seller.
func (s *OrdersStore) HasSellerItems(ctx context.Context, orderID, sellerID int64) (bool, error) {
	query := `
	  SELECT EXISTS (
	    SELECT 1
	    FROM order_items oi
	    JOIN products p ON p.id = oi.product_id
	    WHERE oi.order_id = $1 AND p.seller_id = $2
	  )
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var found bool
	err := s.db.QueryRow(ctx, query, orderID, sellerID).Scan(&found)
	return found, err
}

func (s *OrdersStore) queryOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []Order{}
	refs := []*Order{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.OrderNumber, &o.Total, &o.ShippingAddress, &o.PhoneNumber,
			&o.Status, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		refs = append(refs, &orders[i])
	}
	if err := s.loadItems(ctx, refs); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *OrdersStore) loadItems(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		o.Items = []OrderItem{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := s.db.Query(ctx, `
	  SELECT order_id, COALESCE(product_id, 0), name, price, quantity
	  FROM order_items
	  WHERE order_id = ANY($1)
	  ORDER BY id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var orderID int64
		var item OrderItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return err
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}
