package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminCounts struct {
	TotalUsers    int64 `json:"total_users"`
	TotalProducts int64 `json:"total_products"`
	TotalOrders   int64 `json:"total_orders"`
	TotalReports  int64 `json:"total_reports"`
}

type AdminDashboard struct {
	Counts         AdminCounts `json:"counts"`
	RecentUsers    []User      `json:"recent_users"`
	RecentOrders   []Order     `json:"recent_orders"`
	PendingReports []Report    `json:"pending_reports"`
}

type SellerCounts struct {
	TotalProducts int64   `json:"total_products"`
	TotalOrders   int64   `json:"total_orders"`
	TotalRevenue  float64 `json:"total_revenue"`
}

type SellerDashboard struct {
	Counts       SellerCounts `json:"counts"`
	RecentOrders []Order      `json:"recent_orders"`
	StockAlerts  []Product    `json:"stock_alerts"`
}

// stockAlertThreshold flags listings that are about to run dry.
const stockAlertThreshold = 5

type DashboardStore struct {
	db *pgxpool.Pool
}

func (s *DashboardStore) Admin(ctx context.Context) (*AdminDashboard, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	dash := &AdminDashboard{}

	err := s.db.QueryRow(ctx, `
	  SELECT
	    (SELECT COUNT(*) FROM users),
	    (SELECT COUNT(*) FROM products),
	    (SELECT COUNT(*) FROM orders),
	    (SELECT COUNT(*) FROM reports)
	`).Scan(
		&dash.Counts.TotalUsers, &dash.Counts.TotalProducts,
		&dash.Counts.TotalOrders, &dash.Counts.TotalReports,
	)
	if err != nil {
		return nil, err
	}

	dash.RecentUsers = []User{}
	rows, err := s.db.Query(ctx, `
	  SELECT id, username, email, role, created_at
	  FROM users ORDER BY created_at DESC LIMIT 5
	`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		dash.RecentUsers = append(dash.RecentUsers, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orders := &OrdersStore{db: s.db}
	dash.RecentOrders, err = orders.ListAll(ctx, "", 5, 0)
	if err != nil {
		return nil, err
	}

	reports := &ReportsStore{db: s.db}
	dash.PendingReports, err = reports.List(ctx, ReportPending, 5, 0)
	if err != nil {
		return nil, err
	}

	return dash, nil
}

func (s *DashboardStore) Seller(ctx context.Context, sellerID int64) (*SellerDashboard, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	dash := &SellerDashboard{}

	// revenue counts the seller's own lines in non-cancelled orders
	err := s.db.QueryRow(ctx, `
	  SELECT
	    (SELECT COUNT(*) FROM products WHERE seller_id = $1),
	    (SELECT COUNT(DISTINCT o.id)
	       FROM orders o
	       JOIN order_items oi ON oi.order_id = o.id
	       JOIN products p ON p.id = oi.product_id
	       WHERE p.seller_id = $1),
	    COALESCE((SELECT SUM(oi.price * oi.quantity)
	       FROM orders o
	       JOIN order_items oi ON oi.order_id = o.id
	       JOIN products p ON p.id = oi.product_id
	       WHERE p.seller_id = $1 AND o.status <> 'cancelled'), 0)
	`, sellerID).Scan(
		&dash.Counts.TotalProducts, &dash.Counts.TotalOrders, &dash.Counts.TotalRevenue,
	)
	if err != nil {
		return nil, err
	}

	orders := &OrdersStore{db: s.db}
	all, err := orders.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if len(all) > 5 {
		all = all[:5]
	}
	dash.RecentOrders = all

	dash.StockAlerts = []Product{}
	rows, err := s.db.Query(ctx, `
	  SELECT `+productColumns+`
	  FROM products p
	  WHERE p.seller_id = $1 AND p.stock < $2
	  ORDER BY p.stock ASC
	`, sellerID, stockAlertThreshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dash.StockAlerts, err = scanProducts(rows)
	if err != nil {
		return nil, err
	}

	return dash, nil
}
