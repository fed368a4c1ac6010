package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("resource already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidStatus     = errors.New("invalid status")
	QueryTimeoutDuration = time.Second * 5
)

// Role tiers. Seller endpoints accept admin too; admin endpoints are
// admin-only. Ownership checks on top of the tier happen per resource.
const (
	RoleUser   = "user"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// Order statuses form a closed set. delivered and cancelled are terminal.
const (
	OrderPending   = "pending"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
	OrderCancelled = "cancelled"
)

var orderTransitions = map[string][]string{
	OrderPending: {OrderShipped, OrderDelivered, OrderCancelled},
	OrderShipped: {OrderDelivered, OrderCancelled},
}

func CanTransitionOrder(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Report statuses. Reports start pending; admins move them on.
const (
	ReportPending   = "pending"
	ReportResolved  = "resolved"
	ReportDismissed = "dismissed"
)

func ValidReportStatus(status string) bool {
	switch status {
	case ReportPending, ReportResolved, ReportDismissed:
		return true
	}
	return false
}

type Storage struct {
	Users interface {
		Create(context.Context, *User) error
		GetByID(context.Context, int64) (*User, error)
		GetByEmail(context.Context, string) (*User, error)
		List(context.Context, string, int, int) ([]User, error)
		SetRole(context.Context, int64, string) error
		Delete(context.Context, int64) error
	}
	Products interface {
		Create(context.Context, *Product) error
		GetByID(context.Context, int64) (*Product, error)
		List(context.Context, ProductFilter) ([]Product, error)
		ListBySeller(context.Context, int64) ([]Product, error)
		Search(context.Context, string, ProductFilter) ([]Product, error)
		Update(context.Context, int64, ProductPatch) (*Product, error)
		Delete(context.Context, int64) error
		AddImage(context.Context, int64, string) error
		RemoveImage(context.Context, int64, string) error
	}
	Orders interface {
		Create(context.Context, int64, []CartItem, string, string) (*Order, error)
		GetByID(context.Context, int64) (*Order, error)
		ListByUser(context.Context, int64) ([]Order, error)
		ListBySeller(context.Context, int64) ([]Order, error)
		ListAll(context.Context, string, int, int) ([]Order, error)
		UpdateStatus(context.Context, int64, string) (*Order, error)
		HasSellerItems(context.Context, int64, int64) (bool, error)
	}
	Reviews interface {
		Create(context.Context, *Review) error
		ListByProduct(context.Context, int64) ([]Review, error)
	}
	Reports interface {
		Create(context.Context, *Report) error
		List(context.Context, string, int, int) ([]Report, error)
		SetStatus(context.Context, int64, string) (*Report, error)
	}
	PushTokens interface {
		AddOrUpdate(context.Context, int64, string, json.RawMessage) error
		Remove(context.Context, int64, string) error
		GetTokensByUserIDs(context.Context, []int64) (map[int64][]string, error)
	}
	Dashboards interface {
		Admin(context.Context) (*AdminDashboard, error)
		Seller(context.Context, int64) (*SellerDashboard, error)
	}
}

func NewStorage(db *pgxpool.Pool, orderNumbers *OrderNumberGenerator) Storage {
	return Storage{
		Users:      &UsersStore{db},
		Products:   &ProductsStore{db},
		Orders:     &OrdersStore{db: db, gen: orderNumbers},
		Reviews:    &ReviewsStore{db},
		Reports:    &ReportsStore{db},
		PushTokens: &PushTokensStore{db},
		Dashboards: &DashboardStore{db},
	}
}
