package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"marketplace/internal/auth"
	"marketplace/internal/ratelimiter"
	"marketplace/internal/store"

	"github.com/9ssi7/exponent"
	"go.uber.org/zap"
)

func newTestApplication(t *testing.T, st store.Storage) *application {
	t.Helper()

	return &application{
		config: config{
			addr: ":0",
			env:  "test",
			rateLimiter: ratelimiter.Config{
				Enabled: false,
			},
		},
		store:         st,
		logger:        zap.NewNop().Sugar(),
		mailer:        &stubMailer{},
		push:          &stubPushSender{},
		authenticator: auth.NewJWTAuthenticator("test-secret", "test", "test"),
	}
}

func newTestStorage() (store.Storage, *fakeState) {
	state := &fakeState{
		users:    map[int64]*store.User{},
		products: map[int64]*store.Product{},
		orders:   map[int64]*store.Order{},
		reports:  map[int64]*store.Report{},
		tokens:   map[int64][]string{},
	}
	return store.Storage{
		Users:      &fakeUsersStore{state},
		Products:   &fakeProductsStore{state},
		Orders:     &fakeOrdersStore{state},
		Reviews:    &fakeReviewsStore{state},
		Reports:    &fakeReportsStore{state},
		PushTokens: &fakePushTokensStore{state},
		Dashboards: &fakeDashboardStore{state},
	}, state
}

func executeRequest(req *http.Request, mux http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func checkResponseCode(t *testing.T, expected, actual int) {
	t.Helper()
	if expected != actual {
		t.Errorf("expected response code %d, got %d", expected, actual)
	}
}

func bearerToken(t *testing.T, app *application, userID int64, username, role string) string {
	t.Helper()
	token, err := app.authenticator.GenerateToken(userID, username, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return "Bearer " + token
}

// fakeState is shared in-memory backing for every fake store.
type fakeState struct {
	mu       sync.Mutex
	users    map[int64]*store.User
	products map[int64]*store.Product
	orders   map[int64]*store.Order
	reviews  []store.Review
	reports  map[int64]*store.Report
	tokens   map[int64][]string
	nextID   int64
}

func (s *fakeState) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeState) seedUser(username, email, role string) *store.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &store.User{ID: s.id(), Username: username, Email: email, Role: role}
	s.users[u.ID] = u
	return u
}

func (s *fakeState) seedProduct(sellerID int64, name string, price float64, stock int) *store.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &store.Product{ID: s.id(), SellerID: sellerID, Name: name, Price: price, Stock: stock}
	s.products[p.ID] = p
	return p
}

type fakeUsersStore struct{ s *fakeState }

func (f *fakeUsersStore) Create(_ context.Context, user *store.User) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if u.Email == user.Email {
			return store.ErrDuplicateEmail
		}
		if u.Username == user.Username {
			return store.ErrDuplicateUsername
		}
	}
	user.ID = f.s.id()
	f.s.users[user.ID] = user
	return nil
}

func (f *fakeUsersStore) GetByID(_ context.Context, id int64) (*store.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsersStore) GetByEmail(_ context.Context, email string) (*store.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsersStore) List(_ context.Context, role string, limit, offset int) ([]store.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []store.User{}
	for _, u := range f.s.users {
		if role == "" || u.Role == role {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsersStore) SetRole(_ context.Context, id int64, role string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Role = role
	return nil
}

func (f *fakeUsersStore) Delete(_ context.Context, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.s.users, id)
	return nil
}

type fakeProductsStore struct{ s *fakeState }

func (f *fakeProductsStore) Create(_ context.Context, p *store.Product) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p.ID = f.s.id()
	f.s.products[p.ID] = p
	return nil
}

func (f *fakeProductsStore) GetByID(_ context.Context, id int64) (*store.Product, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProductsStore) List(_ context.Context, filter store.ProductFilter) ([]store.Product, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []store.Product{}
	for _, p := range f.s.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProductsStore) ListBySeller(_ context.Context, sellerID int64) ([]store.Product, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []store.Product{}
	for _, p := range f.s.products {
		if p.SellerID == sellerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProductsStore) Search(ctx context.Context, _ string, filter store.ProductFilter) ([]store.Product, error) {
	return f.List(ctx, filter)
}

func (f *fakeProductsStore) Update(_ context.Context, id int64, patch store.ProductPatch) (*store.Product, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProductsStore) Delete(_ context.Context, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.s.products, id)
	return nil
}

func (f *fakeProductsStore) AddImage(_ context.Context, id int64, url string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Images = append(p.Images, url)
	return nil
}

func (f *fakeProductsStore) RemoveImage(_ context.Context, id int64, url string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.products[id]
	if !ok {
		return store.ErrNotFound
	}
	kept := p.Images[:0]
	for _, u := range p.Images {
		if u != url {
			kept = append(kept, u)
		}
	}
	p.Images = kept
	return nil
}

type fakeOrdersStore struct{ s *fakeState }

// Create mirrors the real store's all-or-nothing placement: every line is
// validated against stock before any decrement happens.
func (f *fakeOrdersStore) Create(_ context.Context, userID int64, items []store.CartItem, shippingAddress, phone string) (*store.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	lines := make([]store.OrderItem, 0, len(items))
	var total float64
	for _, item := range items {
		p, ok := f.s.products[item.ProductID]
		if !ok {
			return nil, store.ErrNotFound
		}
		if p.Stock < item.Quantity {
			return nil, store.ErrInsufficientStock
		}
		lines = append(lines, store.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  item.Quantity,
		})
		total += p.Price * float64(item.Quantity)
	}

	for _, item := range items {
		f.s.products[item.ProductID].Stock -= item.Quantity
	}

	order := &store.Order{
		ID:              f.s.id(),
		UserID:          userID,
		OrderNumber:     fmt.Sprintf("MKT-TEST%d", f.s.nextID),
		Items:           lines,
		Total:           total,
		ShippingAddress: shippingAddress,
		PhoneNumber:     phone,
		Status:          store.OrderPending,
	}
	f.s.orders[order.ID] = order
	return order, nil
}

func (f *fakeOrdersStore) GetByID(_ context.Context, id int64) (*store.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	o, ok := f.s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrdersStore) ListByUser(_ context.Context, userID int64) ([]store.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []store.Order{}
	for _, o := range f.s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrdersStore) ListBySeller(ctx context.Context, sellerID int64) ([]store.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []store.Order{}
	for _, o := range f.s.orders {
		if f.orderHasSeller(o, sellerID) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrdersStore) ListAll(_ context.Context, status string, limit, offset int) ([]store.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []store.Order{}
	for _, o := range f.s.orders {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrdersStore) UpdateStatus(_ context.Context, id int64, status string) (*store.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	o, ok := f.s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !store.CanTransitionOrder(o.Status, status) {
		return nil, store.ErrInvalidStatus
	}
	o.Status = status
	cp := *o
	return &cp, nil
}

func (f *fakeOrdersStore) HasSellerItems(_ context.Context, orderID, sellerID int64) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	o, ok := f.s.orders[orderID]
	if !ok {
		return false, nil
	}
	return f.orderHasSeller(o, sellerID), nil
}

func (f *fakeOrdersStore) orderHasSeller(o *store.Order, sellerID int64) bool {
	for _, item := range o.Items {
		if p, ok := f.s.products[item.ProductID]; ok && p.SellerID == sellerID {
			return true
		}
	}
	return false
}

type fakeReviewsStore struct{ s *fakeState }

func (f *fakeReviewsStore) Create(_ context.Context, review *store.Review) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.products[review.ProductID]; !ok {
		return store.ErrNotFound
	}
	for _, r := range f.s.reviews {
		if r.ProductID == review.ProductID && r.UserID == review.UserID {
			return store.ErrDuplicateReview
		}
	}
	review.ID = f.s.id()
	f.s.reviews = append(f.s.reviews, *review)
	return nil
}

func (f *fakeReviewsStore) ListByProduct(_ context.Context, productID int64) ([]store.Review, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []store.Review{}
	for _, r := range f.s.reviews {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeReportsStore struct{ s *fakeState }

func (f *fakeReportsStore) Create(_ context.Context, report *store.Report) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.products[report.ProductID]; !ok {
		return store.ErrNotFound
	}
	report.ID = f.s.id()
	report.Status = store.ReportPending
	f.s.reports[report.ID] = report
	return nil
}

func (f *fakeReportsStore) List(_ context.Context, status string, limit, offset int) ([]store.Report, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []store.Report{}
	for _, rep := range f.s.reports {
		if status == "" || rep.Status == status {
			out = append(out, *rep)
		}
	}
	return out, nil
}

func (f *fakeReportsStore) SetStatus(_ context.Context, id int64, status string) (*store.Report, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if !store.ValidReportStatus(status) {
		return nil, store.ErrInvalidStatus
	}
	rep, ok := f.s.reports[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	rep.Status = status
	cp := *rep
	return &cp, nil
}

type fakePushTokensStore struct{ s *fakeState }

func (f *fakePushTokensStore) AddOrUpdate(_ context.Context, userID int64, token string, _ json.RawMessage) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, t := range f.s.tokens[userID] {
		if t == token {
			return nil
		}
	}
	f.s.tokens[userID] = append(f.s.tokens[userID], token)
	return nil
}

func (f *fakePushTokensStore) Remove(_ context.Context, userID int64, token string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	kept := f.s.tokens[userID][:0]
	for _, t := range f.s.tokens[userID] {
		if t != token {
			kept = append(kept, t)
		}
	}
	f.s.tokens[userID] = kept
	return nil
}

func (f *fakePushTokensStore) GetTokensByUserIDs(_ context.Context, userIDs []int64) (map[int64][]string, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := map[int64][]string{}
	for _, id := range userIDs {
		if tokens, ok := f.s.tokens[id]; ok {
			out[id] = tokens
		}
	}
	return out, nil
}

type fakeDashboardStore struct{ s *fakeState }

func (f *fakeDashboardStore) Admin(_ context.Context) (*store.AdminDashboard, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	dash := &store.AdminDashboard{}
	dash.Counts.TotalUsers = int64(len(f.s.users))
	dash.Counts.TotalProducts = int64(len(f.s.products))
	dash.Counts.TotalOrders = int64(len(f.s.orders))
	dash.Counts.TotalReports = int64(len(f.s.reports))
	return dash, nil
}

func (f *fakeDashboardStore) Seller(_ context.Context, sellerID int64) (*store.SellerDashboard, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	dash := &store.SellerDashboard{}
	for _, p := range f.s.products {
		if p.SellerID == sellerID {
			dash.Counts.TotalProducts++
		}
	}
	return dash, nil
}

type stubMailer struct {
	mu    sync.Mutex
	sends []string
}

func (m *stubMailer) Send(templateFile, username, email string, data any) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, email)
	return 200, nil
}

type stubPushSender struct{}

func (s *stubPushSender) Publish(_ context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error) {
	return nil, nil
}

func (s *stubPushSender) PublishSingle(_ context.Context, msg *exponent.Message) ([]*exponent.MessageResponse, error) {
	return nil, nil
}
