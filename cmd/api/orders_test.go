package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketplace/internal/store"
)

func placeOrder(t *testing.T, mux http.Handler, token string, items []map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"items":            items,
		"shipping_address": "12 Main St",
		"phone_number":     "555-0101",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewReader(body))
	req.Header.Set("Authorization", token)
	return executeRequest(req, mux)
}

func TestCreateOrder(t *testing.T) {
	st, state := newTestStorage()
	app := newTestApplication(t, st)
	mux := app.mount()

	buyer := state.seedUser("buyer", "buyer@example.com", store.RoleUser)
	seller := state.seedUser("vendor", "vendor@example.com", store.RoleSeller)
	lamp := state.seedProduct(seller.ID, "Lamp", 25, 10)
	desk := state.seedProduct(seller.ID, "Desk", 100, 2)
	token := bearerToken(t, app, buyer.ID, buyer.Username, buyer.Role)

	rr := placeOrder(t, mux, token, []map[string]any{
		{"product_id": fmt.Sprint(lamp.ID), "quantity": 2},
		{"product_id": fmt.Sprint(desk.ID), "quantity": 1},
	})
	checkResponseCode(t, http.StatusCreated, rr.Code)

	var envelope struct {
		Data store.Order `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&envelope); err != nil {
		t.Fatal(err)
	}
	order := envelope.Data

	if order.Total != 150 {
		t.Errorf("expected total 150, got %v", order.Total)
	}
	if order.Status != store.OrderPending {
		t.Errorf("expected status pending, got %q", order.Status)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(order.Items))
	}

	// stock got decremented
	got, _ := st.Products.GetByID(t.Context(), lamp.ID)
	if got.Stock != 8 {
		t.Errorf("expected lamp stock 8, got %d", got.Stock)
	}
	got, _ = st.Products.GetByID(t.Context(), desk.ID)
	if got.Stock != 1 {
		t.Errorf("expected desk stock 1, got %d", got.Stock)
	}
}

// One short line rejects the whole cart and leaves every stock untouched.
func TestCreateOrderInsufficientStock(t *testing.T) {
	st, state := newTestStorage()
	app := newTestApplication(t, st)
	mux := app.mount()

	buyer := state.seedUser("buyer", "buyer@example.com", store.RoleUser)
	seller := state.seedUser("vendor", "vendor@example.com", store.RoleSeller)
	lamp := state.seedProduct(seller.ID, "Lamp", 25, 10)
	desk := state.seedProduct(seller.ID, "Desk", 100, 2)
	token := bearerToken(t, app, buyer.ID, buyer.Username, buyer.Role)

	rr := placeOrder(t, mux, token, []map[string]any{
		{"product_id": fmt.Sprint(lamp.ID), "quantity": 2},
		{"product_id": fmt.Sprint(desk.ID), "quantity": 3},
	})
	checkResponseCode(t, http.StatusBadRequest, rr.Code)

	got, _ := st.Products.GetByID(t.Context(), lamp.ID)
	if got.Stock != 10 {
		t.Errorf("expected lamp stock unchanged at 10, got %d", got.Stock)
	}

	orders, _ := st.Orders.ListByUser(t.Context(), buyer.ID)
	if len(orders) != 0 {
		t.Errorf("expected no order, got %d", len(orders))
	}
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	st, state := newTestStorage()
	app := newTestApplication(t, st)
	mux := app.mount()

	buyer := state.seedUser("buyer", "buyer@example.com", store.RoleUser)
	token := bearerToken(t, app, buyer.ID, buyer.Username, buyer.Role)

	rr := placeOrder(t, mux, token, []map[string]any{
		{"product_id": "99999", "quantity": 1},
	})
	checkResponseCode(t, http.StatusNotFound, rr.Code)
}

func TestCreateOrderValidation(t *testing.T) {
	st, state := newTestStorage()
	app := newTestApplication(t, st)
	mux := app.mount()

	buyer := state.seedUser("buyer", "buyer@example.com", store.RoleUser)
	token := bearerToken(t, app, buyer.ID, buyer.Username, buyer.Role)

	// empty cart
	rr := placeOrder(t, mux, token, []map[string]any{})
	checkResponseCode(t, http.StatusBadRequest, rr.Code)

	// zero quantity
	rr = placeOrder(t, mux, token, []map[string]any{
		{"product_id": "1", "quantity": 0},
	})
	checkResponseCode(t, http.StatusBadRequest, rr.Code)
}

func TestOrderVisibility(t *testing.T) {
	st, state := newTestStorage()
	app := newTestApplication(t, st)
	mux := app.mount()

	buyer := state.seedUser("buyer", "buyer@example.com", store.RoleUser)
	stranger := state.seedUser("stranger", "stranger@example.com", store.RoleUser)
	seller := state.seedUser("vendor", "vendor@example.com", store.RoleSeller)
	otherSeller := state.seedUser("other", "other@example.com", store.RoleSeller)
	admin := state.seedUser("root", "root@example.com", store.RoleAdmin)
	lamp := state.seedProduct(seller.ID, "Lamp", 25, 10)

	rr := placeOrder(t, mux, bearerToken(t, app, buyer.ID, buyer.Username, buyer.Role), []map[string]any{
		{"product_id": fmt.Sprint(lamp.ID), "quantity": 1},
	})
	checkResponseCode(t, http.StatusCreated, rr.Code)

	var envelope struct {
		Data store.Order `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&envelope); err != nil {
		t.Fatal(err)
	}
	path := fmt.Sprintf("/v1/orders/%d", envelope.Data.ID)

	cases := []struct {
		name   string
		caller *store.User
		want   int
	}{
		{"purchaser sees own order", buyer, http.StatusOK},
		{"another user does not", stranger, http.StatusForbidden},
		{"seller with a line sees it", seller, http.StatusOK},
		{"unrelated seller does not", otherSeller, http.StatusForbidden},
		{"admin sees everything", admin, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.Header.Set("Authorization", bearerToken(t, app, tc.caller.ID, tc.caller.Username, tc.caller.Role))
			rr := executeRequest(req, mux)
			checkResponseCode(t, tc.want, rr.Code)
		})
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	st, state := newTestStorage()
	app := newTestApplication(t, st)
	mux := app.mount()

	buyer := state.seedUser("buyer", "buyer@example.com", store.RoleUser)
	seller := state.seedUser("vendor", "vendor@example.com", store.RoleSeller)
	otherSeller := state.seedUser("other", "other@example.com", store.RoleSeller)
	lamp := state.seedProduct(seller.ID, "Lamp", 25, 10)

	rr := placeOrder(t, mux, bearerToken(t, app, buyer.ID, buyer.Username, buyer.Role), []map[string]any{
		{"product_id": fmt.Sprint(lamp.ID), "quantity": 1},
	})
	checkResponseCode(t, http.StatusCreated, rr.Code)

	var envelope struct {
		Data store.Order `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&envelope); err != nil {
		t.Fatal(err)
	}
	path := fmt.Sprintf("/v1/orders/%d/status", envelope.Data.ID)
	sellerToken := bearerToken(t, app, seller.ID, seller.Username, seller.Role)

	setStatus := func(token, status string) *httptest.ResponseRecorder {
		body := []byte(fmt.Sprintf(`{"status":%q}`, status))
		req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(body))
		req.Header.Set("Authorization", token)
		return executeRequest(req, mux)
	}

	// an unrelated seller cannot touch the order
	rr = setStatus(bearerToken(t, app, otherSeller.ID, otherSeller.Username, otherSeller.Role), store.OrderShipped)
	checkResponseCode(t, http.StatusForbidden, rr.Code)

	// the related seller moves it pending -> shipped -> delivered
	rr = setStatus(sellerToken, store.OrderShipped)
	checkResponseCode(t, http.StatusOK, rr.Code)

	rr = setStatus(sellerToken, store.OrderDelivered)
	checkResponseCode(t, http.StatusOK, rr.Code)

	// delivered is terminal
	rr = setStatus(sellerToken, store.OrderCancelled)
	checkResponseCode(t, http.StatusBadRequest, rr.Code)

	// a made-up status fails validation
	rr = setStatus(sellerToken, "teleported")
	checkResponseCode(t, http.StatusBadRequest, rr.Code)

	// the rejected writes left the stored status untouched
	stored, err := st.Orders.GetByID(t.Context(), envelope.Data.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != store.OrderDelivered {
		t.Fatalf("expected order to stay delivered, got %q", stored.Status)
	}
}

// Two writers racing on the same order cannot both win: whoever lands second
// sees the moved status and is rejected, so a terminal state is never
// overwritten.
func TestUpdateOrderStatusLostRace(t *testing.T) {
	st, state := newTestStorage()
	app := newTestApplication(t, st)
	mux := app.mount()

	buyer := state.seedUser("buyer", "buyer@example.com", store.RoleUser)
	seller := state.seedUser("vendor", "vendor@example.com", store.RoleSeller)
	lamp := state.seedProduct(seller.ID, "Lamp", 25, 10)

	rr := placeOrder(t, mux, bearerToken(t, app, buyer.ID, buyer.Username, buyer.Role), []map[string]any{
		{"product_id": fmt.Sprint(lamp.ID), "quantity": 1},
	})
	checkResponseCode(t, http.StatusCreated, rr.Code)

	var envelope struct {
		Data store.Order `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&envelope); err != nil {
		t.Fatal(err)
	}

	// first writer lands delivered while the order is still pending
	if _, err := st.Orders.UpdateStatus(t.Context(), envelope.Data.ID, store.OrderDelivered); err != nil {
		t.Fatal(err)
	}

	// the second writer validated against pending too, but by now the row
	// has moved; its write must fail instead of flipping delivered away
	if _, err := st.Orders.UpdateStatus(t.Context(), envelope.Data.ID, store.OrderCancelled); !errors.Is(err, store.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	stored, err := st.Orders.GetByID(t.Context(), envelope.Data.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != store.OrderDelivered {
		t.Fatalf("expected order to stay delivered, got %q", stored.Status)
	}
}
