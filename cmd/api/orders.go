package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"marketplace/internal/notifications"
	"marketplace/internal/store"
)

type CreateOrderPayload struct {
	Items           []store.CartItem `json:"items" validate:"required,min=1,dive"`
	ShippingAddress string           `json:"shipping_address" validate:"required,max=500"`
	PhoneNumber     string           `json:"phone_number" validate:"required,max=30"`
}

type UpdateOrderStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=pending shipped delivered cancelled"`
}

// createOrderHandler godoc
//
//	@Summary		Place an order
//	@Description	Validates the whole cart against live stock, then decrements stock and writes an
//	@Description	immutable order snapshot. Any failing line aborts the whole placement with no
//	@Description	partial stock decrement.
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateOrderPayload	true	"Cart"
//	@Success		201		{object}	store.Order
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/orders [post]
func (app *application) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateOrderPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p := getPrincipal(r)

	order, err := app.store.Orders.Create(r.Context(), p.ID, payload.Items, payload.ShippingAddress, payload.PhoneNumber)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		case errors.Is(err, store.ErrInsufficientStock):
			app.badRequestResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.logger.Infow("order created", "order", order.OrderNumber, "user", p.ID)

	go app.notifySellers(order)

	if err := app.jsonResponse(w, http.StatusCreated, order); err != nil {
		app.internalServerError(w, r, err)
	}
}

// notifySellers pushes a new-order notification to every seller with a line
// in the order. Failures are logged and swallowed; the order already exists.
func (app *application) notifySellers(order *store.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	seen := map[int64]bool{}
	sellerIDs := []int64{}
	for _, item := range order.Items {
		product, err := app.store.Products.GetByID(ctx, item.ProductID)
		if err != nil {
			continue
		}
		if !seen[product.SellerID] {
			seen[product.SellerID] = true
			sellerIDs = append(sellerIDs, product.SellerID)
		}
	}
	if len(sellerIDs) == 0 {
		return
	}

	if err := notifications.SendNewOrderNotification(ctx, app.push, app.store, sellerIDs, order.OrderNumber); err != nil {
		app.logger.Warnw("order push notification failed", "order", order.OrderNumber, "error", err)
	}
}

func (app *application) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseIDParam(r, "orderID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	order, err := app.store.Orders.GetByID(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	// visible to the purchaser, a seller with a line in it, or an admin
	p := getPrincipal(r)
	if order.UserID != p.ID && p.Role != store.RoleAdmin {
		related := false
		if p.Role == store.RoleSeller {
			related, err = app.store.Orders.HasSellerItems(r.Context(), orderID, p.ID)
			if err != nil {
				app.internalServerError(w, r, err)
				return
			}
		}
		if !related {
			app.forbiddenResponse(w, r)
			return
		}
	}

	if err := app.jsonResponse(w, http.StatusOK, order); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateOrderStatusHandler godoc
//
//	@Summary		Set order status
//	@Description	pending → shipped|delivered|cancelled, shipped → delivered|cancelled;
//	@Description	delivered and cancelled are terminal. Sellers must have a line in the order.
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Param			orderID	path		int							true	"Order ID"
//	@Param			payload	body		UpdateOrderStatusPayload	true	"New status"
//	@Success		200		{object}	store.Order
//	@Failure		400		{object}	error
//	@Failure		403		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/orders/{orderID}/status [put]
func (app *application) updateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseIDParam(r, "orderID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpdateOrderStatusPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p := getPrincipal(r)
	if p.Role != store.RoleAdmin {
		related, err := app.store.Orders.HasSellerItems(r.Context(), orderID, p.ID)
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
		if !related {
			app.forbiddenResponse(w, r)
			return
		}
	}

	order, err := app.store.Orders.UpdateStatus(r.Context(), orderID, payload.Status)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		case errors.Is(err, store.ErrInvalidStatus):
			app.badRequestResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.logger.Infow("order status updated", "order", orderID, "status", payload.Status, "caller", p.ID)

	if err := app.jsonResponse(w, http.StatusOK, order); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) userOrdersHandler(w http.ResponseWriter, r *http.Request) {
	p := getPrincipal(r)

	orders, err := app.store.Orders.ListByUser(r.Context(), p.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, orders); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) sellerOrdersHandler(w http.ResponseWriter, r *http.Request) {
	p := getPrincipal(r)

	orders, err := app.store.Orders.ListBySeller(r.Context(), p.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, orders); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) adminOrdersHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	orders, err := app.store.Orders.ListAll(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, orders); err != nil {
		app.internalServerError(w, r, err)
	}
}
