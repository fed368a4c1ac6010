package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"marketplace/internal/store"

	"github.com/go-chi/chi/v5"
)

type CreateProductPayload struct {
	Name        string   `json:"name" validate:"required,min=1,max=200"`
	Price       float64  `json:"price" validate:"gte=0"`
	Description string   `json:"description" validate:"required"`
	Category    string   `json:"category" validate:"required,min=1,max=100"`
	Stock       int      `json:"stock" validate:"gte=0"`
	Location    string   `json:"location"`
	Images      []string `json:"images"`
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 10
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("skip")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func parseFloatQuery(r *http.Request, name string) *float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

// createProductHandler godoc
//
//	@Summary		Create a listing
//	@Description	Sellers and admins only. The caller becomes the owning seller.
//	@Tags			products
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateProductPayload	true	"Listing"
//	@Success		201		{object}	store.Product
//	@Failure		400		{object}	error
//	@Failure		403		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products [post]
func (app *application) createProductHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateProductPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p := getPrincipal(r)

	images := payload.Images
	if images == nil {
		images = []string{}
	}

	product := &store.Product{
		SellerID:    p.ID,
		Name:        payload.Name,
		Price:       payload.Price,
		Description: payload.Description,
		Category:    payload.Category,
		Stock:       payload.Stock,
		Location:    payload.Location,
		Images:      images,
	}

	if err := app.store.Products.Create(r.Context(), product); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.logger.Infow("product created", "product", product.Name, "seller", p.ID)

	if err := app.jsonResponse(w, http.StatusCreated, product); err != nil {
		app.internalServerError(w, r, err)
	}
}

// listProductsHandler godoc
//
//	@Summary	List products
//	@Tags		products
//	@Produce	json
//	@Param		category	query		string	false	"Category filter"
//	@Param		search		query		string	false	"Substring match on name/description"
//	@Param		sort_by		query		string	false	"price_asc | price_desc | newest"
//	@Param		limit		query		int		false	"Page size (default 10)"
//	@Param		skip		query		int		false	"Offset"
//	@Success	200			{array}		store.Product
//	@Router		/products [get]
func (app *application) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	filter := store.ProductFilter{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
		SortBy:   r.URL.Query().Get("sort_by"),
		Limit:    limit,
		Offset:   offset,
	}

	products, err := app.store.Products.List(r.Context(), filter)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, products); err != nil {
		app.internalServerError(w, r, err)
	}
}

// searchProductsHandler godoc
//
//	@Summary		Search products
//	@Description	Full-text search with a substring fallback when the text index finds nothing.
//	@Tags			products
//	@Produce		json
//	@Param			q			query		string	true	"Search text"
//	@Param			category	query		string	false	"Category filter"
//	@Param			min_price	query		number	false	"Minimum price"
//	@Param			max_price	query		number	false	"Maximum price"
//	@Param			min_rating	query		number	false	"Minimum average rating"
//	@Success		200			{array}		store.Product
//	@Failure		400			{object}	error
//	@Router			/products/search [get]
func (app *application) searchProductsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		app.badRequestResponse(w, r, fmt.Errorf("missing query parameter q"))
		return
	}

	limit, offset := parsePagination(r)

	filter := store.ProductFilter{
		Category:  r.URL.Query().Get("category"),
		MinPrice:  parseFloatQuery(r, "min_price"),
		MaxPrice:  parseFloatQuery(r, "max_price"),
		MinRating: parseFloatQuery(r, "min_rating"),
		Limit:     limit,
		Offset:    offset,
	}

	products, err := app.store.Products.Search(r.Context(), query, filter)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, products); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getProductHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := parseIDParam(r, "productID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	product, err := app.store.Products.GetByID(r.Context(), productID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, product); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateProductHandler godoc
//
//	@Summary		Update a listing
//	@Description	Only the owning seller may update; admins bypass the ownership check.
//	@Tags			products
//	@Accept			json
//	@Produce		json
//	@Param			productID	path		int					true	"Product ID"
//	@Param			payload		body		store.ProductPatch	true	"Fields to change"
//	@Success		200			{object}	store.Product
//	@Failure		403			{object}	error
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/{productID} [put]
func (app *application) updateProductHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := parseIDParam(r, "productID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var patch store.ProductPatch
	if err := readJSON(w, r, &patch); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(patch); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	product, err := app.store.Products.GetByID(r.Context(), productID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	// seller role alone is not enough; the listing must be the caller's own
	p := getPrincipal(r)
	if product.SellerID != p.ID && p.Role != store.RoleAdmin {
		app.forbiddenResponse(w, r)
		return
	}

	updated, err := app.store.Products.Update(r.Context(), productID, patch)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.logger.Infow("product updated", "product", productID, "caller", p.ID)

	if err := app.jsonResponse(w, http.StatusOK, updated); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteProductHandler godoc
//
//	@Summary	Delete a listing
//	@Tags		products
//	@Produce	json
//	@Param		productID	path		int	true	"Product ID"
//	@Success	200			{object}	map[string]string
//	@Failure	403			{object}	error
//	@Failure	404			{object}	error
//	@Security	ApiKeyAuth
//	@Router		/products/{productID} [delete]
func (app *application) deleteProductHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := parseIDParam(r, "productID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	product, err := app.store.Products.GetByID(r.Context(), productID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	p := getPrincipal(r)
	if product.SellerID != p.ID && p.Role != store.RoleAdmin {
		app.forbiddenResponse(w, r)
		return
	}

	if err := app.store.Products.Delete(r.Context(), productID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.logger.Infow("product deleted", "product", productID, "caller", p.ID)

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "product deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) sellerProductsHandler(w http.ResponseWriter, r *http.Request) {
	p := getPrincipal(r)

	products, err := app.store.Products.ListBySeller(r.Context(), p.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, products); err != nil {
		app.internalServerError(w, r, err)
	}
}
