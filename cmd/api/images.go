package main

import (
	"errors"
	"net/http"

	"marketplace/internal/store"
)

const maxImageUploadSize = 10 << 20 // 10 MB

// uploadProductImageHandler godoc
//
//	@Summary	Upload a product image
//	@Tags		products
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		productID	path		int		true	"Product ID"
//	@Param		image		formData	file	true	"Image file"
//	@Success	201			{object}	store.Product
//	@Failure	400			{object}	error
//	@Failure	403			{object}	error
//	@Failure	404			{object}	error
//	@Security	ApiKeyAuth
//	@Router		/products/{productID}/images [post]
func (app *application) uploadProductImageHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := parseIDParam(r, "productID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p := getPrincipal(r)

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

	if product.SellerID != p.ID && p.Role != store.RoleAdmin {
		app.forbiddenResponse(w, r)
		return
	}

	if err := r.ParseMultipartForm(maxImageUploadSize); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		app.badRequestResponse(w, r, errors.New("image file is required"))
		return
	}
	defer file.Close()

	imageURL, err := app.uploadProductImage(r.Context(), file, productID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Products.AddImage(r.Context(), productID, imageURL); err != nil {
		// The asset is already in Cloudinary. Clean it up so we don't leak.
		if delErr := app.deleteImageFromCloudinary(r.Context(), imageURL); delErr != nil {
			app.logger.Errorw("cloudinary cleanup failed", "url", imageURL, "error", delErr)
		}
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	updated, err := app.store.Products.GetByID(r.Context(), productID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, updated); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteProductImageHandler godoc
//
//	@Summary	Remove a product image
//	@Tags		products
//	@Produce	json
//	@Param		productID	path		int		true	"Product ID"
//	@Param		image_url	query		string	true	"Image URL to remove"
//	@Success	200			{object}	store.Product
//	@Failure	400			{object}	error
//	@Failure	403			{object}	error
//	@Failure	404			{object}	error
//	@Security	ApiKeyAuth
//	@Router		/products/{productID}/images [delete]
func (app *application) deleteProductImageHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := parseIDParam(r, "productID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	imageURL := r.URL.Query().Get("image_url")
	if imageURL == "" {
		app.badRequestResponse(w, r, errors.New("image_url query parameter is required"))
		return
	}

	p := getPrincipal(r)

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

	if product.SellerID != p.ID && p.Role != store.RoleAdmin {
		app.forbiddenResponse(w, r)
		return
	}

	if err := app.store.Products.RemoveImage(r.Context(), productID, imageURL); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.deleteImageFromCloudinary(r.Context(), imageURL); err != nil {
		// Row is already updated. Log and keep going.
		app.logger.Errorw("cloudinary delete failed", "product_id", productID, "url", imageURL, "error", err)
	}

	updated, err := app.store.Products.GetByID(r.Context(), productID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, updated); err != nil {
		app.internalServerError(w, r, err)
	}
}
