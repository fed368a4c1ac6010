package main

import (
	"errors"
	"net/http"

	"marketplace/internal/store"
)

type CreateReportPayload struct {
	ProductID int64  `json:"product_id,string" validate:"required"`
	Reason    string `json:"reason" validate:"required,max=2000"`
}

// createReportHandler godoc
//
//	@Summary		Report a product
//	@Description	Files a moderation ticket. Duplicate reports are allowed.
//	@Tags			products
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateReportPayload	true	"Report"
//	@Success		201		{object}	store.Report
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/reports [post]
func (app *application) createReportHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateReportPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p := getPrincipal(r)

	report := &store.Report{
		ProductID: payload.ProductID,
		UserID:    p.ID,
		Reason:    payload.Reason,
	}

	if err := app.store.Reports.Create(r.Context(), report); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.logger.Infow("report created", "product", payload.ProductID, "user", p.ID)

	if err := app.jsonResponse(w, http.StatusCreated, report); err != nil {
		app.internalServerError(w, r, err)
	}
}
