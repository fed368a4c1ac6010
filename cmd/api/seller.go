package main

import "net/http"

// sellerDashboardHandler godoc
//
//	@Summary	Seller dashboard
//	@Tags		seller
//	@Produce	json
//	@Success	200	{object}	store.SellerDashboard
//	@Failure	403	{object}	error
//	@Security	ApiKeyAuth
//	@Router		/seller/dashboard [get]
func (app *application) sellerDashboardHandler(w http.ResponseWriter, r *http.Request) {
	p := getPrincipal(r)

	dash, err := app.store.Dashboards.Seller(r.Context(), p.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, dash); err != nil {
		app.internalServerError(w, r, err)
	}
}
