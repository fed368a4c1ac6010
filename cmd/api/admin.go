package main

import (
	"errors"
	"net/http"

	"marketplace/internal/store"
)

type UpdateUserRolePayload struct {
	Role string `json:"role" validate:"required,oneof=user seller admin"`
}

type UpdateReportStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=pending resolved dismissed"`
}

// adminListUsersHandler godoc
//
//	@Summary	List accounts
//	@Tags		admin
//	@Produce	json
//	@Param		role	query		string	false	"Role filter"
//	@Param		limit	query		int		false	"Page size"
//	@Param		skip	query		int		false	"Offset"
//	@Success	200		{array}		store.User
//	@Failure	403		{object}	error
//	@Security	ApiKeyAuth
//	@Router		/admin/users [get]
func (app *application) adminListUsersHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	users, err := app.store.Users.List(r.Context(), r.URL.Query().Get("role"), limit, offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, users); err != nil {
		app.internalServerError(w, r, err)
	}
}

// adminDeleteUserHandler godoc
//
//	@Summary		Delete an account
//	@Description	The account's listings and reviews go with it; its orders survive as
//	@Description	anonymized purchase history.
//	@Tags			admin
//	@Produce		json
//	@Param			userID	path		int	true	"User ID"
//	@Success		200		{object}	map[string]string
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/users/{userID} [delete]
func (app *application) adminDeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.Users.Delete(r.Context(), userID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.logger.Infow("user deleted", "user", userID)

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// adminUpdateUserRoleHandler godoc
//
//	@Summary		Change an account's role
//	@Description	Takes effect on the next token issuance; already-issued tokens keep the old role
//	@Description	until they expire.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			userID	path		int						true	"User ID"
//	@Param			payload	body		UpdateUserRolePayload	true	"New role"
//	@Success		200		{object}	store.User
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/users/{userID}/role [put]
func (app *application) adminUpdateUserRoleHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpdateUserRolePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.Users.SetRole(r.Context(), userID, payload.Role); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	user, err := app.store.Users.GetByID(r.Context(), userID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.logger.Infow("user role updated", "user", userID, "role", payload.Role)

	if err := app.jsonResponse(w, http.StatusOK, user); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) adminListReportsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	reports, err := app.store.Reports.List(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, reports); err != nil {
		app.internalServerError(w, r, err)
	}
}

// adminUpdateReportStatusHandler godoc
//
//	@Summary	Set a report's status
//	@Tags		admin
//	@Accept		json
//	@Produce	json
//	@Param		reportID	path		int							true	"Report ID"
//	@Param		payload		body		UpdateReportStatusPayload	true	"New status"
//	@Success	200			{object}	store.Report
//	@Failure	400			{object}	error
//	@Failure	404			{object}	error
//	@Security	ApiKeyAuth
//	@Router		/admin/reports/{reportID}/status [put]
func (app *application) adminUpdateReportStatusHandler(w http.ResponseWriter, r *http.Request) {
	reportID, err := parseIDParam(r, "reportID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpdateReportStatusPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	report, err := app.store.Reports.SetStatus(r.Context(), reportID, payload.Status)
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

	app.logger.Infow("report status updated", "report", reportID, "status", payload.Status)

	if err := app.jsonResponse(w, http.StatusOK, report); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) adminDashboardHandler(w http.ResponseWriter, r *http.Request) {
	dash, err := app.store.Dashboards.Admin(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, dash); err != nil {
		app.internalServerError(w, r, err)
	}
}
