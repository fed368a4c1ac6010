package main

import (
	"errors"
	"net/http"
	"strconv"

	"marketplace/internal/mailer"
	"marketplace/internal/store"
)

type RegisterUserPayload struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=user seller admin"`
}

type LoginPayload struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// TokenResponse is what both register and login hand back.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
}

// registerUserHandler godoc
//
//	@Summary		Register an account
//	@Description	Creates an account and returns a bearer token. Username and email must be unique.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		RegisterUserPayload	true	"Account details"
//	@Success		201		{object}	TokenResponse
//	@Failure		400		{object}	error
//	@Failure		500		{object}	error
//	@Router			/auth/register [post]
func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var payload RegisterUserPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	role := payload.Role
	if role == "" {
		role = store.RoleUser
	}

	user := &store.User{
		Username: payload.Username,
		Email:    payload.Email,
		Role:     role,
	}
	if err := user.Password.Set(payload.Password); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx := r.Context()

	if err := app.store.Users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateEmail),
			errors.Is(err, store.ErrDuplicateUsername):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	token, err := app.authenticator.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.logger.Infow("user registered", "username", user.Username, "role", user.Role)

	// best effort; registration never fails on mail
	go func() {
		vars := struct{ Username string }{Username: user.Username}
		if _, err := app.mailer.Send(mailer.UserWelcomeTemplate, user.Username, user.Email, vars); err != nil {
			app.logger.Errorw("error sending welcome email", "error", err)
		}
	}()

	resp := TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		UserID:      strconv.FormatInt(user.ID, 10),
		Username:    user.Username,
		Role:        user.Role,
	}

	if err := app.jsonResponse(w, http.StatusCreated, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// loginHandler godoc
//
//	@Summary		Log in
//	@Description	Verifies credentials and returns a fresh 24h bearer token.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		LoginPayload	true	"Credentials"
//	@Success		200		{object}	TokenResponse
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Router			/auth/login [post]
func (app *application) loginHandler(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, err := app.store.Users.GetByEmail(r.Context(), payload.Email)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			// same answer as a bad password; don't reveal which one it was
			app.unauthorizedErrorResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := user.Password.Compare(payload.Password); err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	token, err := app.authenticator.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.logger.Infow("user logged in", "username", user.Username)

	resp := TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		UserID:      strconv.FormatInt(user.ID, 10),
		Username:    user.Username,
		Role:        user.Role,
	}

	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// currentUserHandler godoc
//
//	@Summary	Current account
//	@Tags		auth
//	@Produce	json
//	@Success	200	{object}	store.User
//	@Failure	401	{object}	error
//	@Security	ApiKeyAuth
//	@Router		/auth/me [get]
func (app *application) currentUserHandler(w http.ResponseWriter, r *http.Request) {
	p := getPrincipal(r)

	user, err := app.store.Users.GetByID(r.Context(), p.ID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, user); err != nil {
		app.internalServerError(w, r, err)
	}
}
