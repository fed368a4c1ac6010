package main

import (
	"encoding/json"
	"net/http"
)

type RegisterPushTokenPayload struct {
	ExpoPushToken string          `json:"expo_push_token" validate:"required"`
	DeviceInfo    json.RawMessage `json:"device_info,omitempty"`
}

type RemovePushTokenPayload struct {
	ExpoPushToken string `json:"expo_push_token" validate:"required"`
}

// registerPushTokenHandler godoc
//
//	@Summary	Register an Expo push token for the current user
//	@Tags		users
//	@Accept		json
//	@Produce	json
//	@Param		payload	body	RegisterPushTokenPayload	true	"Push token"
//	@Success	204
//	@Failure	400	{object}	error
//	@Security	ApiKeyAuth
//	@Router		/users/push-token [post]
func (app *application) registerPushTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPushTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p := getPrincipal(r)

	if err := app.store.PushTokens.AddOrUpdate(r.Context(), p.ID, payload.ExpoPushToken, payload.DeviceInfo); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// removePushTokenHandler godoc
//
//	@Summary	Remove an Expo push token for the current user
//	@Tags		users
//	@Accept		json
//	@Produce	json
//	@Param		payload	body	RemovePushTokenPayload	true	"Push token"
//	@Success	204
//	@Failure	400	{object}	error
//	@Security	ApiKeyAuth
//	@Router		/users/push-token [delete]
func (app *application) removePushTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload RemovePushTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p := getPrincipal(r)

	if err := app.store.PushTokens.Remove(r.Context(), p.ID, payload.ExpoPushToken); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
