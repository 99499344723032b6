package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ducgiangtran/switchboard/internal/userd/service"
	"github.com/ducgiangtran/switchboard/pkg/httpx"
	"github.com/ducgiangtran/switchboard/pkg/slogx"
)

type SessionsHandler struct {
	SessionService *service.SessionService
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *SessionsHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.SessionService.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Error("login failed", "username", req.Username, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	deviceID := httpx.DeviceIDFromContext(ctx)
	log.Info("user logged in", "user_id", user.ID, "device_id", deviceID)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toProfileResponse(user))
}

func (h *SessionsHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := r.PathValue("userID")

	if err := h.SessionService.Logout(ctx, userID); err != nil {
		log.Error("logout failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Info("user logged out", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}
