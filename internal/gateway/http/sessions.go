package http

import (
	"net/http"

	"github.com/ducgiangtran/switchboard/pkg/httpx"
	"github.com/ducgiangtran/switchboard/pkg/interclient"
)

// SessionsProxy forwards login/logout to the user service. These routes
// are device bound on the backend, so the device id from the inbound
// header travels in the minted token's context.
type SessionsProxy struct {
	Relay          *interclient.Relay
	UserServiceURL string
}

func (h *SessionsProxy) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(httpx.HeaderDeviceID) == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "device id is required")
		return
	}

	body, err := readBody(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Relay.Post(r.Context(), h.UserServiceURL, "/v1/sessions", body, callContext(r, nil))
	writeRelayResult(w, r, res, err)
}

func (h *SessionsProxy) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	res, err := h.Relay.Delete(r.Context(), h.UserServiceURL, "/v1/sessions/"+userID,
		callContext(r, map[string]string{"userId": userID}))
	writeRelayResult(w, r, res, err)
}
