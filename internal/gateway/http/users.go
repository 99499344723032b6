package http

import (
	"net/http"

	"github.com/ducgiangtran/switchboard/pkg/httpx"
	"github.com/ducgiangtran/switchboard/pkg/interclient"
)

// UsersProxy forwards profile routes to the user service.
type UsersProxy struct {
	Relay          *interclient.Relay
	UserServiceURL string
}

func (h *UsersProxy) HandleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Relay.Post(r.Context(), h.UserServiceURL, "/v1/users", body, callContext(r, nil))
	writeRelayResult(w, r, res, err)
}

func (h *UsersProxy) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	res, err := h.Relay.Get(r.Context(), h.UserServiceURL, "/v1/users/"+userID,
		callContext(r, map[string]string{"userId": userID}))
	writeRelayResult(w, r, res, err)
}

func (h *UsersProxy) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	body, err := readBody(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Relay.Put(r.Context(), h.UserServiceURL, "/v1/users/"+userID, body,
		callContext(r, map[string]string{"userId": userID}))
	writeRelayResult(w, r, res, err)
}
