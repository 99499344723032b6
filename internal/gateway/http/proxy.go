package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ducgiangtran/switchboard/pkg/httpx"
	"github.com/ducgiangtran/switchboard/pkg/interclient"
	"github.com/ducgiangtran/switchboard/pkg/slogx"
)

// relayErrorResponse is the body the gateway returns when a backend call
// fails: the downstream status and message plus the correlation id so the
// failure can be traced across services.
type relayErrorResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// writeRelayResult turns the relay's (body, error) pair into the gateway
// response. The InterServiceError status passes straight through; anything
// else is a plain 500.
func writeRelayResult(w http.ResponseWriter, r *http.Request, body json.RawMessage, err error) {
	if err != nil {
		var ise *interclient.InterServiceError
		if errors.As(err, &ise) {
			httpx.WriteJSON(w, ise.StatusCode, relayErrorResponse{
				Message:   ise.Message,
				RequestID: ise.RequestID,
			})
			return
		}
		slogx.FromContext(r.Context()).Error("relay call failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if len(body) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// callContext builds the flat token context for a relayed call from the
// inbound request. Only what the backend needs crosses the boundary.
func callContext(r *http.Request, extra map[string]string) map[string]string {
	callCtx := make(map[string]string, len(extra)+1)
	if deviceID := r.Header.Get(httpx.HeaderDeviceID); deviceID != "" {
		callCtx["deviceId"] = deviceID
	}
	for k, v := range extra {
		callCtx[k] = v
	}
	return callCtx
}

// readBody decodes the inbound JSON body as-is for pass-through. The
// backend owns validation; the gateway only guards against non-JSON.
func readBody(r *http.Request) (json.RawMessage, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, errors.New("request body is not valid JSON")
	}
	return raw, nil
}
