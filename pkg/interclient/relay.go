package interclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ducgiangtran/switchboard/pkg/idx"
	"github.com/ducgiangtran/switchboard/pkg/intertoken"
)

// HeaderRequestSource carries the caller identity on every outbound call,
// alongside the bearer token that proves it.
const HeaderRequestSource = "x-request-source"

// Request describes one outbound inter-service call.
type Request struct {
	Method  string
	BaseURL string
	Path    string

	// Body is JSON-encoded when non-nil.
	Body any

	// Context is the flat per-call context (user id, username, roles,
	// device id) embedded in the minted token. Never shared across calls.
	Context map[string]string

	// RequestID is the correlation id; generated when empty.
	RequestID string
}

// Relay performs outbound calls on behalf of one service. Every call goes
// through the same path: resolve a pooled client, mint a fresh internal
// token scoped to the call's context, execute, and either decode the 2xx
// body or normalize the failure into an InterServiceError.
type Relay struct {
	pool     *Pool
	issuer   *intertoken.Issuer
	identity string
	logger   *slog.Logger
}

// NewRelay wires a relay for the given caller identity ("gateway", ...).
func NewRelay(pool *Pool, issuer *intertoken.Issuer, identity string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		pool:     pool,
		issuer:   issuer,
		identity: identity,
		logger:   logger.With("component", "interclient"),
	}
}

// Do executes one call. On success it returns the raw response body (empty
// for 204s); on any failure it returns a *InterServiceError and nothing
// else. Raw transport errors never leak to callers.
func (r *Relay) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	reqID := req.RequestID
	if reqID == "" {
		reqID = idx.New().String()
	}
	service := serviceName(req.BaseURL)
	log := r.logger.With("target", service, "method", req.Method, "path", req.Path, "req_id", reqID)

	client := r.pool.GetOrCreate(req.BaseURL, r.identity)

	token, err := r.issuer.Mint(r.identity, req.Context)
	if err != nil {
		ise := r.normalize(service, req, reqID, 0, "", err)
		log.Error("internal token mint failed", "err", err)
		return nil, ise
	}

	var bodyReader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, r.normalize(service, req, reqID, 0, "", fmt.Errorf("encode request body: %w", err))
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, client.BaseURL+req.Path, bodyReader)
	if err != nil {
		return nil, r.normalize(service, req, reqID, 0, "", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set(HeaderRequestSource, r.identity)
	httpReq.Header.Set("X-Request-ID", reqID)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.HTTPClient.Do(httpReq)
	if err != nil {
		ise := r.normalize(service, req, reqID, 0, "", err)
		log.Error("inter-service call failed", "status", ise.StatusCode, "err", ise.Message,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, ise
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		ise := r.normalize(service, req, reqID, 0, "", err)
		log.Error("inter-service response read failed", "err", err)
		return nil, ise
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ise := r.normalize(service, req, reqID, resp.StatusCode, downstreamMessage(respBody), nil)
		log.Error("inter-service call failed", "status", ise.StatusCode, "message", ise.Message,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, ise
	}

	log.Info("inter-service call completed", "status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())
	return respBody, nil
}

// Get issues a GET through the relay.
func (r *Relay) Get(ctx context.Context, baseURL, path string, callCtx map[string]string) (json.RawMessage, error) {
	return r.Do(ctx, Request{Method: http.MethodGet, BaseURL: baseURL, Path: path, Context: callCtx})
}

// Post issues a POST with a JSON body through the relay.
func (r *Relay) Post(ctx context.Context, baseURL, path string, body any, callCtx map[string]string) (json.RawMessage, error) {
	return r.Do(ctx, Request{Method: http.MethodPost, BaseURL: baseURL, Path: path, Body: body, Context: callCtx})
}

// Put issues a PUT with a JSON body through the relay.
func (r *Relay) Put(ctx context.Context, baseURL, path string, body any, callCtx map[string]string) (json.RawMessage, error) {
	return r.Do(ctx, Request{Method: http.MethodPut, BaseURL: baseURL, Path: path, Body: body, Context: callCtx})
}

// Delete issues a DELETE through the relay.
func (r *Relay) Delete(ctx context.Context, baseURL, path string, callCtx map[string]string) (json.RawMessage, error) {
	return r.Do(ctx, Request{Method: http.MethodDelete, BaseURL: baseURL, Path: path, Context: callCtx})
}

// normalize folds every failure mode into the one error shape. When the
// downstream responded, its status and message win; a timeout maps to 504;
// anything else is a 500-equivalent with the transport error text.
func (r *Relay) normalize(service string, req Request, reqID string, status int, message string, cause error) *InterServiceError {
	switch {
	case status != 0:
		if message == "" {
			message = http.StatusText(status)
		}
	case isTimeout(cause):
		status = http.StatusGatewayTimeout
		message = "inter-service call timed out"
	default:
		status = http.StatusInternalServerError
		message = "inter-service communication failed"
		if cause != nil {
			message = cause.Error()
		}
	}

	return &InterServiceError{
		Service:    service,
		Path:       req.Path,
		Method:     req.Method,
		StatusCode: status,
		Message:    message,
		RequestID:  reqID,
		Timestamp:  time.Now().UTC(),
		cause:      cause,
	}
}

// downstreamMessage pulls the human-readable message out of an error body.
// Backend services respond with {"message": "..."}; fall back to the raw
// body when it is short enough to be useful.
func downstreamMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" && len(trimmed) <= 200 {
		return trimmed
	}
	return ""
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return true
	}
	return false
}

// serviceName reduces a base URL to a short label for logs and errors.
func serviceName(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}
