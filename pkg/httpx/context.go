package httpx

import (
	"context"

	"github.com/ducgiangtran/switchboard/pkg/intertoken"
)

type ctxKey string

const (
	CtxKeyClaims        ctxKey = "internal_claims"
	CtxKeyRequestSource ctxKey = "request_source"
	CtxKeyDeviceID      ctxKey = "device_id"
)

// ClaimsFromContext returns the verified internal token claims attached by
// InternalAuth, or false when the request did not pass through it.
func ClaimsFromContext(ctx context.Context) (intertoken.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(intertoken.Claims)
	return c, ok
}

// RequestSourceFromContext returns the calling service identity.
func RequestSourceFromContext(ctx context.Context) string {
	s, _ := ctx.Value(CtxKeyRequestSource).(string)
	return s
}

// DeviceIDFromContext returns the device id bound by RequireDeviceID.
func DeviceIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(CtxKeyDeviceID).(string)
	return s
}
