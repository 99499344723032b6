package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ducgiangtran/switchboard/pkg/intertoken"
	"github.com/ducgiangtran/switchboard/pkg/slogx"
)

// HeaderDeviceID is required on device-bound flows; the guard fails closed
// when it is absent.
const HeaderDeviceID = "device-id"

// InternalAuth verifies the internal bearer token on inbound service calls
// and attaches the claims plus the x-request-source identity to the request
// context. The response distinguishes expiry from a bad signature so the
// calling relay can report the real cause.
func InternalAuth(v *intertoken.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.Verify(raw)
			if err != nil {
				switch {
				case errors.Is(err, intertoken.ErrExpired):
					WriteError(w, http.StatusUnauthorized, "internal token expired")
				case errors.Is(err, intertoken.ErrInvalidSignature):
					WriteError(w, http.StatusUnauthorized, "internal token signature invalid")
				default:
					WriteError(w, http.StatusUnauthorized, "internal token malformed")
				}
				log.Warn("internal token verify failed", "err", err)
				return
			}

			ctx = context.WithValue(ctx, CtxKeyClaims, claims)
			ctx = context.WithValue(ctx, CtxKeyRequestSource, r.Header.Get("x-request-source"))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireDeviceID enforces device binding: the device-id header must be
// present (the token context's deviceId is accepted as a fallback for
// calls relayed on a user's behalf). The id is attached to the context for
// downstream handlers.
func RequireDeviceID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			deviceID := r.Header.Get(HeaderDeviceID)
			if deviceID == "" {
				if claims, ok := ClaimsFromContext(ctx); ok {
					deviceID = claims.Context["deviceId"]
				}
			}
			if deviceID == "" {
				WriteError(w, http.StatusUnauthorized, "device id is required")
				return
			}

			ctx = context.WithValue(ctx, CtxKeyDeviceID, deviceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
