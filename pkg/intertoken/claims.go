package intertoken

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the contents of an internal service-to-service token. The
// wire format is flat: requestFrom plus every context key sits at the top
// level of the JSON object alongside the registered iat/exp/jti claims.
//
//	{"requestFrom":"gateway","userId":"42","iat":...,"exp":...,"jti":"..."}
//
// Context keys are ad hoc (user id, username, roles, device id); none are
// required and any subset may be present.
type Claims struct {
	RequestFrom string
	Context     map[string]string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	ID          string // jti
}

// reserved names can never be carried as context keys because they would
// collide with the registered or custom top-level claims.
var reserved = map[string]struct{}{
	"requestFrom": {},
	"iss":         {},
	"sub":         {},
	"aud":         {},
	"iat":         {},
	"exp":         {},
	"nbf":         {},
	"jti":         {},
}

// MarshalJSON flattens the context map into the top-level claim object.
func (c Claims) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(c.Context)+4)
	for k, v := range c.Context {
		if _, bad := reserved[k]; bad {
			continue
		}
		m[k] = v
	}
	m["requestFrom"] = c.RequestFrom
	m["iat"] = c.IssuedAt.Unix()
	m["exp"] = c.ExpiresAt.Unix()
	if c.ID != "" {
		m["jti"] = c.ID
	}
	return json.Marshal(m)
}

// UnmarshalJSON reverses MarshalJSON: registered claims are lifted into
// their fields and every remaining string value becomes a context entry.
func (c *Claims) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	if v, ok := m["requestFrom"].(string); ok {
		c.RequestFrom = v
	}
	if v, ok := m["iat"].(float64); ok {
		c.IssuedAt = time.Unix(int64(v), 0).UTC()
	}
	if v, ok := m["exp"].(float64); ok {
		c.ExpiresAt = time.Unix(int64(v), 0).UTC()
	}
	if v, ok := m["jti"].(string); ok {
		c.ID = v
	}

	for k, v := range m {
		if _, skip := reserved[k]; skip {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if c.Context == nil {
			c.Context = make(map[string]string)
		}
		c.Context[k] = s
	}
	return nil
}

/* jwt.Claims implementation so golang-jwt can validate exp/iat for us. */

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.ExpiresAt.IsZero() {
		return nil, nil
	}
	return jwt.NewNumericDate(c.ExpiresAt), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	if c.IssuedAt.IsZero() {
		return nil, nil
	}
	return jwt.NewNumericDate(c.IssuedAt), nil
}

func (c Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c Claims) GetIssuer() (string, error)              { return "", nil }
func (c Claims) GetSubject() (string, error)             { return "", nil }
func (c Claims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }
