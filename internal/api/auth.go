package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/craftmall/communication/internal/types"
	"github.com/golang-jwt/jwt"
)

const (
	tokenQueryParam = "token"
	tokenCookieKey  = "token"

	userIdClaim = "user-id"
	rolesClaim  = "roles"
)

// TokenVerifier verifies handshake identity claims. The gateway never
// trusts raw handshake data: a connection only completes the joined
// transition with claims that passed verification.
type TokenVerifier interface {
	Verify(tokenString string) (types.Claims, error)
}

// HmacVerifier verifies HS256 tokens minted by the identity service.
type HmacVerifier struct {
	key []byte
}

func NewHmacVerifier(key []byte) *HmacVerifier {
	return &HmacVerifier{key: key}
}

func (v *HmacVerifier) Verify(tokenString string) (types.Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return types.Claims{}, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return types.Claims{}, fmt.Errorf("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return types.Claims{}, fmt.Errorf("invalid token claims")
	}

	userId, ok := mapClaims[userIdClaim].(float64)
	if !ok {
		return types.Claims{}, fmt.Errorf("invalid user id claim")
	}

	roles, err := parseRoles(mapClaims[rolesClaim])
	if err != nil {
		return types.Claims{}, err
	}

	return types.Claims{
		UserId: int64(userId),
		Roles:  roles,
	}, nil
}

// parseRoles accepts both claim encodings in the wild: an array of role
// strings or a single comma-joined string.
func parseRoles(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return strings.Split(v, ","), nil
	case []any:
		roles := make([]string, 0, len(v))
		for _, r := range v {
			role, ok := r.(string)
			if !ok {
				return nil, fmt.Errorf("invalid role claim entry: %v", r)
			}
			roles = append(roles, role)
		}
		return roles, nil
	default:
		return nil, fmt.Errorf("invalid roles claim: %v", raw)
	}
}

// extractToken pulls the handshake token from the query string or, failing
// that, the session cookie. Empty means an anonymous visitor.
func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get(tokenQueryParam); token != "" {
		return token
	}

	if cookie, err := r.Cookie(tokenCookieKey); err == nil {
		return cookie.Value
	}

	return ""
}
