package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/craftmall/communication/internal/types"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
)

var testSigningKey = []byte("test-signing-key")

func mintToken(t *testing.T, key []byte, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}

func TestHmacVerifier_Verify(t *testing.T) {
	v := NewHmacVerifier(testSigningKey)

	t.Run("valid token with role array", func(t *testing.T) {
		token := mintToken(t, testSigningKey, jwt.MapClaims{
			"user-id": 7,
			"roles":   []string{"ROLE_USER", types.RoleAdmin},
		})

		claims, err := v.Verify(token)
		assert.NoError(t, err, "expected valid token to verify")
		assert.Equal(t, int64(7), claims.UserId, "expected user id to match")
		assert.Equal(t, []string{"ROLE_USER", types.RoleAdmin}, claims.Roles, "expected roles to match")
		assert.True(t, claims.IsAdmin(), "expected admin role to be recognized")
	})

	t.Run("valid token with comma-joined roles", func(t *testing.T) {
		token := mintToken(t, testSigningKey, jwt.MapClaims{
			"user-id": 3,
			"roles":   "ROLE_USER,ROLE_ADMIN",
		})

		claims, err := v.Verify(token)
		assert.NoError(t, err, "expected valid token to verify")
		assert.Equal(t, int64(3), claims.UserId, "expected user id to match")
		assert.Equal(t, []string{"ROLE_USER", "ROLE_ADMIN"}, claims.Roles, "expected roles to be split")
	})

	t.Run("token without roles", func(t *testing.T) {
		token := mintToken(t, testSigningKey, jwt.MapClaims{
			"user-id": 5,
		})

		claims, err := v.Verify(token)
		assert.NoError(t, err, "expected token without roles to verify")
		assert.Equal(t, int64(5), claims.UserId, "expected user id to match")
		assert.Empty(t, claims.Roles, "expected no roles")
		assert.False(t, claims.IsAdmin(), "expected no admin role")
	})

	t.Run("wrong signing key", func(t *testing.T) {
		token := mintToken(t, []byte("some-other-key"), jwt.MapClaims{
			"user-id": 7,
		})

		_, err := v.Verify(token)
		assert.Error(t, err, "expected token signed with a different key to fail")
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := v.Verify("not.a.token")
		assert.Error(t, err, "expected garbage token to fail")
	})

	t.Run("missing user id claim", func(t *testing.T) {
		token := mintToken(t, testSigningKey, jwt.MapClaims{
			"roles": []string{types.RoleAdmin},
		})

		_, err := v.Verify(token)
		assert.Error(t, err, "expected token without user id claim to fail")
	})
}

func Test_parseRoles(t *testing.T) {
	tcases := []struct {
		name     string
		raw      any
		expected []string
		err      bool
	}{
		{
			name:     "nil claim",
			raw:      nil,
			expected: nil,
			err:      false,
		},
		{
			name:     "empty string",
			raw:      "",
			expected: nil,
			err:      false,
		},
		{
			name:     "comma-joined string",
			raw:      "ROLE_USER,ROLE_ADMIN",
			expected: []string{"ROLE_USER", "ROLE_ADMIN"},
			err:      false,
		},
		{
			name:     "string array",
			raw:      []any{"ROLE_USER", "ROLE_ADMIN"},
			expected: []string{"ROLE_USER", "ROLE_ADMIN"},
			err:      false,
		},
		{
			name:     "array with non-string entry",
			raw:      []any{"ROLE_USER", 42},
			expected: nil,
			err:      true,
		},
		{
			name:     "unsupported type",
			raw:      42,
			expected: nil,
			err:      true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			roles, err := parseRoles(tc.raw)
			if tc.err {
				assert.Error(t, err, "expected error for roles claim: %v", tc.raw)
				return
			}
			assert.NoError(t, err, "expected no error for roles claim: %v", tc.raw)
			assert.Equal(t, tc.expected, roles, "expected parsed roles to match")
		})
	}
}

func Test_extractToken(t *testing.T) {
	t.Run("from query parameter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws/chat?token=query-token", nil)
		assert.Equal(t, "query-token", extractToken(req), "expected token from query parameter")
	})

	t.Run("from cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: "cookie-token"})
		assert.Equal(t, "cookie-token", extractToken(req), "expected token from cookie")
	})

	t.Run("query parameter wins over cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws/chat?token=query-token", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: "cookie-token"})
		assert.Equal(t, "query-token", extractToken(req), "expected query parameter to take precedence")
	})

	t.Run("no token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
		assert.Empty(t, extractToken(req), "expected empty token for anonymous request")
	})
}
