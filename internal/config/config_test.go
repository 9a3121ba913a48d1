package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	var (
		addr    = "localhost:3001"
		backend = "http://localhost:8080"
		secret  = "internal-secret"
		key     = "c29tZV9zZWNyZXQ="
		orig    = []string{"http://localhost:3000"}
	)

	tcases := []struct {
		name    string
		addr    string
		backend string
		secret  string
		key     string
		orig    []string
		err     bool
	}{
		{
			name:    "valid config",
			addr:    addr,
			backend: backend,
			secret:  secret,
			key:     key,
			orig:    orig,
			err:     false,
		},
		{
			name:    "empty address",
			addr:    "",
			backend: backend,
			secret:  secret,
			key:     key,
			orig:    orig,
			err:     true,
		},
		{
			name:    "empty backend URL",
			addr:    addr,
			backend: "",
			secret:  secret,
			key:     key,
			orig:    orig,
			err:     true,
		},
		{
			name:    "invalid backend URL",
			addr:    addr,
			backend: "://not-a-url",
			secret:  secret,
			key:     key,
			orig:    orig,
			err:     true,
		},
		{
			name:    "empty internal secret",
			addr:    addr,
			backend: backend,
			secret:  "",
			key:     key,
			orig:    orig,
			err:     true,
		},
		{
			name:    "empty signing key",
			addr:    addr,
			backend: backend,
			secret:  secret,
			key:     "",
			orig:    orig,
			err:     true,
		},
		{
			name:    "invalid base64 signing key",
			addr:    addr,
			backend: backend,
			secret:  secret,
			key:     "not_base64!",
			orig:    orig,
			err:     true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := NewConfig(tc.addr, tc.backend, tc.secret, tc.key, tc.orig)
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			assert.NoError(t, err, "expected no error for config: %s", tc.name)

			assert.Equal(t, tc.addr, config.ServerAddr, "expected server address to match")
			assert.Equal(t, tc.backend, config.BackendBaseURL, "expected backend base URL to match")
			assert.Equal(t, tc.secret, config.InternalSecret, "expected internal secret to match")
			assert.Equal(t, tc.orig, config.AllowedOrigins, "expected allowed origins to match")
			assert.Equal(t, []byte("some_secret"), config.SigningKey, "expected signing key to be decoded")
			assert.Equal(t, DefaultIdleThreshold, config.IdleThreshold, "expected default idle threshold")
			assert.Equal(t, DefaultSweepInterval, config.SweepInterval, "expected default sweep interval")
		})
	}
}

func Test_decodeSigningSecret(t *testing.T) {
	tcases := []struct {
		name         string
		base64Secret string
		expectedKey  []byte
		expectError  bool
	}{
		{
			name:         "valid base64 secret",
			base64Secret: "c29tZV9zZWNyZXQ=",
			expectedKey:  []byte("some_secret"),
			expectError:  false,
		},
		{
			name:         "invalid base64 secret",
			base64Secret: "invalid_base64",
			expectedKey:  nil,
			expectError:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := decodeSigningSecret(tc.base64Secret)
			if tc.expectError {
				assert.Error(t, err, "expected error for base64 secret: %s", tc.base64Secret)
			} else {
				assert.NoError(t, err, "expected no error for base64 secret: %s", tc.base64Secret)
				assert.Equal(t, tc.expectedKey, key, "expected decoded key to match")
			}
		})
	}
}
