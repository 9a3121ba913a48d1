package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"time"
)

const (
	// DefaultIdleThreshold matches the original service: users with no
	// activity for five minutes are swept from the online roster.
	DefaultIdleThreshold = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

type Config struct {
	ServerAddr     string
	BackendBaseURL string
	InternalSecret string
	SigningKey     []byte
	AllowedOrigins []string
	IdleThreshold  time.Duration
	SweepInterval  time.Duration
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, backendBaseURL, internalSecret, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if backendBaseURL == "" {
		return nil, fmt.Errorf("backend base URL cannot be empty")
	}
	if _, err := url.ParseRequestURI(backendBaseURL); err != nil {
		return nil, fmt.Errorf("parse backend base URL: %w", err)
	}
	if internalSecret == "" {
		return nil, fmt.Errorf("internal secret cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		BackendBaseURL: backendBaseURL,
		InternalSecret: internalSecret,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		IdleThreshold:  DefaultIdleThreshold,
		SweepInterval:  DefaultSweepInterval,
	}, nil
}
