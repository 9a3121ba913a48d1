package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/craftmall/communication/internal/types"
)

// InternalSecretHeader carries the shared secret for service-to-service
// trust with the backend-of-record. This is not end-user authentication.
const InternalSecretHeader = "X-Internal-API-Secret"

const defaultRequestTimeout = 10 * time.Second

// BackendClient talks to the durable message store exposed by the backend's
// REST API.
type BackendClient struct {
	baseURL string
	secret  string
	httpc   *http.Client
}

func NewBackendClient(baseURL, secret string) *BackendClient {
	return &BackendClient{
		baseURL: baseURL,
		secret:  secret,
		httpc:   &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (b *BackendClient) do(req *http.Request) (*http.Response, error) {
	req.Header.Set(InternalSecretHeader, b.secret)
	return b.httpc.Do(req)
}

// SaveMessage persists msg in the durable store.
func (b *BackendClient) SaveMessage(ctx context.Context, msg types.ChatMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.do(req)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("save message: unexpected status %d: %s", resp.StatusCode, respBody)
	}

	return nil
}

// History fetches the chronological message history for user.
func (b *BackendClient) History(ctx context.Context, user string) ([]types.ChatMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		b.baseURL+"/api/chat/messages/history/"+url.PathEscape(user), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := b.do(req)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get history: unexpected status %d", resp.StatusCode)
	}

	var history []types.ChatMessage
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	return history, nil
}

// Users fetches the deduplicated set of users that have chatted.
func (b *BackendClient) Users(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/chat/messages/users", nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := b.do(req)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get users: unexpected status %d", resp.StatusCode)
	}

	var users []string
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	return users, nil
}

// LastMessage fetches the most recent message involving user. A 204 from the
// backend means the user has no messages and yields (nil, nil).
func (b *BackendClient) LastMessage(ctx context.Context, user string) (*types.ChatMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		b.baseURL+"/api/chat/messages/last/"+url.PathEscape(user), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := b.do(req)
	if err != nil {
		return nil, fmt.Errorf("get last message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get last message: unexpected status %d", resp.StatusCode)
	}

	var msg types.ChatMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode last message: %w", err)
	}

	return &msg, nil
}
