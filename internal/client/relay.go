package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/overlay-relay/internal/domain"
)

// APIError is a well-formed {success:false} answer from the relay
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// RelayClient talks to the overlay relay HTTP surface
type RelayClient struct {
	baseURL string
	client  *http.Client
}

// NewRelayClient creates a client for the server at baseURL
func NewRelayClient(baseURL string, timeout time.Duration) *RelayClient {
	return &RelayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// ReadState fetches the published state of slot
func (c *RelayClient) ReadState(ctx context.Context, slot domain.Slot) (domain.OverlayState, error) {
	data, err := c.do(ctx, http.MethodGet, "/overlay-state", url.Values{"slot": {string(slot)}}, nil)
	if err != nil {
		return domain.OverlayState{}, err
	}
	return domain.DecodeOverlayState(data), nil
}

// WriteState publishes state for slot and returns what the relay stored
func (c *RelayClient) WriteState(ctx context.Context, slot domain.Slot, state domain.OverlayState) (domain.OverlayState, error) {
	body, err := json.Marshal(state)
	if err != nil {
		return domain.OverlayState{}, fmt.Errorf("encoding overlay state: %w", err)
	}
	data, err := c.do(ctx, http.MethodPost, "/overlay-state", url.Values{"slot": {string(slot)}}, body)
	if err != nil {
		return domain.OverlayState{}, err
	}
	return domain.DecodeOverlayState(data), nil
}

// LookupPlayer resolves a player id through the relay's lookup endpoint
func (c *RelayClient) LookupPlayer(ctx context.Context, id string) (*domain.PlayerRecord, error) {
	data, err := c.do(ctx, http.MethodGet, "/player-lookup", url.Values{"id": {id}}, nil)
	if err != nil {
		return nil, err
	}
	var player domain.PlayerRecord
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, fmt.Errorf("%w: decoding player: %v", domain.ErrServerUnreachable, err)
	}
	return &player, nil
}

// do performs a request and unwraps the envelope. Transport failures and
// unreadable answers wrap domain.ErrServerUnreachable; {success:false}
// answers come back as *APIError.
func (c *RelayClient) do(ctx context.Context, method, path string, query url.Values, body []byte) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServerUnreachable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: status %d: %v", domain.ErrServerUnreachable, resp.StatusCode, err)
	}
	if !env.Success {
		message := env.Error
		if message == "" {
			message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: message}
	}
	return env.Data, nil
}

// IsNetworkError reports whether err means the relay could not be reached
func IsNetworkError(err error) bool {
	return errors.Is(err, domain.ErrServerUnreachable)
}
