package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/overlay-relay/internal/config"
	"github.com/overlay-relay/internal/domain"
)

// maxBodySize caps how much of an upstream response is read
const maxBodySize = 1 << 20

// Result is one row of the upstream leaderboard payload
type Result struct {
	Rank           *int     `json:"rank"`
	PlayerID       string   `json:"player_id"`
	PlayerFullName string   `json:"player_full_name"`
	Country        string   `json:"country"`
	Score          *float64 `json:"score"`
	RankType       string   `json:"rank_type"`
}

// Response is the upstream search payload
type Response struct {
	Count   int      `json:"count"`
	Results []Result `json:"results"`
}

// Client queries the external ranked leaderboard
type Client struct {
	baseURL  string
	rankType string
	client   *http.Client
	headers  map[string]string
}

// NewClient creates a leaderboard client from configuration
func NewClient(cfg *config.LeaderboardConfig) *Client {
	c := &Client{
		baseURL:  cfg.BaseURL,
		rankType: cfg.RankType,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		headers: make(map[string]string),
	}

	// The upstream rejects requests that do not look like they come from its own page
	c.SetHeader("Accept", "application/json, text/plain, */*")
	if cfg.UserAgent != "" {
		c.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.AcceptLanguage != "" {
		c.SetHeader("Accept-Language", cfg.AcceptLanguage)
	}
	if cfg.Referer != "" {
		c.SetHeader("Referer", cfg.Referer)
	}
	if cfg.Origin != "" {
		c.SetHeader("Origin", cfg.Origin)
	}
	return c
}

// SetHeader sets a header sent with every upstream request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Search looks up a single player by id within the configured rank type.
//
// Errors are classified: domain.ErrUpstreamUnreachable for transport failures,
// *domain.UpstreamStatusError for non-2xx answers, domain.ErrUpstreamFormat for
// unparsable bodies and domain.ErrPlayerNotFound for an empty result set.
func (c *Client) Search(ctx context.Context, playerID string) (*domain.PlayerRecord, error) {
	req, err := c.newSearchRequest(ctx, playerID)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &domain.UpstreamStatusError{StatusCode: resp.StatusCode}
	}

	var payload Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamFormat, err)
	}

	if len(payload.Results) == 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrPlayerNotFound, playerID)
	}

	// Filtered by id and rank type, so the first row is the match
	return toPlayerRecord(playerID, payload.Results[0]), nil
}

func (c *Client) newSearchRequest(ctx context.Context, playerID string) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing leaderboard url: %w", err)
	}
	q := u.Query()
	q.Set("rank_type", c.rankType)
	q.Set("search", playerID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

func toPlayerRecord(playerID string, r Result) *domain.PlayerRecord {
	return &domain.PlayerRecord{
		ID:          playerID,
		Name:        r.PlayerFullName,
		Rating:      r.Score,
		Rank:        r.Rank,
		CountryCode: r.Country,
	}
}
