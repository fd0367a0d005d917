// Package groupme is a minimal client for the GroupMe v3 REST API: listing the
// groups a token can see and posting as a bot.
package groupme

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonny/chatbridge/pkg/apierror"
)

const DefaultBaseURL = "https://api.groupme.com"

// Config holds configuration for the GroupMe client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: base, httpClient: &http.Client{Timeout: timeout}}
}

// --- GroupMe API types ---

type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
	Members   []Member `json:"members"`
}

type Member struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	ImageURL string `json:"image_url"`
}

// BotPost is the body of POST /v3/bots/post.
type BotPost struct {
	BotID      string `json:"bot_id"`
	Text       string `json:"text,omitempty"`
	PictureURL string `json:"picture_url,omitempty"`
}

type envelope[T any] struct {
	Response T `json:"response"`
	Meta     struct {
		Code   int      `json:"code"`
		Errors []string `json:"errors"`
	} `json:"meta"`
}

// Groups lists the groups visible to token.
func (c *Client) Groups(ctx context.Context, token string) ([]Group, error) {
	endpoint := c.baseURL + "/v3/groups?" + url.Values{"token": {token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating groups request: %w", err)
	}

	raw, err := c.do(req, "get groups")
	if err != nil {
		return nil, err
	}

	var env envelope[[]Group]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding groups response: %w", err)
	}
	return env.Response, nil
}

// PostBotMessage posts as the bot identified by msg.BotID.
func (c *Client) PostBotMessage(ctx context.Context, token string, msg BotPost) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling bot post: %w", err)
	}

	endpoint := c.baseURL + "/v3/bots/post?" + url.Values{"token": {token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating bot post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req, "post message")
	return err
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("groupme %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("reading groupme %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apierror.FromResponse("groupme", op, resp.StatusCode, raw)
	}
	return raw, nil
}
