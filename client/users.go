package client

import (
	"context"
	"net/http"
	"time"

	"github.com/FrenchMajesty/yuko/rest"
	"github.com/FrenchMajesty/yuko/structures"
)

// GetCurrentUser fetches the bot's own user
func (c *Client) GetCurrentUser(ctx context.Context) (*structures.User, error) {
	data, err := c.request(ctx, http.MethodGet, "/users/@me", nil, rest.ContentTypeJSON)
	if err != nil {
		return nil, err
	}
	return c.State.AddUser(data)
}

// CreateDM opens (or returns the existing) DM channel with a user
func (c *Client) CreateDM(ctx context.Context, userID string) (*structures.Channel, error) {
	if err := checkIDs(userID); err != nil {
		return nil, err
	}

	data, err := c.request(ctx, http.MethodPost, "/users/@me/channels", map[string]string{"recipient_id": userID}, rest.ContentTypeJSON)
	if err != nil {
		return nil, err
	}
	return c.State.AddChannel(data)
}

type SessionStartLimit struct {
	Total          int `json:"total"`
	Remaining      int `json:"remaining"`
	ResetAfter     int `json:"reset_after"`
	MaxConcurrency int `json:"max_concurrency"`
}

// ResetIn converts ResetAfter (milliseconds) to a duration
func (s SessionStartLimit) ResetIn() time.Duration {
	return time.Duration(s.ResetAfter) * time.Millisecond
}

type GatewayBot struct {
	URL               string            `json:"url"`
	Shards            int               `json:"shards"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

// GetGatewayBot returns the gateway URL and recommended shard count
func (c *Client) GetGatewayBot(ctx context.Context) (*GatewayBot, error) {
	route, err := rest.NewRoute(http.MethodGet, "/gateway/bot")
	if err != nil {
		return nil, err
	}

	var gateway GatewayBot
	if err := c.rest.RequestJSON(ctx, route, nil, &gateway); err != nil {
		return nil, err
	}
	return &gateway, nil
}
