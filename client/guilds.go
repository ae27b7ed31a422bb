package client

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/FrenchMajesty/yuko/rest"
	"github.com/FrenchMajesty/yuko/structures"
	"github.com/FrenchMajesty/yuko/utils/parallel"
)

// MemberEdit is the body of EditGuildMember. Nil fields are left unchanged.
type MemberEdit struct {
	Nick                       *string    `json:"nick,omitempty"`
	Roles                      []string   `json:"roles,omitempty"`
	Mute                       *bool      `json:"mute,omitempty"`
	Deaf                       *bool      `json:"deaf,omitempty"`
	ChannelID                  *string    `json:"channel_id,omitempty"`
	CommunicationDisabledUntil *time.Time `json:"communication_disabled_until,omitempty"`
}

// GetGuild fetches a guild with its roles and channels and caches it
func (c *Client) GetGuild(ctx context.Context, guildID string) (*structures.Guild, error) {
	if err := checkIDs(guildID); err != nil {
		return nil, err
	}

	data, err := c.request(ctx, http.MethodGet, "/guilds/"+guildID+"?with_counts=true", nil, rest.ContentTypeJSON)
	if err != nil {
		return nil, err
	}

	guild, err := c.State.AddGuild(data)
	if err != nil {
		return nil, err
	}

	// the guild object does not carry its channels
	channels, err := c.request(ctx, http.MethodGet, "/guilds/"+guildID+"/channels", nil, rest.ContentTypeJSON)
	if err != nil {
		return nil, err
	}
	for _, raw := range splitArray(channels) {
		if _, err := guild.AddChannel(raw); err != nil {
			c.logger.Printf("guild %s: skipping channel: %v", guildID, err)
		}
	}
	return guild, nil
}

// FetchGuilds loads several guilds concurrently. Guilds that loaded are returned even when
// others failed; the error joins every failure.
func (c *Client) FetchGuilds(ctx context.Context, guildIDs []string) (map[string]*structures.Guild, error) {
	if err := checkIDs(guildIDs...); err != nil {
		return nil, err
	}

	builder := parallel.NewBuilder().Limit(c.fetchLimit)
	for _, id := range guildIDs {
		builder.Add(id, func(ctx context.Context) (any, error) {
			return c.GetGuild(ctx, id)
		})
	}
	results := builder.Run(ctx)

	guilds := make(map[string]*structures.Guild, len(guildIDs))
	for _, id := range guildIDs {
		guild, err := parallel.Get(results, id, func(ctx context.Context) (*structures.Guild, error) {
			return c.GetGuild(ctx, id)
		})
		if err == nil {
			guilds[id] = guild
		}
	}
	return guilds, results.Err()
}

// GetGuildMember fetches one member. It is cached under its guild when the guild is cached.
func (c *Client) GetGuildMember(ctx context.Context, guildID, userID string) (*structures.Member, error) {
	if err := checkIDs(guildID, userID); err != nil {
		return nil, err
	}

	data, err := c.request(ctx, http.MethodGet, "/guilds/"+guildID+"/members/"+userID, nil, rest.ContentTypeJSON)
	if err != nil {
		return nil, err
	}
	return c.cacheMember(guildID, data)
}

// EditGuildMember modifies a member. reason ends up in the audit log.
func (c *Client) EditGuildMember(ctx context.Context, guildID, userID string, edit MemberEdit, reason string) (*structures.Member, error) {
	if err := checkIDs(guildID, userID); err != nil {
		return nil, err
	}

	var opts []rest.RequestOption
	if reason != "" {
		opts = append(opts, rest.WithReason(reason))
	}
	data, err := c.request(ctx, http.MethodPatch, "/guilds/"+guildID+"/members/"+userID, edit, rest.ContentTypeJSON, opts...)
	if err != nil {
		return nil, err
	}
	return c.cacheMember(guildID, data)
}

func (c *Client) cacheMember(guildID string, data []byte) (*structures.Member, error) {
	guild, ok := c.State.Guilds.Get(guildID)
	if !ok {
		// members only exist inside a guild: hold an uncached one
		stub, err := structures.NewGuild([]byte(`{"id":"`+guildID+`"}`), c.State)
		if err != nil {
			return nil, err
		}
		return structures.NewMember(data, stub)
	}
	return guild.AddMember(data)
}

func splitArray(data []byte) [][]byte {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := make([][]byte, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}
