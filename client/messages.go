package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/FrenchMajesty/yuko/rest"
	"github.com/FrenchMajesty/yuko/structures"
	"github.com/FrenchMajesty/yuko/utils/errs"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	MentionUsers    = "users"
	MentionRoles    = "roles"
	MentionEveryone = "everyone"
)

// AllowedMentions controls which mentions in a message actually ping
type AllowedMentions struct {
	Parse       []string `json:"parse"`
	Users       []string `json:"users,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	RepliedUser bool     `json:"replied_user"`
}

// normalized encodes an empty parse list as [] so nothing pings, rather than null
func (a AllowedMentions) normalized() AllowedMentions {
	if a.Parse == nil {
		a.Parse = []string{}
	}
	return a
}

type MessageReference struct {
	MessageID       string `json:"message_id"`
	ChannelID       string `json:"channel_id,omitempty"`
	FailIfNotExists *bool  `json:"fail_if_not_exists,omitempty"`
}

// MessageCreate is the body of CreateMessage. Files switch the request to multipart.
type MessageCreate struct {
	Content          string            `json:"content,omitempty"`
	TTS              bool              `json:"tts,omitempty"`
	Embeds           []json.RawMessage `json:"embeds,omitempty"`
	AllowedMentions  *AllowedMentions  `json:"allowed_mentions,omitempty"`
	MessageReference *MessageReference `json:"message_reference,omitempty"`
	Files            []rest.File       `json:"-"`
}

// MessageEdit is the body of EditMessage. Nil fields are left unchanged.
type MessageEdit struct {
	Content         *string           `json:"content,omitempty"`
	Embeds          []json.RawMessage `json:"embeds,omitempty"`
	AllowedMentions *AllowedMentions  `json:"allowed_mentions,omitempty"`
}

func (c *Client) CreateMessage(ctx context.Context, channelID string, message MessageCreate) (*structures.Message, error) {
	if err := checkIDs(channelID); err != nil {
		return nil, err
	}
	if message.Content == "" && len(message.Embeds) == 0 && len(message.Files) == 0 {
		return nil, fmt.Errorf("message needs content, embeds or files: %w", errs.ErrInvalidArgument)
	}

	body, err := c.withAllowedMentions(message)
	if err != nil {
		return nil, err
	}

	var payload any = body
	contentType := rest.ContentTypeJSON
	if len(message.Files) > 0 {
		payload = rest.Multipart{JSON: body, Files: message.Files}
		contentType = rest.ContentTypeMultipart
	}

	data, err := c.request(ctx, http.MethodPost, "/channels/"+channelID+"/messages", payload, contentType)
	if err != nil {
		return nil, err
	}
	return c.State.AddMessage(data)
}

// EditMessage updates the message in place. A cached instance keeps its identity.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID string, edit MessageEdit) (*structures.Message, error) {
	if err := checkIDs(channelID, messageID); err != nil {
		return nil, err
	}

	body, err := c.withAllowedMentions(edit)
	if err != nil {
		return nil, err
	}

	data, err := c.request(ctx, http.MethodPatch, "/channels/"+channelID+"/messages/"+messageID, body, rest.ContentTypeJSON)
	if err != nil {
		return nil, err
	}
	return c.State.AddMessage(data)
}

// DeleteMessage deletes a message and drops it from the cache. reason ends up in the audit log.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID, reason string) error {
	if err := checkIDs(channelID, messageID); err != nil {
		return err
	}

	var opts []rest.RequestOption
	if reason != "" {
		opts = append(opts, rest.WithReason(reason))
	}
	if _, err := c.request(ctx, http.MethodDelete, "/channels/"+channelID+"/messages/"+messageID, nil, rest.ContentTypeJSON, opts...); err != nil {
		return err
	}

	c.State.RemoveMessage(messageID)
	return nil
}

// withAllowedMentions encodes payload and adds the default allowed_mentions when it has none
func (c *Client) withAllowedMentions(payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %v: %w", err, errs.ErrInvalidArgument)
	}
	if gjson.GetBytes(body, "allowed_mentions").Exists() {
		return body, nil
	}

	body, err = sjson.SetRawBytes(body, "allowed_mentions", c.allowedMentions)
	if err != nil {
		return nil, fmt.Errorf("failed to set allowed mentions: %w", err)
	}
	return body, nil
}
