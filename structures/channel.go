package structures

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

type ChannelType int

const (
	ChannelTypeGuildText     ChannelType = 0
	ChannelTypeDM            ChannelType = 1
	ChannelTypeGuildVoice    ChannelType = 2
	ChannelTypeGroupDM       ChannelType = 3
	ChannelTypeGuildCategory ChannelType = 4
	ChannelTypeGuildNews     ChannelType = 5
	ChannelTypeGuildForum    ChannelType = 15
)

type ChannelData struct {
	ID            string      `json:"id"`
	Type          ChannelType `json:"type"`
	GuildID       string      `json:"guild_id,omitempty"`
	Name          string      `json:"name,omitempty"`
	Topic         string      `json:"topic,omitempty"`
	NSFW          bool        `json:"nsfw"`
	Position      int         `json:"position"`
	ParentID      string      `json:"parent_id,omitempty"`
	LastMessageID string      `json:"last_message_id,omitempty"`
	Recipients    []string    `json:"recipient_ids,omitempty"`
}

// Channel covers every channel kind; Type tells them apart
type Channel struct {
	mu   sync.RWMutex
	data ChannelData
}

// NewChannel is the collection factory for channels. Recipient users are cached when extra
// is a *State.
func NewChannel(data []byte, extra any) (*Channel, error) {
	parsed := gjson.ParseBytes(data)
	id, err := idAt(parsed, "id")
	if err != nil {
		return nil, err
	}

	c := &Channel{data: ChannelData{ID: id}}
	c.apply(parsed, extra)
	return c, nil
}

func (c *Channel) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.ID
}

func (c *Channel) Update(data []byte, extra any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apply(gjson.ParseBytes(data), extra)
	return nil
}

func (c *Channel) apply(parsed gjson.Result, extra any) {
	if value := parsed.Get("type"); value.Exists() {
		c.data.Type = ChannelType(value.Int())
	}
	setString(parsed, "guild_id", &c.data.GuildID)
	setString(parsed, "name", &c.data.Name)
	setString(parsed, "topic", &c.data.Topic)
	setBool(parsed, "nsfw", &c.data.NSFW)
	setInt(parsed, "position", &c.data.Position)
	setString(parsed, "parent_id", &c.data.ParentID)
	setString(parsed, "last_message_id", &c.data.LastMessageID)

	recipients := parsed.Get("recipients")
	if !recipients.Exists() {
		return
	}
	state, _ := extra.(*State)
	ids := []string{}
	for _, recipient := range recipients.Array() {
		ids = append(ids, recipient.Get("id").String())
		if state != nil {
			// uncacheable recipients still keep their id
			_, _ = state.Users.Update([]byte(recipient.Raw), nil, false)
		}
	}
	c.data.Recipients = ids
}

func (c *Channel) Data() ChannelData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data := c.data
	data.Recipients = append([]string(nil), c.data.Recipients...)
	return data
}

func (c *Channel) Type() ChannelType {
	return c.Data().Type
}

func (c *Channel) IsDM() bool {
	t := c.Type()
	return t == ChannelTypeDM || t == ChannelTypeGroupDM
}

func (c *Channel) CreatedAt() time.Time {
	return createdAt(c.ID())
}

func (c *Channel) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Data())
}
