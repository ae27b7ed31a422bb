package structures

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

type MessageData struct {
	ID              string    `json:"id"`
	ChannelID       string    `json:"channel_id"`
	GuildID         string    `json:"guild_id,omitempty"`
	Author          *UserData `json:"author,omitempty"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	EditedTimestamp time.Time `json:"edited_timestamp,omitzero"`
	TTS             bool      `json:"tts"`
	Pinned          bool      `json:"pinned"`
	Type            int       `json:"type"`
	Mentions        []string  `json:"mention_ids,omitempty"`
}

type Message struct {
	mu     sync.RWMutex
	data   MessageData
	author *User
}

// NewMessage is the collection factory for messages. With a *State as extra, the author
// and mentioned users go through the user cache.
func NewMessage(data []byte, extra any) (*Message, error) {
	parsed := gjson.ParseBytes(data)
	id, err := idAt(parsed, "id")
	if err != nil {
		return nil, err
	}

	m := &Message{data: MessageData{ID: id}}
	if err := m.apply(parsed, extra); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Message) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.ID
}

func (m *Message) Update(data []byte, extra any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apply(gjson.ParseBytes(data), extra)
}

func (m *Message) apply(parsed gjson.Result, extra any) error {
	setString(parsed, "channel_id", &m.data.ChannelID)
	setString(parsed, "guild_id", &m.data.GuildID)
	setString(parsed, "content", &m.data.Content)
	setTime(parsed, "timestamp", &m.data.Timestamp)
	setTime(parsed, "edited_timestamp", &m.data.EditedTimestamp)
	setBool(parsed, "tts", &m.data.TTS)
	setBool(parsed, "pinned", &m.data.Pinned)
	setInt(parsed, "type", &m.data.Type)

	state, _ := extra.(*State)
	if author := parsed.Get("author"); author.IsObject() {
		user, err := resolveUser(state, author)
		if err != nil {
			return err
		}
		m.author = user
	}

	if mentions := parsed.Get("mentions"); mentions.Exists() {
		ids := []string{}
		for _, mention := range mentions.Array() {
			ids = append(ids, mention.Get("id").String())
			if state != nil {
				_, _ = state.Users.Update([]byte(mention.Raw), nil, false)
			}
		}
		m.data.Mentions = ids
	}
	return nil
}

func resolveUser(state *State, raw gjson.Result) (*User, error) {
	if state == nil {
		return NewUser([]byte(raw.Raw), nil)
	}
	return state.Users.Update([]byte(raw.Raw), nil, false)
}

// Author returns the shared author instance, nil for messages seen without one
func (m *Message) Author() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.author
}

func (m *Message) ChannelID() string {
	return m.Data().ChannelID
}

func (m *Message) CreatedAt() time.Time {
	return createdAt(m.ID())
}

func (m *Message) Data() MessageData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data := m.data
	data.Mentions = append([]string(nil), m.data.Mentions...)
	if m.author != nil {
		author := m.author.Data()
		data.Author = &author
	}
	return data
}

func (m *Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Data())
}
