package structures

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/FrenchMajesty/yuko/collection"
	"github.com/FrenchMajesty/yuko/utils/errs"
	"github.com/tidwall/gjson"
)

type GuildData struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	OwnerID     string `json:"owner_id"`
	MemberCount int    `json:"member_count"`
	Unavailable bool   `json:"unavailable"`
}

// Guild owns the members, channels and roles it was seen with
type Guild struct {
	mu    sync.RWMutex
	data  GuildData
	state *State

	Members  *collection.Collection[*Member]
	Channels *collection.Collection[*Channel]
	Roles    *collection.Collection[*Role]
}

// NewGuild is the collection factory for guilds. extra must be the *State the guild lives in.
func NewGuild(data []byte, extra any) (*Guild, error) {
	state, ok := extra.(*State)
	if !ok || state == nil {
		return nil, fmt.Errorf("guild needs a state: %w", errs.ErrInvalidArgument)
	}

	parsed := gjson.ParseBytes(data)
	id, err := idAt(parsed, "id")
	if err != nil {
		return nil, err
	}

	g := &Guild{
		data:     GuildData{ID: id},
		state:    state,
		Members:  collection.New("Member", NewMember, collection.WithIDPath(MemberIDPath), collection.WithLimit(state.limits.Members)),
		Channels: collection.New("Channel", NewChannel, collection.WithLimit(state.limits.Channels)),
		Roles:    collection.New("Role", NewRole, collection.WithLimit(state.limits.Roles)),
	}
	if err := g.apply(parsed); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Guild) ID() string {
	return g.data.ID
}

func (g *Guild) Update(data []byte, _ any) error {
	return g.apply(gjson.ParseBytes(data))
}

// apply sets scalar fields under the guild lock, then feeds nested arrays to the child
// collections without it: member permissions read the guild while those collections are locked.
func (g *Guild) apply(parsed gjson.Result) error {
	g.mu.Lock()
	setString(parsed, "name", &g.data.Name)
	setString(parsed, "icon", &g.data.Icon)
	setString(parsed, "owner_id", &g.data.OwnerID)
	setInt(parsed, "member_count", &g.data.MemberCount)
	setBool(parsed, "unavailable", &g.data.Unavailable)
	g.mu.Unlock()

	for _, role := range parsed.Get("roles").Array() {
		if _, err := g.Roles.Update([]byte(role.Raw), g, false); err != nil {
			return fmt.Errorf("guild %s role: %w", g.data.ID, err)
		}
	}

	for _, member := range parsed.Get("members").Array() {
		if _, err := g.Members.Update([]byte(member.Raw), g, false); err != nil {
			return fmt.Errorf("guild %s member: %w", g.data.ID, err)
		}
	}

	for _, raw := range parsed.Get("channels").Array() {
		if _, err := g.AddChannel([]byte(raw.Raw)); err != nil {
			return err
		}
	}
	return nil
}

// AddChannel caches a channel under this guild and in the state's channel index
func (g *Guild) AddChannel(data []byte) (*Channel, error) {
	channel, err := g.state.Channels.Update(data, g.state, false)
	if err != nil {
		return nil, fmt.Errorf("guild %s channel: %w", g.data.ID, err)
	}
	// guild payloads omit guild_id on nested channels
	if channel.Data().GuildID == "" {
		if err := channel.Update([]byte(`{"guild_id":"`+g.data.ID+`"}`), nil); err != nil {
			return nil, fmt.Errorf("guild %s channel: %w", g.data.ID, err)
		}
	}
	if _, err := g.Channels.AddEntity(channel, true); err != nil {
		return nil, err
	}
	return channel, nil
}

// AddMember caches a member payload, as returned by the members endpoints
func (g *Guild) AddMember(data []byte) (*Member, error) {
	return g.Members.Update(data, g, false)
}

func (g *Guild) OwnerID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.data.OwnerID
}

func (g *Guild) Name() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.data.Name
}

func (g *Guild) CreatedAt() time.Time {
	return createdAt(g.data.ID)
}

func (g *Guild) Data() GuildData {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.data
}

func (g *Guild) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Data())
}
