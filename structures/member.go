package structures

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/FrenchMajesty/yuko/utils/errs"
	"github.com/tidwall/gjson"
)

// MemberIDPath is where a member payload keeps its id
const MemberIDPath = "user.id"

type MemberData struct {
	User                       UserData  `json:"user"`
	Nick                       string    `json:"nick,omitempty"`
	Roles                      []string  `json:"roles"`
	JoinedAt                   time.Time `json:"joined_at"`
	Deaf                       bool      `json:"deaf"`
	Mute                       bool      `json:"mute"`
	CommunicationDisabledUntil time.Time `json:"communication_disabled_until,omitzero"`
}

// Member is a user's membership in one guild. The *User is the instance held by the
// state's user cache, so user updates show up through every member.
type Member struct {
	mu    sync.RWMutex
	id    string
	user  *User
	guild *Guild

	nick                       string
	roles                      []string
	joinedAt                   time.Time
	deaf                       bool
	mute                       bool
	communicationDisabledUntil time.Time
}

// NewMember is the collection factory for members. extra must be the owning *Guild.
func NewMember(data []byte, extra any) (*Member, error) {
	guild, ok := extra.(*Guild)
	if !ok || guild == nil {
		return nil, fmt.Errorf("member needs its guild: %w", errs.ErrInvalidArgument)
	}

	parsed := gjson.ParseBytes(data)
	id, err := idAt(parsed, MemberIDPath)
	if err != nil {
		return nil, err
	}

	user, err := guild.state.Users.Update([]byte(parsed.Get("user").Raw), nil, false)
	if err != nil {
		return nil, fmt.Errorf("member %s: %w", id, err)
	}

	m := &Member{id: id, user: user, guild: guild, roles: []string{}}
	m.apply(parsed)
	return m, nil
}

func (m *Member) ID() string {
	return m.id
}

// Update applies a partial member payload. A nested user object is forwarded to the shared user.
func (m *Member) Update(data []byte, _ any) error {
	parsed := gjson.ParseBytes(data)
	if user := parsed.Get("user"); user.IsObject() {
		if err := m.user.Update([]byte(user.Raw), nil); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.apply(parsed)
	return nil
}

func (m *Member) apply(parsed gjson.Result) {
	setString(parsed, "nick", &m.nick)
	setStrings(parsed, "roles", &m.roles)
	setTime(parsed, "joined_at", &m.joinedAt)
	setBool(parsed, "deaf", &m.deaf)
	setBool(parsed, "mute", &m.mute)
	setTime(parsed, "communication_disabled_until", &m.communicationDisabledUntil)
}

func (m *Member) User() *User {
	return m.user
}

func (m *Member) Guild() *Guild {
	return m.guild
}

// DisplayName is the nickname when set, else the user's global name or username
func (m *Member) DisplayName() string {
	m.mu.RLock()
	nick := m.nick
	m.mu.RUnlock()
	if nick != "" {
		return nick
	}

	user := m.user.Data()
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}

// TimedOut reports whether the member is communication-disabled at now
func (m *Member) TimedOut(now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return now.Before(m.communicationDisabledUntil)
}

// Permissions combines the @everyone role with every role the member holds. The guild
// owner and administrators get everything.
func (m *Member) Permissions() Permissions {
	if m.guild.OwnerID() == m.id {
		return PermissionAll
	}

	var perms Permissions
	if everyone, ok := m.guild.Roles.Get(m.guild.ID()); ok {
		perms = everyone.Permissions()
	}

	m.mu.RLock()
	roles := append([]string(nil), m.roles...)
	m.mu.RUnlock()

	for _, id := range roles {
		if role, ok := m.guild.Roles.Get(id); ok {
			perms |= role.Permissions()
		}
	}

	if perms.Has(PermissionAdministrator) {
		return PermissionAll
	}
	return perms
}

func (m *Member) Data() MemberData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MemberData{
		User:                       m.user.Data(),
		Nick:                       m.nick,
		Roles:                      append([]string{}, m.roles...),
		JoinedAt:                   m.joinedAt,
		Deaf:                       m.deaf,
		Mute:                       m.mute,
		CommunicationDisabledUntil: m.communicationDisabledUntil,
	}
}

func (m *Member) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Data())
}
