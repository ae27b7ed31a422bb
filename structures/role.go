package structures

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/tidwall/gjson"
)

type RoleData struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Hoist       bool   `json:"hoist"`
	Position    int    `json:"position"`
	Permissions string `json:"permissions"`
	Managed     bool   `json:"managed"`
	Mentionable bool   `json:"mentionable"`
}

type Role struct {
	mu    sync.RWMutex
	data  RoleData
	guild *Guild
}

// NewRole is the collection factory for roles. extra is the owning *Guild, which may be nil.
func NewRole(data []byte, extra any) (*Role, error) {
	parsed := gjson.ParseBytes(data)
	id, err := idAt(parsed, "id")
	if err != nil {
		return nil, err
	}

	guild, _ := extra.(*Guild)
	r := &Role{data: RoleData{ID: id, Permissions: "0"}, guild: guild}
	r.apply(parsed)
	return r, nil
}

func (r *Role) ID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.ID
}

func (r *Role) Update(data []byte, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apply(gjson.ParseBytes(data))
	return nil
}

func (r *Role) apply(parsed gjson.Result) {
	setString(parsed, "name", &r.data.Name)
	setInt(parsed, "color", &r.data.Color)
	setBool(parsed, "hoist", &r.data.Hoist)
	setInt(parsed, "position", &r.data.Position)
	setString(parsed, "permissions", &r.data.Permissions)
	setBool(parsed, "managed", &r.data.Managed)
	setBool(parsed, "mentionable", &r.data.Mentionable)
}

func (r *Role) Data() RoleData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data
}

// Guild returns the guild the role belongs to, if known
func (r *Role) Guild() *Guild {
	return r.guild
}

// Permissions decodes the permission bitfield. Malformed values count as no permissions.
func (r *Role) Permissions() Permissions {
	value, err := strconv.ParseUint(r.Data().Permissions, 10, 64)
	if err != nil {
		return 0
	}
	return Permissions(value)
}

func (r *Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Data())
}
