package structures

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

type UserData struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Bot           bool   `json:"bot"`
	System        bool   `json:"system"`
}

type User struct {
	mu   sync.RWMutex
	data UserData
}

// NewUser is the collection factory for users
func NewUser(data []byte, _ any) (*User, error) {
	parsed := gjson.ParseBytes(data)
	id, err := idAt(parsed, "id")
	if err != nil {
		return nil, err
	}

	u := &User{data: UserData{ID: id}}
	u.apply(parsed)
	return u, nil
}

func (u *User) ID() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.data.ID
}

func (u *User) Update(data []byte, _ any) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.apply(gjson.ParseBytes(data))
	return nil
}

func (u *User) apply(parsed gjson.Result) {
	setString(parsed, "username", &u.data.Username)
	setString(parsed, "discriminator", &u.data.Discriminator)
	setString(parsed, "global_name", &u.data.GlobalName)
	setString(parsed, "avatar", &u.data.Avatar)
	setBool(parsed, "bot", &u.data.Bot)
	setBool(parsed, "system", &u.data.System)
}

// Data returns a consistent copy of the user
func (u *User) Data() UserData {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.data
}

// Tag is username#discriminator, or just the username for accounts without a discriminator
func (u *User) Tag() string {
	data := u.Data()
	if data.Discriminator == "" || data.Discriminator == "0" {
		return data.Username
	}
	return data.Username + "#" + data.Discriminator
}

func (u *User) CreatedAt() time.Time {
	return createdAt(u.ID())
}

func (u *User) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Data())
}
