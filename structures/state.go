package structures

import (
	"github.com/FrenchMajesty/yuko/collection"
)

// Limits bounds each cache. collection.Unlimited keeps everything, 0 disables caching.
// Channels bounds the state index and each guild's own channel index.
type Limits struct {
	Users    int
	Guilds   int
	Channels int
	Messages int
	Members  int // per guild
	Roles    int // per guild
}

func DefaultLimits() Limits {
	return Limits{
		Users:    collection.Unlimited,
		Guilds:   collection.Unlimited,
		Channels: collection.Unlimited,
		Messages: 100,
		Members:  collection.Unlimited,
		Roles:    collection.Unlimited,
	}
}

// LimitsFrom reads every limit through lookup, typically config.CacheLimit
func LimitsFrom(lookup func(name string) int) Limits {
	return Limits{
		Users:    lookup("users"),
		Guilds:   lookup("guilds"),
		Channels: lookup("channels"),
		Messages: lookup("messages"),
		Members:  lookup("members"),
		Roles:    lookup("roles"),
	}
}

// State is the set of caches shared by every entity. Entities built through it link to
// the same *User instances.
type State struct {
	limits Limits

	Users    *collection.Collection[*User]
	Guilds   *collection.Collection[*Guild]
	Channels *collection.Collection[*Channel]
	Messages *collection.Collection[*Message]
}

func NewState(limits Limits) *State {
	return &State{
		limits:   limits,
		Users:    collection.New("User", NewUser, collection.WithLimit(limits.Users)),
		Guilds:   collection.New("Guild", NewGuild, collection.WithLimit(limits.Guilds)),
		Channels: collection.New("Channel", NewChannel, collection.WithLimit(limits.Channels)),
		Messages: collection.New("Message", NewMessage, collection.WithLimit(limits.Messages)),
	}
}

func (s *State) AddUser(data []byte) (*User, error) {
	return s.Users.Update(data, nil, false)
}

func (s *State) AddGuild(data []byte) (*Guild, error) {
	return s.Guilds.Update(data, s, false)
}

func (s *State) AddChannel(data []byte) (*Channel, error) {
	return s.Channels.Update(data, s, false)
}

func (s *State) AddMessage(data []byte) (*Message, error) {
	return s.Messages.Update(data, s, false)
}

// RemoveMessage drops a message from the cache, reporting whether it was cached
func (s *State) RemoveMessage(id string) bool {
	_, ok := s.Messages.Remove(id)
	return ok
}
