package rest

import (
	"testing"
	"time"

	"github.com/FrenchMajesty/yuko/utils/errs"
	"github.com/FrenchMajesty/yuko/utils/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoute_BucketKeys(t *testing.T) {
	recentMessage := snowflake.FromTime(time.Now().Add(-time.Hour))
	oldMessage := snowflake.FromTime(time.Now().Add(-30 * 24 * time.Hour))

	cases := []struct {
		method   string
		path     string
		expected string
	}{
		{"GET", "/users/@me", "GET /users/@me"},
		{"get", "users/@me", "GET /users/@me"},
		{"POST", "/channels/81384788765712384/messages", "POST /channels/81384788765712384/messages"},
		{"PATCH", "/channels/81384788765712384/messages/175928847299117063", "PATCH /channels/81384788765712384/messages/:id"},
		{"GET", "/channels/81384788765712384/messages?limit=50&before=175928847299117063", "GET /channels/81384788765712384/messages"},
		{"GET", "/guilds/81384788765712384/members/80351110224678912", "GET /guilds/81384788765712384/members/:id"},
		{"PATCH", "/guilds/81384788765712384/members/80351110224678912", "PATCH /guilds/81384788765712384/members/:id"},
		{"GET", "/users/80351110224678912", "GET /users/:id"},
		{"POST", "/webhooks/223704706495545344/3d89bb7572e0fb30d8128367b3b1b44fecd1726de135cbe28a41f8b2f777c372ba2939e72279b94526ff5d1bd4358d65cf11", "POST /webhooks/223704706495545344/3d89bb7572e0fb30d8128367b3b1b44fecd1726de135cbe28a41f8b2f777c372ba2939e72279b94526ff5d1bd4358d65cf11"},
		{"POST", "/interactions/847865478923436042/aW50ZXJhY3Rpb24/callback", "POST /interactions/:id/:token/callback"},
		{"GET", "/channels/81384788765712384/messages/175928847299117063/reactions/%F0%9F%91%8D", "GET /channels/81384788765712384/messages/:id/reactions/:reaction"},
		{"PUT", "/channels/81384788765712384/messages/175928847299117063/reactions/%F0%9F%91%8D/@me", "MODIFY /channels/81384788765712384/messages/:id/reactions/:reaction"},
		{"DELETE", "/channels/81384788765712384/messages/175928847299117063/reactions/name:123/80351110224678912", "MODIFY /channels/81384788765712384/messages/:id/reactions/:reaction"},
		{"DELETE", "/channels/81384788765712384/messages/175928847299117063/reactions", "MODIFY /channels/81384788765712384/messages/:id/reactions"},
		{"DELETE", "/channels/81384788765712384/messages/" + recentMessage, "DELETE /channels/81384788765712384/messages/:id"},
		{"DELETE", "/channels/81384788765712384/messages/" + oldMessage, "DELETE_OLD /channels/81384788765712384/messages/:id"},
	}

	for _, c := range cases {
		route, err := NewRoute(c.method, c.path)
		require.NoError(t, err, c.path)
		assert.Equal(t, c.expected, route.Key(), "%s %s", c.method, c.path)
	}
}

func TestNewRoute_SameBucketAcrossMinorIDs(t *testing.T) {
	a := MustRoute("PATCH", "/channels/1/messages/100")
	b := MustRoute("PATCH", "/channels/1/messages/200")
	c := MustRoute("PATCH", "/channels/2/messages/100")

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key(), "channel is a major parameter")
}

func TestNewRoute_Invalid(t *testing.T) {
	cases := []struct{ method, path string }{
		{"FETCH", "/users/@me"},
		{"", "/users/@me"},
		{"GET", ""},
		{"GET", "/users/ @me"},
		{"GET", "https://example.com/users/@me"},
	}

	for _, c := range cases {
		_, err := NewRoute(c.method, c.path)
		assert.ErrorIs(t, err, errs.ErrInvalidArgument, "%q %q", c.method, c.path)
	}

	assert.Panics(t, func() { MustRoute("FETCH", "/") })
}

func TestRoute_Accessors(t *testing.T) {
	route := MustRoute("get", "/guilds/1/channels?with_counts=true")
	assert.Equal(t, "GET", route.Method())
	assert.Equal(t, "/guilds/1/channels?with_counts=true", route.Path())
	assert.Equal(t, "GET /guilds/1/channels?with_counts=true", route.String())
	assert.Equal(t, "GET /guilds/1/channels", route.Key())
}
