package rest

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/FrenchMajesty/yuko/utils/errs"
	"github.com/FrenchMajesty/yuko/utils/snowflake"
)

// messages older than this are deleted through a separate remote bucket
const oldMessageAge = 14 * 24 * time.Hour

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// majorParameters keep their id in the bucket key: the remote service limits each of them separately
var majorParameters = map[string]bool{
	"channels": true,
	"guilds":   true,
	"webhooks": true,
}

// Route is an immutable (method, endpoint) pair along with the bucket key it is paced under
type Route struct {
	method string
	path   string
	key    string
}

// NewRoute validates method and path and derives the bucket key. path is relative to the API
// root and may carry a query string.
func NewRoute(method, path string) (Route, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if !allowedMethods[method] {
		return Route{}, fmt.Errorf("route method %q: %w", method, errs.ErrInvalidArgument)
	}

	path = strings.TrimSpace(path)
	if path == "" || strings.ContainsAny(path, " \t\r\n") || strings.Contains(path, "://") {
		return Route{}, fmt.Errorf("route path %q: %w", path, errs.ErrInvalidArgument)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return Route{
		method: method,
		path:   path,
		key:    bucketKey(method, path, time.Now()),
	}, nil
}

// MustRoute is NewRoute for routes known to be valid at compile time
func MustRoute(method, path string) Route {
	route, err := NewRoute(method, path)
	if err != nil {
		panic(err)
	}
	return route
}

func (r Route) Method() string { return r.method }
func (r Route) Path() string   { return r.path }

// Key returns the bucket key. Requests sharing a key share one FIFO queue and one Ratelimit.
func (r Route) Key() string { return r.key }

func (r Route) String() string { return r.method + " " + r.path }

// bucketKey normalizes a path into the key it is limited under:
//   - the query string is dropped
//   - ids right after channels, guilds and webhooks stay, as does the webhook token
//   - every other numeric id becomes :id
//   - interaction id and token become :id and :token
//   - anything after /reactions collapses to /reactions/:reaction, and PUT or DELETE on
//     reactions share a single MODIFY bucket per channel
//   - DELETE on a message older than two weeks gets its own DELETE_OLD bucket
func bucketKey(method, path string, now time.Time) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	normalized := make([]string, 0, len(segments))
	reactions := false

	for i, segment := range segments {
		switch {
		case segments[0] == "interactions" && i == 1:
			normalized = append(normalized, ":id")
		case segments[0] == "interactions" && i == 2:
			normalized = append(normalized, ":token")
		case segments[0] == "webhooks" && i == 2:
			normalized = append(normalized, segment)
		case segment == "reactions":
			reactions = true
			normalized = append(normalized, segment)
			if i+1 < len(segments) {
				normalized = append(normalized, ":reaction")
			}
		case i > 0 && majorParameters[segments[i-1]] && snowflake.IsSnowflake(segment):
			normalized = append(normalized, segment)
		case snowflake.IsSnowflake(segment):
			normalized = append(normalized, ":id")
		default:
			normalized = append(normalized, segment)
		}

		if reactions {
			break
		}
	}

	if reactions && (method == http.MethodPut || method == http.MethodDelete) {
		method = "MODIFY"
	}

	n := len(segments)
	if method == http.MethodDelete && n >= 2 && segments[n-2] == "messages" {
		if created, err := snowflake.Time(segments[n-1]); err == nil && now.Sub(created) >= oldMessageAge {
			method = "DELETE_OLD"
		}
	}

	return method + " /" + strings.Join(normalized, "/")
}
