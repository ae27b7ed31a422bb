package rate_limit

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Response headers of the remote rate-limit contract
const (
	HeaderBucket     = "X-RateLimit-Bucket"
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderResetAfter = "X-RateLimit-Reset-After"
	HeaderGlobal     = "X-RateLimit-Global"
	HeaderScope      = "X-RateLimit-Scope"
	HeaderRetryAfter = "Retry-After"
)

// Headers is the parsed rate-limit view of a response. Numeric fields are -1 when absent.
type Headers struct {
	Bucket     string
	Limit      int
	Remaining  int
	Reset      time.Time
	ResetAfter time.Duration
	RetryAfter time.Duration
	Global     bool
	Scope      string
}

// Present reports whether the response carried any bucket information
func (h Headers) Present() bool {
	return h.Limit >= 0 || h.Remaining >= 0 || h.ResetAfter > 0 || !h.Reset.IsZero()
}

// ParseHeaders extracts the rate-limit headers from a response
func ParseHeaders(header http.Header) Headers {
	h := Headers{
		Bucket:     header.Get(HeaderBucket),
		Limit:      parseInt(header.Get(HeaderLimit)),
		Remaining:  parseInt(header.Get(HeaderRemaining)),
		ResetAfter: parseSeconds(header.Get(HeaderResetAfter)),
		RetryAfter: parseSeconds(header.Get(HeaderRetryAfter)),
		Global:     strings.EqualFold(header.Get(HeaderGlobal), "true"),
		Scope:      header.Get(HeaderScope),
	}

	if raw := header.Get(HeaderReset); raw != "" {
		if epoch, err := strconv.ParseFloat(raw, 64); err == nil && epoch > 0 {
			sec, frac := math.Modf(epoch)
			h.Reset = time.Unix(int64(sec), int64(frac*float64(time.Second)))
		}
	}

	return h
}

// Seconds converts a fractional seconds value (as sent in headers and 429 bodies) to a duration
func Seconds(value float64) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value * float64(time.Second))
}

func parseInt(raw string) int {
	if raw == "" {
		return -1
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return value
}

func parseSeconds(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return Seconds(value)
}
