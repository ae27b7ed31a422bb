package rest

import (
	"time"

	"github.com/FrenchMajesty/yuko/clients/transport"
	"github.com/FrenchMajesty/yuko/stats"
	"github.com/FrenchMajesty/yuko/utils/logger"
	"github.com/FrenchMajesty/yuko/utils/retry"
)

const (
	DefaultBaseURL             = "https://discord.com/api/v10"
	DefaultUserAgent           = "DiscordBot (https://github.com/FrenchMajesty/yuko, 0.1.0)"
	DefaultMaxRateLimitRetries = 5
	DefaultRequestTimeout      = 15 * time.Second
	defaultEventBuffer         = 1000
	defaultRecordBuffer        = 1000
	DefaultStatsInterval       = 20 * time.Second
)

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger. Defaults to a noop logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithBaseURL points the manager at another API root, e.g. an httptest server
func WithBaseURL(baseURL string) Option {
	return func(m *Manager) {
		m.baseURL = baseURL
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(userAgent string) Option {
	return func(m *Manager) {
		m.userAgent = userAgent
	}
}

// WithDoer replaces the HTTP client
func WithDoer(doer transport.Doer) Option {
	return func(m *Manager) {
		if doer != nil {
			m.doer = doer
		}
	}
}

// WithTimeout caps every HTTP call of the default client. Ignored when WithDoer is used.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

// WithRetryConfig sets the backoff used for 5xx and network failures
func WithRetryConfig(config retry.Config) Option {
	return func(m *Manager) {
		m.retryConfig = config
	}
}

// WithMaxRateLimitRetries sets how many 429s a single request may absorb before failing
func WithMaxRateLimitRetries(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.maxRateLimitRetries = n
		}
	}
}

// WithGlobalRate caps throughput across every bucket. 0 disables the cap.
func WithGlobalRate(requestsPerSecond float64) Option {
	return func(m *Manager) {
		m.globalRate = requestsPerSecond
	}
}

// WithRecorder persists the outcome of every request
func WithRecorder(recorder stats.Recorder) Option {
	return func(m *Manager) {
		m.recorder = recorder
	}
}

// WithEventBuffer sizes the event channel. Events are dropped once it is full.
func WithEventBuffer(size int) Option {
	return func(m *Manager) {
		if size >= 0 {
			m.eventBuffer = size
		}
	}
}

// WithStatsInterval sets how often queue and bucket totals are logged while there is
// traffic. 0 disables the periodic line; the summary on Stop is always logged.
func WithStatsInterval(interval time.Duration) Option {
	return func(m *Manager) {
		if interval >= 0 {
			m.statsInterval = interval
		}
	}
}
