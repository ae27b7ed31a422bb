package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/FrenchMajesty/yuko/rest"
	"github.com/FrenchMajesty/yuko/stats"
	"github.com/FrenchMajesty/yuko/structures"
	"github.com/FrenchMajesty/yuko/utils/errs"
	"github.com/FrenchMajesty/yuko/utils/logger"
	"github.com/FrenchMajesty/yuko/utils/snowflake"
)

// Client is the high level API: typed endpoints on top of the REST dispatcher, with every
// entity it sees kept in State.
type Client struct {
	rest     *rest.Manager
	State    *structures.State
	logger   logger.Logger
	recorder stats.Recorder

	allowedMentions []byte
	fetchLimit      int

	closeOnce sync.Once
	closers   []func() error
}

type settings struct {
	restOptions     []rest.Option
	limits          structures.Limits
	allowedMentions AllowedMentions
	logger          logger.Logger
	recorder        stats.Recorder
	fetchLimit      int
}

type Option func(*settings)

// WithRESTOptions forwards options to the underlying rest.Manager
func WithRESTOptions(opts ...rest.Option) Option {
	return func(s *settings) { s.restOptions = append(s.restOptions, opts...) }
}

func WithCacheLimits(limits structures.Limits) Option {
	return func(s *settings) { s.limits = limits }
}

// WithAllowedMentions sets the allowed_mentions sent with messages that carry none
func WithAllowedMentions(am AllowedMentions) Option {
	return func(s *settings) { s.allowedMentions = am }
}

func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder records every request outcome. The recorder is also handed to the dispatcher.
func WithRecorder(recorder stats.Recorder) Option {
	return func(s *settings) { s.recorder = recorder }
}

// WithFetchConcurrency caps concurrent requests of bulk fetches such as FetchGuilds
func WithFetchConcurrency(n int) Option {
	return func(s *settings) { s.fetchLimit = n }
}

const defaultFetchConcurrency = 5

func New(token string, opts ...Option) (*Client, error) {
	s := settings{
		limits:          structures.DefaultLimits(),
		allowedMentions: AllowedMentions{Parse: []string{MentionUsers}},
		logger:          logger.NewNoopLogger(),
		fetchLimit:      defaultFetchConcurrency,
	}
	for _, opt := range opts {
		opt(&s)
	}

	allowed, err := json.Marshal(s.allowedMentions.normalized())
	if err != nil {
		return nil, fmt.Errorf("failed to encode allowed mentions: %w", err)
	}

	restOptions := append([]rest.Option{rest.WithLogger(s.logger)}, s.restOptions...)
	if s.recorder != nil {
		restOptions = append(restOptions, rest.WithRecorder(s.recorder))
	}
	manager, err := rest.New(token, restOptions...)
	if err != nil {
		return nil, err
	}

	return &Client{
		rest:            manager,
		State:           structures.NewState(s.limits),
		logger:          logger.WithPrefix(s.logger, "client"),
		recorder:        s.recorder,
		allowedMentions: allowed,
		fetchLimit:      s.fetchLimit,
	}, nil
}

// REST exposes the dispatcher for endpoints the client does not wrap
func (c *Client) REST() *rest.Manager {
	return c.rest
}

// Recorder returns the outcome recorder, nil when none is configured
func (c *Client) Recorder() stats.Recorder {
	return c.recorder
}

// Close stops the dispatcher, then releases whatever the client was built with. Safe to
// call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.rest.Stop()
		for i := len(c.closers) - 1; i >= 0; i-- {
			err = errors.Join(err, c.closers[i]())
		}
	})
	return err
}

func (c *Client) onClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

func (c *Client) request(ctx context.Context, method, path string, payload any, contentType rest.ContentType, opts ...rest.RequestOption) ([]byte, error) {
	route, err := rest.NewRoute(method, path)
	if err != nil {
		return nil, err
	}
	return c.rest.Request(ctx, route, payload, contentType, opts...)
}

func checkIDs(ids ...string) error {
	for _, id := range ids {
		if !snowflake.IsSnowflake(id) {
			return fmt.Errorf("invalid id %q: %w", id, errs.ErrInvalidArgument)
		}
	}
	return nil
}
