// Package session wires the sync components for one (token, tenant) pair.
// Switching tenant or logging out is Close followed by a new Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zfogg/sidechain/community/pkg/api"
	"github.com/zfogg/sidechain/community/pkg/client"
	"github.com/zfogg/sidechain/community/pkg/logger"
	"github.com/zfogg/sidechain/community/pkg/metrics"
	"github.com/zfogg/sidechain/community/pkg/optimistic"
	"github.com/zfogg/sidechain/community/pkg/progress"
	"github.com/zfogg/sidechain/community/pkg/querycache"
	"github.com/zfogg/sidechain/community/pkg/querykeys"
	"github.com/zfogg/sidechain/community/pkg/realtime"
)

// PageSize is the number of list items fetched for a cached list.
const PageSize = 20

// Options configures a Session. Empty URLs are derived from configuration.
type Options struct {
	Token       string
	Tenant      string
	BaseURL     string
	RealtimeURL string
	Timeout     time.Duration

	// Registerer receives the session's collectors. A private registry is
	// used when nil.
	Registerer prometheus.Registerer

	ManagerOptions []realtime.Option
}

// Session owns every component of the sync layer.
type Session struct {
	Tenant     string
	Metrics    *metrics.Metrics
	API        *api.Client
	Store      *querycache.Store
	Dispatcher *realtime.Dispatcher
	Manager    *realtime.Manager
	Mutations  *optimistic.Controller
	Progress   *progress.Reporter
}

// New builds a session without connecting.
func New(opts Options) (*Session, error) {
	if opts.Token == "" {
		return nil, errors.New("session token is required")
	}
	if opts.Tenant == "" {
		return nil, errors.New("tenant is required")
	}

	httpOpts := client.OptionsFromConfig(opts.Token, opts.Tenant)
	if opts.BaseURL != "" {
		httpOpts.BaseURL = opts.BaseURL
	}
	if opts.Timeout > 0 {
		httpOpts.Timeout = opts.Timeout
	}

	rtCfg, err := realtime.ConfigFromSettings(opts.RealtimeURL, opts.Token, opts.Tenant)
	if err != nil {
		return nil, fmt.Errorf("realtime config: %w", err)
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := metrics.New(reg)

	s := &Session{
		Tenant:  opts.Tenant,
		Metrics: m,
		API:     api.New(client.New(httpOpts)),
		Store:   querycache.New(querycache.WithMetrics(m)),
	}
	s.registerFetchers()
	s.Dispatcher = realtime.NewDispatcher(s.Store, opts.Tenant, m)
	s.Manager = realtime.NewManager(rtCfg, s.Dispatcher, append([]realtime.Option{realtime.WithMetrics(m)}, opts.ManagerOptions...)...)
	s.Mutations = optimistic.New(s.Store, s.API, opts.Tenant, optimistic.WithMetrics(m))
	s.Progress = progress.New(s.API, progress.WithMetrics(m))

	logger.Debug("session ready", "tenant", opts.Tenant, "api", httpOpts.BaseURL, "realtime", rtCfg.URL)
	return s, nil
}

// Start opens the realtime connection.
func (s *Session) Start() {
	s.Manager.Connect()
}

// Prefetch loads keys through their fetchers so later invalidations have
// something to refresh.
func (s *Session) Prefetch(ctx context.Context, keys ...querycache.Key) error {
	for _, k := range keys {
		if err := s.Store.Fetch(ctx, k); err != nil {
			return fmt.Errorf("prefetch %s: %w", k, err)
		}
	}
	return nil
}

// Close disconnects, flushes pending progress and drops the cache.
func (s *Session) Close(ctx context.Context) error {
	s.Manager.Close()
	err := s.Progress.Close(ctx)
	s.Store.Close()
	return err
}

func (s *Session) registerFetchers() {
	s.Store.Register(querykeys.AllPosts(), func(ctx context.Context, key querycache.Key) (interface{}, error) {
		return s.API.ListPosts(ctx, PageSize, 0)
	})
	s.Store.Register(querycache.NewKey("post"), withID(func(ctx context.Context, id string) (interface{}, error) {
		return s.API.GetPost(ctx, id)
	}))
	s.Store.Register(querykeys.AllComments(), withID(func(ctx context.Context, postID string) (interface{}, error) {
		return s.API.ListComments(ctx, postID)
	}))
	s.Store.Register(querykeys.AllNotifications(), func(ctx context.Context, key querycache.Key) (interface{}, error) {
		return s.API.ListNotifications(ctx, PageSize, 0)
	})
	s.Store.Register(querycache.NewKey("notifications", "count"), func(ctx context.Context, key querycache.Key) (interface{}, error) {
		return s.API.GetUnreadCount(ctx)
	})
	s.Store.Register(querycache.NewKey("members"), func(ctx context.Context, key querycache.Key) (interface{}, error) {
		return s.API.ListMembers(ctx)
	})
	s.Store.Register(querycache.NewKey("videos"), func(ctx context.Context, key querycache.Key) (interface{}, error) {
		return s.API.ListVideos(ctx)
	})
	s.Store.Register(querycache.NewKey("video"), withID(func(ctx context.Context, id string) (interface{}, error) {
		return s.API.GetVideo(ctx, id)
	}))
}

// withID adapts a fetcher that needs the second key element.
func withID(f func(ctx context.Context, id string) (interface{}, error)) querycache.Fetcher {
	return func(ctx context.Context, key querycache.Key) (interface{}, error) {
		if len(key) < 2 || key[1] == "" {
			return nil, fmt.Errorf("key %s has no id", key)
		}
		return f(ctx, key[1])
	}
}
