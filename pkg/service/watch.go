package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/zfogg/sidechain/community/pkg/api"
	"github.com/zfogg/sidechain/community/pkg/logger"
	"github.com/zfogg/sidechain/community/pkg/output"
	"github.com/zfogg/sidechain/community/pkg/querycache"
	"github.com/zfogg/sidechain/community/pkg/querykeys"
	"github.com/zfogg/sidechain/community/pkg/realtime"
	"github.com/zfogg/sidechain/community/pkg/session"
)

// WatchOptions selects what the watcher prints.
type WatchOptions struct {
	// Types limits printed events to these message types. Connection state
	// changes use "state". Empty prints everything except ping and pong.
	Types []string
	// Prefetch loads the feed and inbox first so pushes refresh them.
	Prefetch bool
}

// WatchService streams realtime events for one session.
type WatchService struct {
	s   *session.Session
	out *output.Printer
	now func() time.Time

	mu        sync.Mutex
	lastCount int
}

// NewWatchService creates a new watch service
func NewWatchService(s *session.Session, out *output.Printer) *WatchService {
	return &WatchService{s: s, out: out, now: time.Now, lastCount: -1}
}

// Watch connects and prints events until ctx ends, then prints the final
// connection snapshot.
func (ws *WatchService) Watch(ctx context.Context, opts WatchOptions) error {
	logger.Debug("Starting realtime watcher", "tenant", ws.s.Tenant)

	unsubEvents := ws.s.Dispatcher.Subscribe(ws.eventHandler(filterTypes(opts.Types)))
	unsubStore := ws.s.Store.Subscribe(ws.countHandler)
	defer func() {
		unsubEvents()
		unsubStore()
	}()

	if opts.Prefetch {
		keys := []querycache.Key{
			querykeys.Posts(ws.s.Tenant),
			querykeys.Notifications(ws.s.Tenant),
			querykeys.UnreadCount(ws.s.Tenant),
		}
		if err := ws.s.Prefetch(ctx, keys...); err != nil {
			logger.Warn("Prefetch failed, continuing with an empty cache", "error", err)
		}
	}

	ws.out.Info("🔔 Watching %s (Ctrl+C to stop)", ws.s.Tenant)

	ws.s.Start()
	<-ctx.Done()

	ws.s.Manager.Disconnect()
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.out.Snapshot(ws.s.Manager.Snapshot())
}

func filterTypes(types []string) func(realtime.MessageType) bool {
	if len(types) == 0 {
		return func(t realtime.MessageType) bool {
			return t != realtime.TypePing && t != realtime.TypePong
		}
	}
	allowed := make(map[realtime.MessageType]bool, len(types))
	for _, t := range types {
		allowed[realtime.MessageType(strings.TrimSpace(t))] = true
	}
	return func(t realtime.MessageType) bool { return allowed[t] }
}

func (ws *WatchService) eventHandler(allow func(realtime.MessageType) bool) func(realtime.Event) {
	return func(ev realtime.Event) {
		if !allow(ev.Kind()) {
			return
		}
		ws.mu.Lock()
		defer ws.mu.Unlock()
		if err := ws.out.Event(ev, ws.now()); err != nil {
			logger.Error("Failed to print event", "error", err)
		}
	}
}

// countHandler prints the unread count whenever a refetch changes it. This
// is how fallback polling becomes visible.
func (ws *WatchService) countHandler(ev querycache.Event) {
	key := querykeys.UnreadCount(ws.s.Tenant)
	if ev.Type != querycache.EventFetched || !ev.Key.Equal(key) {
		return
	}
	var count api.UnreadCount
	if ok, err := ws.s.Store.Get(key, &count); err != nil || !ok {
		return
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if count.Count == ws.lastCount {
		return
	}
	ws.lastCount = count.Count
	ws.out.Info("📬 %d unread notification%s", count.Count, pluralize(count.Count))
}
