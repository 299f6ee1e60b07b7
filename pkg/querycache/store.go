// Package querycache is the local reactive store: a keyed cache of query
// results that can be invalidated by prefix, refetched in the background and
// observed for changes.
package querycache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/sidechain/community/pkg/logger"
	"github.com/zfogg/sidechain/community/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Fetcher loads the authoritative value for key.
type Fetcher func(ctx context.Context, key Key) (interface{}, error)

// EventType describes what happened to a key.
type EventType int

const (
	EventSet EventType = iota
	EventInvalidated
	EventRemoved
	EventFetched
	EventFetchFailed
)

func (t EventType) String() string {
	switch t {
	case EventSet:
		return "set"
	case EventInvalidated:
		return "invalidated"
	case EventRemoved:
		return "removed"
	case EventFetched:
		return "fetched"
	case EventFetchFailed:
		return "fetch_failed"
	default:
		return "unknown"
	}
}

// Event is delivered to observers after the change has been applied.
// For EventInvalidated, Key is the invalidated prefix.
type Event struct {
	Type EventType
	Key  Key
	Err  error
}

type entry struct {
	key       Key
	data      []byte
	stale     bool
	updatedAt time.Time
}

type flight struct {
	key    Key
	cancel context.CancelFunc
}

type route struct {
	prefix  Key
	fetcher Fetcher
}

// Store is safe for concurrent use. Values are kept encoded so every read
// returns an independent copy.
type Store struct {
	mu        sync.Mutex
	entries   map[string]*entry
	inflight  map[string]*flight
	routes    []route
	observers map[int]func(Event)
	nextObs   int
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now     func() time.Time
	log     *log.Logger
	metrics *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics records invalidations and fetch outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithNow overrides the timestamp source for entries.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		entries:   make(map[string]*entry),
		inflight:  make(map[string]*flight),
		observers: make(map[int]func(Event)),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
		log:       logger.Component("cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop()
	}
	return s
}

// Register routes refetches for every key under prefix to f. The longest
// matching prefix wins.
func (s *Store) Register(prefix Key, f Fetcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = append(s.routes, route{prefix: prefix.Clone(), fetcher: f})
	sort.SliceStable(s.routes, func(i, j int) bool {
		return len(s.routes[i].prefix) > len(s.routes[j].prefix)
	})
}

func (s *Store) fetcherLocked(k Key) Fetcher {
	for _, r := range s.routes {
		if k.HasPrefix(r.prefix) {
			return r.fetcher
		}
	}
	return nil
}

// Subscribe registers fn for every event. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	obs := make([]func(Event), 0, len(s.observers))
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		obs = append(obs, s.observers[id])
	}
	s.mu.Unlock()

	for _, ev := range events {
		for _, fn := range obs {
			s.safeCall(fn, ev)
		}
	}
}

func (s *Store) safeCall(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("observer panicked", "event", ev.Type, "key", ev.Key, "panic", r)
		}
	}()
	fn(ev)
}

// Get decodes the value at key into out. It reports false when the key is absent.
func (s *Store) Get(key Key, out interface{}) (bool, error) {
	raw, ok := s.Raw(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Raw returns a copy of the encoded value at key.
func (s *Store) Raw(key Key) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rawLocked(key)
}

func (s *Store) rawLocked(key Key) ([]byte, bool) {
	e, ok := s.entries[key.id()]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), e.data...), true
}

// IsStale reports whether key has been invalidated since it was last written.
func (s *Store) IsStale(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.id()]
	return ok && e.stale
}

// Keys lists every cached key under prefix, sorted.
func (s *Store) Keys(prefix Key) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keysLocked(prefix)
}

func (s *Store) keysLocked(prefix Key) []Key {
	var out []Key
	for _, e := range s.entries {
		if e.key.HasPrefix(prefix) {
			out = append(out, e.key.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id() < out[j].id() })
	return out
}

// Set encodes v and stores it at key.
func (s *Store) Set(key Key, v interface{}) error {
	return s.Atomically(func(tx *Tx) error {
		return tx.Set(key, v)
	})
}

func (s *Store) setRawLocked(key Key, data []byte) Event {
	s.entries[key.id()] = &entry{
		key:       key.Clone(),
		data:      append([]byte(nil), data...),
		updatedAt: s.now(),
	}
	return Event{Type: EventSet, Key: key.Clone()}
}

// Remove drops key and every key under it, cancelling their fetches.
func (s *Store) Remove(key Key) {
	_ = s.Atomically(func(tx *Tx) error {
		tx.Remove(key)
		return nil
	})
}

func (s *Store) removeLocked(prefix Key) []Event {
	s.cancelLocked(prefix)
	var events []Event
	for id, e := range s.entries {
		if e.key.HasPrefix(prefix) {
			delete(s.entries, id)
			events = append(events, Event{Type: EventRemoved, Key: e.key})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Key.id() < events[j].Key.id() })
	return events
}

// CancelInFlight aborts every running fetch under prefix. Their results are
// discarded even if the fetcher ignores cancellation.
func (s *Store) CancelInFlight(prefix Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(prefix)
}

func (s *Store) cancelLocked(prefix Key) int {
	n := 0
	for id, fl := range s.inflight {
		if fl.key.HasPrefix(prefix) {
			fl.cancel()
			delete(s.inflight, id)
			n++
		}
	}
	return n
}

// Invalidate marks every entry under prefix stale and refetches the ones
// that have a registered fetcher. An event is emitted even when nothing
// under prefix is cached.
func (s *Store) Invalidate(prefix Key) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	n := 0
	for _, e := range s.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.stale = true
		if f := s.fetcherLocked(e.key); f != nil {
			s.startFetchLocked(e.key, f)
			n++
		}
	}
	s.mu.Unlock()

	s.metrics.CacheInvalidations.Inc()
	s.log.Debug("invalidated", "prefix", prefix, "refetches", n)
	s.emit([]Event{{Type: EventInvalidated, Key: prefix.Clone()}})
}

func (s *Store) startFetchLocked(key Key, f Fetcher) *flight {
	id := key.id()
	if prev := s.inflight[id]; prev != nil {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	fl := &flight{key: key.Clone(), cancel: cancel}
	s.inflight[id] = fl

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		v, err := f(ctx, fl.key)
		s.finishFetch(ctx, fl, v, err)
	}()
	return fl
}

func (s *Store) finishFetch(ctx context.Context, fl *flight, v interface{}, err error) error {
	s.mu.Lock()
	id := fl.key.id()
	current := s.inflight[id] == fl
	if current {
		delete(s.inflight, id)
	}
	cancelled := !current || ctx.Err() != nil
	fl.cancel()
	if cancelled {
		s.mu.Unlock()
		s.metrics.CacheFetches.WithLabelValues("cancelled").Inc()
		return context.Canceled
	}

	if err == nil {
		var data []byte
		data, err = json.Marshal(v)
		if err == nil {
			s.setRawLocked(fl.key, data)
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.metrics.CacheFetches.WithLabelValues("error").Inc()
		s.log.Warn("refetch failed", "key", fl.key, "err", err)
		s.emit([]Event{{Type: EventFetchFailed, Key: fl.key, Err: err}})
		return err
	}
	s.metrics.CacheFetches.WithLabelValues("ok").Inc()
	s.emit([]Event{{Type: EventFetched, Key: fl.key}})
	return nil
}

// Fetch loads key through its fetcher and waits for the result.
func (s *Store) Fetch(ctx context.Context, key Key) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return context.Canceled
	}
	f := s.fetcherLocked(key)
	if f == nil {
		s.mu.Unlock()
		return fmt.Errorf("no fetcher registered for %s", key)
	}
	id := key.id()
	if prev := s.inflight[id]; prev != nil {
		prev.cancel()
	}
	fctx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	fl := &flight{key: key.Clone(), cancel: cancel}
	s.inflight[id] = fl
	s.mu.Unlock()

	v, err := f(fctx, fl.key)
	return s.finishFetch(fctx, fl, v, err)
}

// Wait blocks until every background refetch has finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Close cancels running fetches and stops new refetches.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// Atomically runs fn with the store locked. If fn returns an error every
// write it made is undone. Events are delivered after the lock is released.
func (s *Store) Atomically(fn func(tx *Tx) error) error {
	tx := &Tx{s: s, undo: make(map[string]undoRecord)}
	var err error
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		defer func() { tx.done = true }()
		if err = fn(tx); err != nil {
			tx.rollback()
			tx.events = nil
		}
	}()

	s.emit(tx.events)
	return err
}
