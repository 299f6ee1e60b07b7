package realtime

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/zfogg/sidechain/community/pkg/api"
	"github.com/zfogg/sidechain/community/pkg/logger"
	"github.com/zfogg/sidechain/community/pkg/metrics"
	"github.com/zfogg/sidechain/community/pkg/querycache"
	"github.com/zfogg/sidechain/community/pkg/querykeys"
)

// Dispatcher turns inbound envelopes into cache effects and listener calls.
// Envelopes are handled in the order Handle is called.
type Dispatcher struct {
	store   *querycache.Store
	tenant  string
	log     *log.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	listeners map[int]func(Event)
	anyLs     map[int]func(Envelope)
	next      int
}

// NewDispatcher binds a dispatcher to one store and tenant.
func NewDispatcher(store *querycache.Store, tenant string, m *metrics.Metrics) *Dispatcher {
	if m == nil {
		m = metrics.Nop()
	}
	return &Dispatcher{
		store:     store,
		tenant:    tenant,
		log:       logger.Component("dispatch"),
		metrics:   m,
		listeners: make(map[int]func(Event)),
		anyLs:     make(map[int]func(Envelope)),
	}
}

// Subscribe registers fn for every typed event, including local state
// changes. The returned func unsubscribes.
func (d *Dispatcher) Subscribe(fn func(Event)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.next
	d.next++
	d.listeners[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, id)
	}
}

// OnAny registers fn for every decoded envelope, before its specific handling.
func (d *Dispatcher) OnAny(fn func(Envelope)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.next
	d.next++
	d.anyLs[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.anyLs, id)
	}
}

// HandleRaw decodes one frame and handles it. Malformed frames are dropped.
func (d *Dispatcher) HandleRaw(data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		d.drop("malformed", err)
		return
	}
	d.Handle(env)
}

// Handle applies the cache effect of env and forwards it to listeners. It
// never panics.
func (d *Dispatcher) Handle(env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("dispatch panicked", "type", env.Type, "panic", r)
		}
	}()

	d.metrics.EnvelopesReceived.WithLabelValues(string(env.Type)).Inc()
	d.notifyAny(env)

	ev, err := decodeEvent(env)
	if err != nil {
		var unknown errUnknownType
		if errors.As(err, &unknown) {
			d.log.Info("ignoring unknown message type", "type", env.Type)
			d.metrics.EnvelopesDropped.WithLabelValues("unknown_type").Inc()
			return
		}
		d.drop("payload", err)
		return
	}
	if err := validate(ev); err != nil {
		d.drop("payload", err)
		return
	}

	if err := d.apply(ev); err != nil {
		d.log.Warn("cache update failed", "type", env.Type, "err", err)
	}
	d.emit(ev)
}

func (d *Dispatcher) drop(reason string, err error) {
	d.log.Warn("dropping envelope", "reason", reason, "err", err)
	d.metrics.EnvelopesDropped.WithLabelValues(reason).Inc()
}

func validate(ev Event) error {
	missing := func(field string) error {
		return fmt.Errorf("%s payload missing %s", ev.Kind(), field)
	}
	switch e := ev.(type) {
	case PostUpdated:
		if e.ID == "" {
			return missing("id")
		}
	case PostDeleted:
		if e.ID == "" {
			return missing("id")
		}
	case CommentCreated:
		if e.PostID == "" {
			return missing("post_id")
		}
	case CommentDeleted:
		if e.PostID == "" {
			return missing("post_id")
		}
	case LikeUpdated:
		if e.TargetID == "" {
			return missing("target_id")
		}
		if e.TargetType != LikeTargetPost && e.TargetType != LikeTargetComment {
			return fmt.Errorf("%s payload has unknown target_type %q", ev.Kind(), e.TargetType)
		}
	case VideoReady:
		if e.ID == "" {
			return missing("id")
		}
	case VideoFailed:
		if e.ID == "" {
			return missing("id")
		}
	}
	return nil
}

// apply is the per-type cache effect table.
func (d *Dispatcher) apply(ev Event) error {
	switch e := ev.(type) {
	case NotificationNew:
		d.store.Invalidate(querykeys.AllNotifications())

	case PostCreated:
		d.store.Invalidate(querykeys.Posts(d.tenant))

	case PostUpdated:
		d.store.Invalidate(querykeys.Posts(d.tenant))
		d.store.Invalidate(querykeys.Post(e.ID))

	case PostDeleted:
		d.store.Invalidate(querykeys.Posts(d.tenant))
		d.store.Remove(querykeys.Post(e.ID))

	case CommentCreated:
		d.store.Invalidate(querykeys.Comments(e.PostID))
		return d.store.Atomically(func(tx *querycache.Tx) error {
			_, err := querycache.Update(tx, querykeys.Post(e.PostID), func(p *api.Post) {
				p.CommentCount++
			})
			return err
		})

	case CommentDeleted:
		d.store.Invalidate(querykeys.Comments(e.PostID))

	case LikeUpdated:
		switch e.TargetType {
		case LikeTargetPost:
			return d.setPostLikeCount(e.TargetID, e.LikeCount)
		case LikeTargetComment:
			d.store.Invalidate(querykeys.AllComments())
		}

	case VideoReady:
		d.invalidateVideo(e.ID)

	case VideoFailed:
		d.invalidateVideo(e.ID)

	case MemberJoined, MemberLeft:
		d.store.Invalidate(querykeys.Members(d.tenant))
	}
	return nil
}

func (d *Dispatcher) invalidateVideo(id string) {
	d.store.Invalidate(querykeys.Videos(d.tenant))
	d.store.Invalidate(querykeys.Video(id))
}

// setPostLikeCount writes the counter in place on every cached posts list of
// the tenant and on the single post, without a refetch.
func (d *Dispatcher) setPostLikeCount(postID string, count int) error {
	return d.store.Atomically(func(tx *querycache.Tx) error {
		for _, key := range tx.Keys(querykeys.Posts(d.tenant)) {
			var posts []api.Post
			if _, err := tx.Get(key, &posts); err != nil {
				d.log.Debug("skipping non-list posts entry", "key", key, "err", err)
				continue
			}
			changed := false
			for i := range posts {
				if posts[i].ID == postID {
					posts[i].LikeCount = count
					changed = true
				}
			}
			if changed {
				if err := tx.Set(key, posts); err != nil {
					return err
				}
			}
		}
		_, err := querycache.Update(tx, querykeys.Post(postID), func(p *api.Post) {
			p.LikeCount = count
		})
		return err
	})
}

func (d *Dispatcher) notifyAny(env Envelope) {
	for _, fn := range d.anyListeners() {
		func() {
			defer d.recoverListener(env.Type)
			fn(env)
		}()
	}
}

func (d *Dispatcher) emit(ev Event) {
	for _, fn := range d.eventListeners() {
		func() {
			defer d.recoverListener(ev.Kind())
			fn(ev)
		}()
	}
}

func (d *Dispatcher) recoverListener(t MessageType) {
	if r := recover(); r != nil {
		d.log.Error("listener panicked", "type", t, "panic", r)
	}
}

func (d *Dispatcher) eventListeners() []func(Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]int, 0, len(d.listeners))
	for id := range d.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, d.listeners[id])
	}
	return out
}

func (d *Dispatcher) anyListeners() []func(Envelope) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]int, 0, len(d.anyLs))
	for id := range d.anyLs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Envelope), 0, len(ids))
	for _, id := range ids {
		out = append(out, d.anyLs[id])
	}
	return out
}
