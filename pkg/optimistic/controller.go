// Package optimistic applies predicted writes to the local store before the
// matching REST call completes, rolls them back when the call fails, and
// invalidates the touched keys once it settles.
package optimistic

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/zfogg/sidechain/community/pkg/api"
	"github.com/zfogg/sidechain/community/pkg/config"
	apperrors "github.com/zfogg/sidechain/community/pkg/errors"
	"github.com/zfogg/sidechain/community/pkg/logger"
	"github.com/zfogg/sidechain/community/pkg/metrics"
	"github.com/zfogg/sidechain/community/pkg/querycache"
)

// TempIDPrefix marks ids generated locally for entities the server has not
// confirmed yet.
const TempIDPrefix = "temp-"

// Backend is the REST surface the controller writes through.
type Backend interface {
	LikePost(ctx context.Context, id string) (*api.LikeResponse, error)
	UnlikePost(ctx context.Context, id string) (*api.LikeResponse, error)
	LikeComment(ctx context.Context, id string) (*api.LikeResponse, error)
	UnlikeComment(ctx context.Context, id string) (*api.LikeResponse, error)
	CreateComment(ctx context.Context, req api.CreateCommentRequest) (*api.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	CreatePost(ctx context.Context, req api.CreatePostRequest) (*api.Post, error)
	DeletePost(ctx context.Context, id string) error
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

var _ Backend = (*api.Client)(nil)

// Mutation describes one optimistic write.
type Mutation struct {
	// Name labels metrics, logs and the returned error.
	Name string
	// Keys are snapshotted before Apply, restored on failure and invalidated
	// once the call settles.
	Keys []querycache.Key
	// Apply writes the predicted values. It runs in the same transaction as the
	// snapshot, so nothing can interleave between the two.
	Apply func(tx *querycache.Tx) error
	// Call performs the network write.
	Call func(ctx context.Context) error
	// SkipReconcile suppresses the invalidation after a successful call.
	SkipReconcile bool
}

// Controller runs optimistic mutations against one store and tenant.
type Controller struct {
	store          *querycache.Store
	backend        Backend
	tenant         string
	reconcileReads bool

	log     *log.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

// Option configures a Controller.
type Option func(*Controller)

// WithMetrics records mutation outcomes and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithNow sets the timestamp source for synthetic entities.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator replaces the uuid suffix of temporary ids.
func WithIDGenerator(f func() string) Option {
	return func(c *Controller) { c.newID = f }
}

// WithReconcileNotificationReads makes MarkNotificationRead invalidate its keys
// after a successful call like every other mutation.
func WithReconcileNotificationReads(v bool) Option {
	return func(c *Controller) { c.reconcileReads = v }
}

// New creates a controller. The reconcile setting for notification reads
// defaults to optimistic.reconcile_notification_reads.
func New(store *querycache.Store, backend Backend, tenant string, opts ...Option) *Controller {
	c := &Controller{
		store:          store,
		backend:        backend,
		tenant:         tenant,
		reconcileReads: config.GetBool("optimistic.reconcile_notification_reads"),
		log:            logger.Component("optimistic"),
		now:            time.Now,
		newID:          func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop()
	}
	return c
}

type snapshot struct {
	key     querycache.Key
	data    []byte
	present bool
}

// Run executes m. When the call fails every key is restored to its exact
// pre-mutation value before Run returns, and the returned error is a
// mutation_failed error wrapping the call's error.
func (c *Controller) Run(ctx context.Context, m Mutation) error {
	snaps := make([]snapshot, 0, len(m.Keys))
	err := c.store.Atomically(func(tx *querycache.Tx) error {
		for _, k := range m.Keys {
			tx.CancelInFlight(k)
			data, ok := tx.Raw(k)
			snaps = append(snaps, snapshot{key: k, data: data, present: ok})
		}
		if m.Apply == nil {
			return nil
		}
		return m.Apply(tx)
	})
	if err != nil {
		c.metrics.Mutations.WithLabelValues(m.Name, "apply_error").Inc()
		c.log.Error("optimistic apply failed", "operation", m.Name, "err", err)
		return apperrors.New(apperrors.ErrorTypeUnknown, m.Name+" could not update the local cache", err)
	}

	start := time.Now()
	callErr := m.Call(ctx)
	c.metrics.MutationDuration.WithLabelValues(m.Name).Observe(time.Since(start).Seconds())

	if callErr != nil {
		c.rollback(m.Name, snaps)
	}
	if callErr != nil || !m.SkipReconcile {
		for _, k := range m.Keys {
			c.store.Invalidate(k)
		}
	}

	if callErr != nil {
		c.metrics.Mutations.WithLabelValues(m.Name, "rolled_back").Inc()
		return apperrors.MutationFailedError(m.Name, callErr)
	}
	c.metrics.Mutations.WithLabelValues(m.Name, "ok").Inc()
	c.log.Debug("mutation settled", "operation", m.Name)
	return nil
}

func (c *Controller) rollback(name string, snaps []snapshot) {
	err := c.store.Atomically(func(tx *querycache.Tx) error {
		for _, s := range snaps {
			tx.CancelInFlight(s.key)
			tx.Restore(s.key, s.data, s.present)
		}
		return nil
	})
	if err != nil {
		c.log.Error("rollback failed", "operation", name, "err", err)
		return
	}
	c.log.Warn("rolled back optimistic write", "operation", name, "keys", len(snaps))
}

func (c *Controller) tempID() string {
	return TempIDPrefix + c.newID()
}

// IsTemp reports whether id was generated locally.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

func decrement(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}
