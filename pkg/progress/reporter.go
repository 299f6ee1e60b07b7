// Package progress debounces playback position updates into at most one
// write per entity per window without losing the latest value.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zfogg/sidechain/community/pkg/api"
	"github.com/zfogg/sidechain/community/pkg/clock"
	"github.com/zfogg/sidechain/community/pkg/config"
	"github.com/zfogg/sidechain/community/pkg/logger"
	"github.com/zfogg/sidechain/community/pkg/metrics"
)

// DefaultWindow is the minimum spacing between two writes for one entity.
const DefaultWindow = 10 * time.Second

// Writer persists watch progress.
type Writer interface {
	UpdateVideoProgress(ctx context.Context, lessonID string, progress api.VideoProgress) error
}

var _ Writer = (*api.Client)(nil)

// entityTimer is the debounce state of one entity.
type entityTimer struct {
	lastFlush time.Time
	flushed   bool
	pending   clock.Timer
	gen       int
	latest    api.VideoProgress
}

// Reporter coalesces progress reports per entity.
type Reporter struct {
	writer  Writer
	clock   clock.Clock
	window  time.Duration
	log     *log.Logger
	metrics *metrics.Metrics
	spawn   func(func())

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	timers map[string]*entityTimer
	closed bool
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithClock replaces the timer source.
func WithClock(c clock.Clock) Option {
	return func(r *Reporter) { r.clock = c }
}

// WithWindow overrides progress.window.
func WithWindow(d time.Duration) Option {
	return func(r *Reporter) { r.window = d }
}

// WithMetrics counts flushes by trigger.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reporter) { r.metrics = m }
}

// New creates a reporter writing through w.
func New(w Writer, opts ...Option) *Reporter {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Reporter{
		writer: w,
		clock:  clock.Real(),
		window: config.GetDuration("progress.window"),
		log:    logger.Component("progress"),
		spawn:  func(f func()) { go f() },
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[string]*entityTimer),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.window <= 0 {
		r.window = DefaultWindow
	}
	if r.metrics == nil {
		r.metrics = metrics.Nop()
	}
	return r
}

func newProgress(position float64, total *float64) api.VideoProgress {
	p := api.VideoProgress{WatchDurationSeconds: position}
	if total != nil {
		t := *total
		p.VideoTotalSeconds = &t
	}
	return p
}

// ReportProgress records the current position. The first report for an entity
// and any report arriving a full window after the last write are written
// immediately. Anything else replaces the pending value, which is written
// when the current window ends.
func (r *Reporter) ReportProgress(entityID string, position float64, total *float64) {
	p := newProgress(position, total)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	t := r.timerLocked(entityID)
	now := r.clock.Now()
	elapsed := now.Sub(t.lastFlush)

	if !t.flushed || elapsed >= r.window {
		r.resetLocked(t, now)
		r.mu.Unlock()
		r.write(entityID, p, "immediate")
		return
	}

	t.latest = p
	r.stopLocked(t)
	gen := t.gen
	t.pending = r.clock.AfterFunc(r.window-elapsed, func() { r.deferred(entityID, gen) })
	r.mu.Unlock()
}

// ForceReportProgress drops any pending value for the entity and writes this
// one now, starting a new window.
func (r *Reporter) ForceReportProgress(entityID string, position float64, total *float64) {
	p := newProgress(position, total)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.resetLocked(r.timerLocked(entityID), r.clock.Now())
	r.mu.Unlock()

	r.write(entityID, p, "forced")
}

type job struct {
	id string
	p  api.VideoProgress
}

// Flush writes every pending value now and waits for all writes to finish or
// for ctx to end.
func (r *Reporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	jobs := r.drainLocked()
	r.mu.Unlock()

	r.writeAll(jobs)
	return r.waitContext(ctx)
}

// Close flushes pending values and stops accepting reports. A report that
// races with Close is either part of the final flush or ignored.
func (r *Reporter) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	jobs := r.drainLocked()
	r.mu.Unlock()

	r.writeAll(jobs)
	err := r.waitContext(ctx)
	r.cancel()
	return err
}

// drainLocked collects every pending value and starts a new window for it.
func (r *Reporter) drainLocked() []job {
	var jobs []job
	now := r.clock.Now()
	for id, t := range r.timers {
		if t.pending == nil {
			continue
		}
		jobs = append(jobs, job{id, t.latest})
		r.resetLocked(t, now)
	}
	return jobs
}

func (r *Reporter) writeAll(jobs []job) {
	for _, j := range jobs {
		r.write(j.id, j.p, "final")
	}
}

// Wait blocks until every started write has returned.
func (r *Reporter) Wait() {
	r.wg.Wait()
}

// Pending reports whether a deferred write is scheduled for the entity.
func (r *Reporter) Pending(entityID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[entityID]
	return ok && t.pending != nil
}

func (r *Reporter) waitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reporter) timerLocked(entityID string) *entityTimer {
	t, ok := r.timers[entityID]
	if !ok {
		t = &entityTimer{}
		r.timers[entityID] = t
	}
	return t
}

func (r *Reporter) stopLocked(t *entityTimer) {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.gen++
}

// resetLocked cancels the pending write and starts a new window at now.
func (r *Reporter) resetLocked(t *entityTimer, now time.Time) {
	r.stopLocked(t)
	t.lastFlush = now
	t.flushed = true
}

func (r *Reporter) deferred(entityID string, gen int) {
	r.mu.Lock()
	t, ok := r.timers[entityID]
	if !ok || t.gen != gen || t.pending == nil || r.closed {
		r.mu.Unlock()
		return
	}
	t.pending = nil
	t.lastFlush = r.clock.Now()
	p := t.latest
	r.mu.Unlock()

	r.write(entityID, p, "deferred")
}

func (r *Reporter) write(entityID string, p api.VideoProgress, trigger string) {
	r.metrics.ProgressFlushes.WithLabelValues(trigger).Inc()
	r.log.Debug("flushing progress", "entity", entityID, "position", p.WatchDurationSeconds, "trigger", trigger)

	r.wg.Add(1)
	r.spawn(func() {
		defer r.wg.Done()
		if err := r.writer.UpdateVideoProgress(r.ctx, entityID, p); err != nil {
			r.metrics.ProgressFlushes.WithLabelValues("failed").Inc()
			r.log.Warn("progress write failed", "entity", entityID, "err", err)
		}
	})
}
