package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/community/pkg/api"
	"github.com/zfogg/sidechain/community/pkg/clock"
	"github.com/zfogg/sidechain/community/pkg/metrics"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type write struct {
	entity   string
	position float64
	at       time.Duration
}

type fakeWriter struct {
	clk *clock.Manual
	err error

	mu     sync.Mutex
	writes []write
	totals []*float64
}

func (w *fakeWriter) UpdateVideoProgress(ctx context.Context, lessonID string, p api.VideoProgress) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, write{lessonID, p.WatchDurationSeconds, w.clk.Now().Sub(start)})
	w.totals = append(w.totals, p.VideoTotalSeconds)
	return w.err
}

func (w *fakeWriter) all() []write {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]write(nil), w.writes...)
}

func newReporter(t *testing.T) (*Reporter, *fakeWriter, *clock.Manual, *metrics.Metrics) {
	t.Helper()
	clk := clock.NewManual(start)
	w := &fakeWriter{clk: clk}
	m := metrics.New(prometheus.NewRegistry())
	r := New(w, WithClock(clk), WithMetrics(m))
	r.spawn = func(f func()) { f() }
	return r, w, clk, m
}

func TestFirstReportIsImmediate(t *testing.T) {
	r, w, _, _ := newReporter(t)
	total := 300.0

	r.ReportProgress("lesson-1", 1.5, &total)

	assert.Equal(t, []write{{"lesson-1", 1.5, 0}}, w.all())
	require.NotNil(t, w.totals[0])
	assert.Equal(t, 300.0, *w.totals[0])
	assert.False(t, r.Pending("lesson-1"))
}

func TestReportsWithinWindowCoalesce(t *testing.T) {
	r, w, clk, m := newReporter(t)
	r.ReportProgress("lesson-1", 0, nil)

	for i := 1; i <= 9; i++ {
		clk.Advance(time.Second)
		r.ReportProgress("lesson-1", float64(i), nil)
	}
	assert.Len(t, w.all(), 1, "nothing else is written inside the window")
	assert.True(t, r.Pending("lesson-1"))

	clk.Advance(time.Second)

	assert.Equal(t, []write{
		{"lesson-1", 0, 0},
		{"lesson-1", 9, 10 * time.Second},
	}, w.all())
	assert.False(t, r.Pending("lesson-1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProgressFlushes.WithLabelValues("immediate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProgressFlushes.WithLabelValues("deferred")))
}

func TestReportAfterWindowIsImmediate(t *testing.T) {
	r, w, clk, _ := newReporter(t)
	r.ReportProgress("lesson-1", 0, nil)

	clk.Advance(10 * time.Second)
	r.ReportProgress("lesson-1", 10, nil)

	assert.Equal(t, []write{{"lesson-1", 0, 0}, {"lesson-1", 10, 10 * time.Second}}, w.all())
	assert.Equal(t, 0, clk.Pending())
}

func TestWriteCountIsBounded(t *testing.T) {
	r, w, clk, _ := newReporter(t)

	for i := 0; i < 600; i++ {
		r.ReportProgress("lesson-1", float64(i)/10, nil)
		clk.Advance(100 * time.Millisecond)
	}
	clk.Advance(10 * time.Second)

	assert.LessOrEqual(t, len(w.all()), 60/10+2)
	assert.Equal(t, 59.9, w.all()[len(w.all())-1].position)
}

func TestForceReportCancelsPending(t *testing.T) {
	r, w, clk, m := newReporter(t)
	r.ReportProgress("lesson-1", 0, nil)
	clk.Advance(2 * time.Second)
	r.ReportProgress("lesson-1", 2, nil)
	require.True(t, r.Pending("lesson-1"))

	r.ForceReportProgress("lesson-1", 3, nil)

	assert.Equal(t, []write{{"lesson-1", 0, 0}, {"lesson-1", 3, 2 * time.Second}}, w.all())
	assert.False(t, r.Pending("lesson-1"))

	clk.Advance(time.Minute)
	assert.Len(t, w.all(), 2, "the cancelled value is never written")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProgressFlushes.WithLabelValues("forced")))

	clk.Advance(time.Second)
	r.ReportProgress("lesson-1", 4, nil)
	assert.Len(t, w.all(), 3, "forced write restarted the window long ago")
}

func TestForceReportStartsWindow(t *testing.T) {
	r, w, clk, _ := newReporter(t)
	r.ForceReportProgress("lesson-1", 5, nil)
	clk.Advance(3 * time.Second)
	r.ReportProgress("lesson-1", 8, nil)

	assert.Len(t, w.all(), 1)
	assert.Equal(t, []time.Duration{7 * time.Second}, clk.Deadlines())
}

func TestEntitiesAreIndependent(t *testing.T) {
	r, w, clk, _ := newReporter(t)
	r.ReportProgress("a", 1, nil)
	clk.Advance(time.Second)
	r.ReportProgress("b", 1, nil)
	r.ReportProgress("a", 2, nil)

	assert.Equal(t, []write{{"a", 1, 0}, {"b", 1, time.Second}}, w.all())
	assert.True(t, r.Pending("a"))
	assert.False(t, r.Pending("b"))
}

func TestCloseFlushesPendingValue(t *testing.T) {
	r, w, clk, m := newReporter(t)
	r.ReportProgress("lesson-1", 0, nil)
	clk.Advance(time.Second)
	r.ReportProgress("lesson-1", 1, nil)

	require.NoError(t, r.Close(context.Background()))

	assert.Equal(t, []write{{"lesson-1", 0, 0}, {"lesson-1", 1, time.Second}}, w.all())
	assert.Equal(t, 0, clk.Pending())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProgressFlushes.WithLabelValues("final")))

	r.ReportProgress("lesson-1", 2, nil)
	r.ForceReportProgress("lesson-1", 3, nil)
	assert.Len(t, w.all(), 2)
}

type gatedWriter struct {
	fakeWriter
	gate chan struct{}
}

func (w *gatedWriter) UpdateVideoProgress(ctx context.Context, lessonID string, p api.VideoProgress) error {
	<-w.gate
	return w.fakeWriter.UpdateVideoProgress(ctx, lessonID, p)
}

func TestReportDuringCloseIsIgnored(t *testing.T) {
	clk := clock.NewManual(start)
	w := &gatedWriter{fakeWriter: fakeWriter{clk: clk}, gate: make(chan struct{})}
	r := New(w, WithClock(clk))

	r.ReportProgress("lesson-1", 0, nil)
	clk.Advance(time.Second)
	r.ReportProgress("lesson-1", 1, nil)
	require.True(t, r.Pending("lesson-1"))

	closed := make(chan error, 1)
	go func() { closed <- r.Close(context.Background()) }()
	require.Eventually(t, func() bool { return !r.Pending("lesson-1") }, time.Second, time.Millisecond)

	// Close is still waiting on the gated writes here.
	r.ReportProgress("lesson-1", 2, nil)
	assert.False(t, r.Pending("lesson-1"))
	assert.Equal(t, 0, clk.Pending())

	close(w.gate)
	require.NoError(t, <-closed)

	var positions []float64
	for _, wr := range w.all() {
		positions = append(positions, wr.position)
	}
	assert.ElementsMatch(t, []float64{0, 1}, positions)
}

func TestWriteFailureKeepsWindow(t *testing.T) {
	r, w, clk, m := newReporter(t)
	w.err = errors.New("503")

	r.ReportProgress("lesson-1", 0, nil)
	clk.Advance(time.Second)
	r.ReportProgress("lesson-1", 1, nil)

	assert.Len(t, w.all(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProgressFlushes.WithLabelValues("failed")))
	assert.Equal(t, []time.Duration{9 * time.Second}, clk.Deadlines())
}

func TestAsyncWritesAreAwaited(t *testing.T) {
	clk := clock.NewManual(start)
	w := &fakeWriter{clk: clk}
	r := New(w, WithClock(clk), WithWindow(5*time.Second))

	r.ForceReportProgress("lesson-1", 42, nil)
	r.Wait()

	assert.Equal(t, []write{{"lesson-1", 42, 0}}, w.all())
	require.NoError(t, r.Close(context.Background()))
}
