package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "community"

// Metrics holds every collector used by the sync layer.
type Metrics struct {
	// Realtime connection
	RealtimeState     *prometheus.GaugeVec
	ReconnectAttempts prometheus.Counter
	HeartbeatTimeouts prometheus.Counter
	FallbackPolls     prometheus.Counter
	EnvelopesReceived *prometheus.CounterVec
	EnvelopesDropped  *prometheus.CounterVec
	MessagesSent      prometheus.Counter

	// Local cache
	CacheInvalidations prometheus.Counter
	CacheFetches       *prometheus.CounterVec

	// Optimistic writes
	Mutations        *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec

	// Progress reporting
	ProgressFlushes *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RealtimeState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "realtime_state",
				Help:      "1 for the current realtime connection state, 0 otherwise",
			},
			[]string{"state"},
		),
		ReconnectAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_reconnect_attempts_total",
			Help:      "Reconnect attempts scheduled after a non-clean close",
		}),
		HeartbeatTimeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_heartbeat_timeouts_total",
			Help:      "Connections closed because no pong arrived in time",
		}),
		FallbackPolls: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_fallback_polls_total",
			Help:      "Unread count invalidations issued by fallback polling",
		}),
		EnvelopesReceived: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "realtime_envelopes_total",
				Help:      "Inbound envelopes by type",
			},
			[]string{"type"},
		),
		EnvelopesDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "realtime_envelopes_dropped_total",
				Help:      "Inbound envelopes dropped before or during dispatch",
			},
			[]string{"reason"},
		),
		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_messages_sent_total",
			Help:      "Outbound messages written to the transport",
		}),
		CacheInvalidations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Prefix invalidations issued against the local store",
		}),
		CacheFetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_fetches_total",
				Help:      "Refetches by outcome (ok, error, cancelled)",
			},
			[]string{"outcome"},
		),
		Mutations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Optimistic mutations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		MutationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mutation_duration_seconds",
				Help:      "Network time of optimistic mutations",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		ProgressFlushes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "progress_flushes_total",
				Help:      "Progress writes by trigger (immediate, deferred, forced, final) and failures",
			},
			[]string{"trigger"},
		),
	}
}

// Nop returns collectors registered on a private registry.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// SetState marks state as the only active realtime state.
func (m *Metrics) SetState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.RealtimeState.WithLabelValues(s).Set(v)
	}
}
