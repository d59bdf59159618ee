// Package metrics holds the Prometheus collectors for game detection.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gamebot"

// Drop reasons for notifications that were not sent
const (
	DropNoRegistrants = "no_registrants"
	DropOnlySelf      = "only_self"
	DropNoChannel     = "no_channel"
	DropLookupFailed  = "lookup_failed"
	DropSendFailed    = "send_failed"
	DropDispatchPanic = "panic"
)

// Image lookup results
const (
	ImageStored      = "stored"
	ImageFound       = "found"
	ImageUnavailable = "unavailable"
)

// Metrics is the set of collectors the poller and dispatcher report to.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	ticks                prometheus.Counter
	tickFailures         prometheus.Counter
	startEvents          prometheus.Counter
	notificationsSent    prometheus.Counter
	notificationsDropped *prometheus.CounterVec
	imageLookups         *prometheus.CounterVec
	trackedMembers       prometheus.Gauge
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_ticks_total",
			Help:      "Presence polling ticks run.",
		}),
		tickFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_tick_failures_total",
			Help:      "Presence polling ticks that failed.",
		}),
		startEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "game_start_events_total",
			Help:      "Game start transitions detected.",
		}),
		notificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Game start notifications delivered.",
		}),
		notificationsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Game start events that produced no notification, by reason.",
		}, []string{"reason"}),
		imageLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_lookups_total",
			Help:      "Notification image resolutions, by result.",
		}, []string{"result"}),
		trackedMembers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_members",
			Help:      "Members currently tracked as playing.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Tick() {
	if m != nil {
		m.ticks.Inc()
	}
}

func (m *Metrics) TickFailed() {
	if m != nil {
		m.tickFailures.Inc()
	}
}

func (m *Metrics) StartEvents(n int) {
	if m != nil {
		m.startEvents.Add(float64(n))
	}
}

func (m *Metrics) NotificationSent() {
	if m != nil {
		m.notificationsSent.Inc()
	}
}

func (m *Metrics) NotificationDropped(reason string) {
	if m != nil {
		m.notificationsDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ImageLookup(result string) {
	if m != nil {
		m.imageLookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) TrackedMembers(n int) {
	if m != nil {
		m.trackedMembers.Set(float64(n))
	}
}
