package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
)

const namespace = "fire_sentinel"

// Result label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultPositive = "positive"
	ResultNegative = "negative"
)

// Episode outcome label values.
const (
	OutcomeStarted   = "started"
	OutcomeDiscarded = "discarded"
	OutcomeAlarmed   = "alarmed"
	OutcomeCleared   = "cleared"
)

// Metrics holds the collectors of one process. A nil *Metrics ignores every call.
type Metrics struct {
	frames           *prometheus.CounterVec
	commands         *prometheus.CounterVec
	episodes         *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	notificationTime prometheus.Histogram
	phase            prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames handled by the control loop, by result.",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Actuator commands sent, by command and result.",
		}, []string{"command", "result"}),
		episodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "episodes_total",
			Help:      "Fire episode transitions, by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Finished alert notifications, by result.",
		}, []string{"result"}),
		notificationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_duration_seconds",
			Help:      "Time spent delivering one alert notification.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase",
			Help:      "Current controller phase (0 idle, 1 confirming, 2 alarmed).",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.frames,
		m.commands,
		m.episodes,
		m.notifications,
		m.notificationTime,
		m.phase,
	)

	// Every command series exists from the start so rate queries see zeros.
	for _, cmd := range fire.Commands() {
		m.commands.WithLabelValues(string(cmd), ResultOK)
		m.commands.WithLabelValues(string(cmd), ResultError)
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// FrameRead counts a frame and whether it carried a fire signal.
func (m *Metrics) FrameRead(signal bool) {
	if m == nil {
		return
	}

	result := ResultNegative
	if signal {
		result = ResultPositive
	}

	m.frames.WithLabelValues(result).Inc()
}

// FrameFailed counts a failed frame read.
func (m *Metrics) FrameFailed() {
	if m == nil {
		return
	}

	m.frames.WithLabelValues(ResultError).Inc()
}

// CommandSent counts one actuator send.
func (m *Metrics) CommandSent(cmd fire.Command, err error) {
	if m == nil {
		return
	}

	m.commands.WithLabelValues(string(cmd), result(err)).Inc()
}

// Transition counts an episode transition; TransitionNone is ignored.
func (m *Metrics) Transition(t fire.Transition) {
	if m == nil {
		return
	}

	var outcome string

	switch t {
	case fire.TransitionStarted:
		outcome = OutcomeStarted
	case fire.TransitionDiscarded:
		outcome = OutcomeDiscarded
	case fire.TransitionAlarmed:
		outcome = OutcomeAlarmed
	case fire.TransitionCleared:
		outcome = OutcomeCleared
	default:
		return
	}

	m.episodes.WithLabelValues(outcome).Inc()
}

// NotificationFinished records the result and duration of one notification.
func (m *Metrics) NotificationFinished(err error, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.notifications.WithLabelValues(result(err)).Inc()
	m.notificationTime.Observe(elapsed.Seconds())
}

// SetPhase publishes the current phase.
func (m *Metrics) SetPhase(p fire.Phase) {
	if m == nil {
		return
	}

	m.phase.Set(float64(p))
}

func result(err error) string {
	if err != nil {
		return ResultError
	}

	return ResultOK
}
