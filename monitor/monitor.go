// monitor/monitor.go
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wfunc/roulette/auth"
	"github.com/wfunc/roulette/models"
	"github.com/wfunc/roulette/network"
)

type Metrics struct {
	Sessions         *prometheus.GaugeVec
	Refusals         *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	StaleSignals     *prometheus.CounterVec
	RoundsSettled    prometheus.Counter
	BetsSettled      *prometheus.CounterVec
	StakeTotal       prometheus.Counter
	PayoutTotal      prometheus.Counter
	DispatchLatency  prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Number of registered sessions by role",
		}, []string{"role"}),
		Refusals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refusals_total",
			Help:      "Connections refused at admission by reason",
		}, []string{"reason"}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound signals by event",
		}, []string{"event"}),
		StaleSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_signals_total",
			Help:      "Signals dropped for arriving in the wrong state or from the wrong role",
		}, []string{"event"}),
		RoundsSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_settled_total",
			Help:      "Bet lists settled",
		}),
		BetsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bets_settled_total",
			Help:      "Bet entries settled by outcome",
		}, []string{"outcome"}),
		StakeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stake_total",
			Help:      "Sum of all settled stakes",
		}),
		PayoutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_total",
			Help:      "Sum of all returned amounts on winning entries",
		}),
		DispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_latency_seconds",
			Help:      "Time spent dispatching one inbound signal",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Sessions,
		m.Refusals,
		m.MessagesReceived,
		m.StaleSignals,
		m.RoundsSettled,
		m.BetsSettled,
		m.StakeTotal,
		m.PayoutTotal,
		m.DispatchLatency,
	}
}

// Monitor owns a registry so several instances can live in one process (tests).
type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	m := &Monitor{
		metrics:   NewMetrics(namespace),
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	m.registry.MustRegister(m.metrics.collectors()...)
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the monitor started",
		}, func() float64 {
			return time.Since(m.startTime).Seconds()
		}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

func (m *Monitor) SessionOpened(role auth.Role) {
	m.metrics.Sessions.WithLabelValues(string(role)).Inc()
}

func (m *Monitor) SessionClosed(role auth.Role) {
	m.metrics.Sessions.WithLabelValues(string(role)).Dec()
}

func (m *Monitor) Refused(reason string) {
	m.metrics.Refusals.WithLabelValues(reason).Inc()
}

func (m *Monitor) MessageReceived(event network.Event) {
	m.metrics.MessagesReceived.WithLabelValues(string(event)).Inc()
}

func (m *Monitor) StaleSignal(event network.Event) {
	m.metrics.StaleSignals.WithLabelValues(string(event)).Inc()
}

func (m *Monitor) RoundSettled(rec *models.RoundRecord) {
	m.metrics.RoundsSettled.Inc()
	m.metrics.BetsSettled.WithLabelValues("won").Add(float64(len(rec.SuccessfulBets)))
	m.metrics.BetsSettled.WithLabelValues("lost").Add(float64(len(rec.FailedBets)))
	// Counters panic on negative values.
	for _, b := range rec.Bets {
		if b.Amount > 0 {
			m.metrics.StakeTotal.Add(float64(b.Amount))
		}
	}
	if rec.TotalWin > 0 {
		m.metrics.PayoutTotal.Add(float64(rec.TotalWin))
	}
}

func (m *Monitor) ObserveDispatch(duration time.Duration) {
	m.metrics.DispatchLatency.Observe(duration.Seconds())
}
