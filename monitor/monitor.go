// monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wfunc/hexarace/logger"
)

type Metrics struct {
	OnlineConnections prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	EventsReceived    *prometheus.CounterVec
	EventLatency      prometheus.Histogram
	Rejections        *prometheus.CounterVec
	Rolls             *prometheus.CounterVec
	MatchesFinished   prometheus.Counter
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlineConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_connections",
			Help:      "Number of open websocket connections",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of active rooms",
		}),
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total number of client events received",
		}, []string{"event"}),
		EventLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_latency_seconds",
			Help:      "Client event processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "room:error replies by code",
		}, []string{"code"}),
		Rolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rolls_total",
			Help:      "Dice rolls by mode",
		}, []string{"mode"}),
		MatchesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_finished_total",
			Help:      "Races that ended with a winner",
		}),
	}

	reg.MustRegister(
		m.OnlineConnections,
		m.ActiveRooms,
		m.EventsReceived,
		m.EventLatency,
		m.Rejections,
		m.Rolls,
		m.MatchesFinished,
	)

	return m
}

// Monitor 持有独立的 registry，多个实例可以共存（测试里很常见）
type Monitor struct {
	metrics    *Metrics
	registry   *prometheus.Registry
	startTime  time.Time
	eventCount atomic.Int64
}

func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Monitor{
		metrics:   NewMetrics(namespace, reg),
		registry:  reg,
		startTime: time.Now(),
	}
}

var expvarOwner atomic.Pointer[Monitor]

// Handler serves /metrics and the expvar page at /debug/vars.
func (m *Monitor) Handler() http.Handler {
	// expvar 名字是进程全局的，只能发布一次；之后的 Monitor 复用同一组变量
	if expvarOwner.CompareAndSwap(nil, m) {
		expvar.Publish("uptime_seconds", expvar.Func(func() any {
			return time.Since(expvarOwner.Load().startTime).Seconds()
		}))
		expvar.Publish("events", expvar.Func(func() any {
			return expvarOwner.Load().eventCount.Load()
		}))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}

// StartServer blocks serving metrics until ctx is cancelled.
func (m *Monitor) StartServer(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Log.Infof("Metrics server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Monitor) IncOnlineConnections() {
	m.metrics.OnlineConnections.Inc()
}

func (m *Monitor) DecOnlineConnections() {
	m.metrics.OnlineConnections.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) IncEventsReceived(event string) {
	m.metrics.EventsReceived.WithLabelValues(event).Inc()
	m.eventCount.Add(1)
}

func (m *Monitor) ObserveEventLatency(duration time.Duration) {
	m.metrics.EventLatency.Observe(duration.Seconds())
}

func (m *Monitor) IncRejection(code string) {
	m.metrics.Rejections.WithLabelValues(code).Inc()
}

func (m *Monitor) IncRolls(mode string) {
	m.metrics.Rolls.WithLabelValues(mode).Inc()
}

func (m *Monitor) IncMatchesFinished() {
	m.metrics.MatchesFinished.Inc()
}
