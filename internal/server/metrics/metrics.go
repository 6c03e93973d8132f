// Package metrics exposes relay counters in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/jimrelay/internal/logging"
	"github.com/dmitrijs2005/jimrelay/internal/protocol"
)

const namespace = "jimrelay"

// Handshake results.
const (
	HandshakeOK       = "ok"
	HandshakeRejected = "rejected"
)

// Metrics owns a private registry, so several relays can run in one
// process (tests do).
type Metrics struct {
	registry *prometheus.Registry

	connections      prometheus.Counter
	sessions         prometheus.Gauge
	requests         *prometheus.CounterVec
	handshakes       *prometheus.CounterVec
	messages         prometheus.Counter
	deliveryFailures prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Number of accepted connections",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "authenticated_sessions",
			Help:      "Number of authenticated sessions",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Number of decoded frames by action",
		}, []string{"action"}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Number of finished handshakes by result",
		}, []string{"result"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_relayed_total",
			Help:      "Number of messages forwarded to a recipient",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Number of messages that could not be queued to an online recipient",
		}),
	}

	m.registry.MustRegister(
		m.connections,
		m.sessions,
		m.requests,
		m.handshakes,
		m.messages,
		m.deliveryFailures,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) ConnectionAccepted() { m.connections.Inc() }

func (m *Metrics) SessionOpened() { m.sessions.Inc() }

func (m *Metrics) SessionClosed() { m.sessions.Dec() }

// Request counts a decoded frame. Frames without an action (handshake
// answers) are counted as "response", actions outside the protocol as
// "unknown" so peers cannot add label values.
func (m *Metrics) Request(action protocol.Action) {
	label := string(action)
	switch {
	case action == "":
		label = "response"
	case !action.Known():
		label = "unknown"
	}
	m.requests.WithLabelValues(label).Inc()
}

func (m *Metrics) Handshake(result string) { m.handshakes.WithLabelValues(result).Inc() }

func (m *Metrics) MessageRelayed() { m.messages.Inc() }

func (m *Metrics) DeliveryFailed() { m.deliveryFailures.Inc() }

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger logging.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	return m.serve(ctx, ln, logger)
}

func (m *Metrics) serve(ctx context.Context, ln net.Listener, logger logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "metrics endpoint listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
