// Package metrics holds the Prometheus collectors shared by the relay, the
// gateway and the RPC client. A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sigbridge"

type Metrics struct {
	EventsReceived  prometheus.Counter
	EventsDropped   *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	GatewayRequests *prometheus.CounterVec
	RPCCalls        *prometheus.CounterVec
	EventListeners  prometheus.Gauge
}

func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		EventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "events_received_total",
			Help:      "Notifications drawn from the receive subscription",
		}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "notifications_dropped_total",
			Help:      "Receive notifications discarded before reaching a consumer, by reason",
		}, []string{"reason"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "webhook_deliveries_total",
			Help:      "Webhook delivery attempts by result",
		}, []string{"result"}),
		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Gateway action requests by action and HTTP status",
		}, []string{"action", "status"}),
		RPCCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "JSON-RPC calls issued to the daemon by method and outcome",
		}, []string{"method", "outcome"}),
		EventListeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "listeners",
			Help:      "Connected live event listeners",
		}),
	}

	for _, c := range []prometheus.Collector{m.EventsReceived, m.EventsDropped, m.Deliveries, m.GatewayRequests, m.RPCCalls, m.EventListeners} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) ObserveEvent() {
	if m == nil {
		return
	}
	m.EventsReceived.Inc()
}

func (m *Metrics) ObserveDrop(reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveDelivery(err error) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(outcome(err, "delivered")).Inc()
}

func (m *Metrics) ObserveGatewayRequest(action string, status int) {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues(action, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveCall(method string, err error) {
	if m == nil {
		return
	}
	m.RPCCalls.WithLabelValues(method, outcome(err, "ok")).Inc()
}

func (m *Metrics) SetListeners(n int) {
	if m == nil {
		return
	}
	m.EventListeners.Set(float64(n))
}

func outcome(err error, success string) string {
	if err != nil {
		return "failed"
	}
	return success
}
