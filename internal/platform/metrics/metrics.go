package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics for the snail simulation.
// A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Ticks         prometheus.Counter
	TickDuration  prometheus.Histogram
	Snails        prometheus.Gauge
	Arrivals      prometheus.Counter
	Purchases     prometheus.Counter
	StreamClients prometheus.Gauge
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil. Registering twice against the same registry reuses the
// existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snail_ticks_total",
		Help: "Number of simulation ticks processed.",
	}))
	if err != nil {
		return nil, err
	}

	tickDuration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snail_tick_duration_seconds",
		Help:    "Wall time spent advancing every snail in one tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}))
	if err != nil {
		return nil, err
	}

	snails, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snails",
		Help: "Current number of snails in the store.",
	}))
	if err != nil {
		return nil, err
	}

	arrivals, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snail_arrivals_total",
		Help: "Number of times a snail reached its target.",
	}))
	if err != nil {
		return nil, err
	}

	purchases, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snail_purchases_total",
		Help: "Number of snails bought.",
	}))
	if err != nil {
		return nil, err
	}

	streamClients, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snail_stream_clients",
		Help: "Connected position stream clients.",
	}))
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:      gatherer,
		Ticks:         ticks,
		TickDuration:  tickDuration,
		Snails:        snails,
		Arrivals:      arrivals,
		Purchases:     purchases,
		StreamClients: streamClients,
	}, nil
}

// ObserveTick records one processed tick.
func (c *Collector) ObserveTick(d time.Duration, snails, arrived int) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
	c.Snails.Set(float64(snails))
	c.Arrivals.Add(float64(arrived))
}

// ObservePurchase counts a completed purchase.
func (c *Collector) ObservePurchase() {
	if c == nil {
		return
	}
	c.Purchases.Inc()
}

// StreamConnected adjusts the connected client gauge by delta.
func (c *Collector) StreamConnected(delta int) {
	if c == nil {
		return
	}
	c.StreamClients.Add(float64(delta))
}

// Handler exposes a /metrics handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("metrics: collector already registered with incompatible type: %w", err)
		}
		var zero T
		return zero, fmt.Errorf("metrics: register: %w", err)
	}
	return c, nil
}
