package metrics

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
}

func newCollectors(reg prometheus.Registerer) (*collectors, error) {
	c := &collectors{
		// Labels: cwe, used_rag
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fixd",
				Subsystem: "remediation",
				Name:      "requests_total",
				Help:      "Total number of remediation requests recorded",
			},
			[]string{"cwe", "used_rag"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fixd",
				Subsystem: "remediation",
				Name:      "latency_seconds",
				Help:      "End-to-end remediation latency in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
			},
			[]string{"model"},
		),
		// Labels: direction (input, output)
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fixd",
				Subsystem: "remediation",
				Name:      "tokens_total",
				Help:      "Total tokens accounted by direction",
			},
			[]string{"direction"},
		),
	}

	if reg == nil {
		return c, nil
	}
	var err error
	if c.requests, err = register(reg, c.requests); err != nil {
		return nil, err
	}
	if c.latency, err = register(reg, c.latency); err != nil {
		return nil, err
	}
	if c.tokens, err = register(reg, c.tokens); err != nil {
		return nil, err
	}
	return c, nil
}

// register adds col to reg, returning the collector already registered
// under the same name if there is one.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, fmt.Errorf("registering metrics collector: %w", err)
	}
	return col, nil
}

func (c *collectors) observe(rec Record) {
	c.requests.WithLabelValues(rec.CWE, strconv.FormatBool(rec.UsedRAG)).Inc()
	c.latency.WithLabelValues(rec.ModelUsed).Observe(float64(rec.LatencyMS) / 1000)
	c.tokens.WithLabelValues("input").Add(float64(rec.InputTokens))
	c.tokens.WithLabelValues("output").Add(float64(rec.OutputTokens))
}

func (c *collectors) unregister(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	reg.Unregister(c.requests)
	reg.Unregister(c.latency)
	reg.Unregister(c.tokens)
}
