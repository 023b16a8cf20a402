package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chat-relay/internal/usecase"
)

const namespace = "chat_relay"

// Recorder implements usecase.Observer on Prometheus collectors.
type Recorder struct {
	turns           *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
}

// NewRecorder creates the relay collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		return nil, errors.New("metrics: registerer must not be nil")
	}
	r := &Recorder{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Chat turns handled, by result kind and reason.",
		}, []string{"kind", "reason"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of generateContent calls, by outcome reason.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"reason"}),
	}
	for _, c := range []prometheus.Collector{r.turns, r.upstreamLatency} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register collector: %w", err)
		}
	}
	return r, nil
}

func (r *Recorder) ObserveResult(res usecase.Result) {
	r.turns.WithLabelValues(string(res.Kind), string(res.Reason)).Inc()
}

func (r *Recorder) ObserveUpstream(res usecase.Result, elapsed time.Duration) {
	r.upstreamLatency.WithLabelValues(string(res.Reason)).Observe(elapsed.Seconds())
}

// Handler serves the exposition format for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
