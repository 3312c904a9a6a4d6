package observability

import (
	"context"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
)

const (
	DefaultNamespace  = "retail_assistant"
	maxRecentActivity = 10

	activityName = "process_message"
	typeFunction = "function"
	typeTool     = "tool"
	statusOK     = "success"
	statusError  = "error"
)

// Collector records turn metrics into Prometheus instruments and keeps the
// in-process aggregate served by the dashboard endpoint.
type Collector struct {
	registry *prometheus.Registry

	turns        *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	turnDuration prometheus.Histogram

	mu            sync.Mutex
	totalQueries  int
	totalDuration time.Duration
	toolCallCount int
	errorCount    int
	recent        []contractx.Activity
}

var (
	_ contractx.TurnObserver    = (*Collector)(nil)
	_ contractx.MetricsProvider = (*Collector)(nil)
)

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Processed turns by intent and status.",
		}, []string{"intent", "status"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Executed tool calls by tool name.",
		}, []string{"tool"}),
		turnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time spent processing one turn.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		recent: make([]contractx.Activity, 0, maxRecentActivity),
	}
}

func (c *Collector) ObserveTurn(obs contractx.TurnObservation) {
	status := statusOK
	if obs.Error != "" {
		status = statusError
	}
	intent := string(obs.Intent)
	if intent == "" {
		intent = "unknown"
	}

	c.turns.WithLabelValues(intent, status).Inc()
	c.turnDuration.Observe(obs.Duration.Seconds())
	for _, name := range obs.ToolCalls {
		c.toolCalls.WithLabelValues(name).Inc()
	}

	at := obs.At
	if at.IsZero() {
		at = time.Now()
	}
	kind := typeFunction
	if len(obs.ToolCalls) > 0 {
		kind = typeTool
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalQueries++
	c.totalDuration += obs.Duration
	c.toolCallCount += len(obs.ToolCalls)
	if status == statusError {
		c.errorCount++
	}

	// newest first
	activity := contractx.Activity{Timestamp: at.UTC(), Name: activityName, Type: kind, Status: status}
	c.recent = append([]contractx.Activity{activity}, c.recent...)
	if len(c.recent) > maxRecentActivity {
		c.recent = c.recent[:maxRecentActivity]
	}
}

func (c *Collector) Snapshot(ctx context.Context) (contractx.MetricsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return contractx.MetricsSnapshot{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.totalQueries == 0 {
		return contractx.EmptyMetrics(), nil
	}

	avg := c.totalDuration.Seconds() / float64(c.totalQueries)
	success := float64(c.totalQueries-c.errorCount) / float64(c.totalQueries) * 100

	return contractx.MetricsSnapshot{
		TotalQueries:    c.totalQueries,
		AvgResponseTime: roundTo(avg, 3),
		ToolCallsCount:  c.toolCallCount,
		RecentActivity:  append([]contractx.Activity(nil), c.recent...),
		ErrorCount:      c.errorCount,
		SuccessRate:     roundTo(success, 1),
	}, nil
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
