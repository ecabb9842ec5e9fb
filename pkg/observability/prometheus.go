package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromHooks implements every hook interface on top of a private Prometheus
// registry. A single CLI invocation is short-lived, so the collected metrics
// are exported once with [PromHooks.WriteToTextfile] rather than served.
type PromHooks struct {
	Registry *prometheus.Registry

	resolveDuration *prometheus.HistogramVec
	resolved        *prometheus.CounterVec
	applied         *prometheus.CounterVec
	failures        *prometheus.CounterVec
	manifestWrites  *prometheus.CounterVec
	clones          *prometheus.CounterVec
	cloneDuration   prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewPromHooks creates hooks with all collectors registered.
func NewPromHooks() *PromHooks {
	h := &PromHooks{
		Registry: prometheus.NewRegistry(),
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "poet",
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving specifiers, by provider.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poet",
			Name:      "resolved_packages_total",
			Help:      "Dependencies resolved, by provider.",
		}, []string{"provider"}),
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poet",
			Name:      "applied_packages_total",
			Help:      "Dependencies recorded in the environment, by group.",
		}, []string{"group"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poet",
			Name:      "stage_failures_total",
			Help:      "Failed pipeline stages.",
		}, []string{"stage"}),
		manifestWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poet",
			Name:      "manifest_writes_total",
			Help:      "Manifest writes, by result.",
		}, []string{"result"}),
		clones: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poet",
			Name:      "vcs_clones_total",
			Help:      "Repository clones, by result.",
		}, []string{"result"}),
		cloneDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "poet",
			Name:      "vcs_clone_duration_seconds",
			Help:      "Time spent cloning repositories.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poet",
			Name:      "http_requests_total",
			Help:      "HTTP requests to package indexes, by host and status.",
		}, []string{"host", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "poet",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by host.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),
	}
	h.Registry.MustRegister(
		h.resolveDuration, h.resolved, h.applied, h.failures, h.manifestWrites,
		h.clones, h.cloneDuration, h.httpRequests, h.httpDuration,
	)
	return h
}

// WriteToTextfile writes the collected metrics in the text exposition format,
// suitable for the node exporter textfile collector.
func (h *PromHooks) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, h.Registry)
}

func (h *PromHooks) OnResolveStart(context.Context, string, int) {}

func (h *PromHooks) OnResolveComplete(_ context.Context, provider string, count int, d time.Duration, err error) {
	h.resolveDuration.WithLabelValues(provider).Observe(d.Seconds())
	if err != nil {
		h.failures.WithLabelValues("resolve").Inc()
		return
	}
	h.resolved.WithLabelValues(provider).Add(float64(count))
}

func (h *PromHooks) OnApplyStart(context.Context, string, int) {}

func (h *PromHooks) OnApplyComplete(_ context.Context, group string, count int, _ time.Duration, err error) {
	if err != nil {
		h.failures.WithLabelValues("apply").Inc()
		return
	}
	h.applied.WithLabelValues(group).Add(float64(count))
}

func (h *PromHooks) OnManifestWrite(_ context.Context, _ string, _ time.Duration, err error) {
	h.manifestWrites.WithLabelValues(result(err)).Inc()
}

func (h *PromHooks) OnCloneStart(context.Context, string) {}

func (h *PromHooks) OnCloneComplete(_ context.Context, _ string, d time.Duration, err error) {
	h.cloneDuration.Observe(d.Seconds())
	h.clones.WithLabelValues(result(err)).Inc()
}

func (h *PromHooks) OnRequest(context.Context, string, string, string) {}

func (h *PromHooks) OnResponse(_ context.Context, _, host, _ string, status int, d time.Duration) {
	h.httpRequests.WithLabelValues(host, strconv.Itoa(status)).Inc()
	h.httpDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (h *PromHooks) OnError(_ context.Context, _, host, _ string, _ error) {
	h.httpRequests.WithLabelValues(host, "error").Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
