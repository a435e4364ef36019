package archive

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the ArchivePipeline's task counters and group
// completion latency, grounded on livepeer-catalyst-api's habit of
// instrumenting pipeline stages with client_golang. Additive
// observability, per SPEC_FULL.md §4's note that the metrics endpoint
// is not scope creep on spec.md's Non-goals.
type Metrics struct {
	tasksPending   *prometheus.CounterVec
	tasksRunning   *prometheus.CounterVec
	tasksCompleted *prometheus.CounterVec
	tasksErrored   *prometheus.CounterVec
	tasksAborted   *prometheus.CounterVec

	groupLatency *prometheus.HistogramVec
}

// NewMetrics constructs and registers the pipeline's counters against
// reg. Pass prometheus.NewRegistry() for test isolation, or
// prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasksPending: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dvdarchive_tasks_pending_total",
			Help: "Tasks submitted to the archive pipeline, by prefix kind.",
		}, []string{"prefix_kind"}),
		tasksRunning: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dvdarchive_tasks_running_total",
			Help: "Tasks that started running, by prefix kind.",
		}, []string{"prefix_kind"}),
		tasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dvdarchive_tasks_completed_total",
			Help: "Tasks that finished successfully, by prefix kind.",
		}, []string{"prefix_kind"}),
		tasksErrored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dvdarchive_tasks_errored_total",
			Help: "Tasks that errored, by prefix kind.",
		}, []string{"prefix_kind"}),
		tasksAborted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dvdarchive_tasks_aborted_total",
			Help: "Tasks that were cancelled, by prefix kind.",
		}, []string{"prefix_kind"}),
		groupLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dvdarchive_group_completion_latency_seconds",
			Help:    "Wall time from a task group's first submission to its completion.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s .. ~2.3h
		}, []string{"prefix_kind"}),
	}
	reg.MustRegister(m.tasksPending, m.tasksRunning, m.tasksCompleted, m.tasksErrored, m.tasksAborted, m.groupLatency)
	return m
}

// prefixKind maps a concrete task prefix (e.g. "AM_TR_myproj_01_intro")
// down to its kind label ("AM_ST"/"AM_TR"/"AM_AR") so the metric
// cardinality doesn't grow with every build.
func prefixKind(prefix string) string {
	for _, kind := range []string{kindStream, kindTranscode, kindArchive} {
		if len(prefix) >= len(kind) && prefix[:len(kind)] == kind {
			return kind
		}
	}
	return "unknown"
}

func (m *Metrics) observePending(prefix string)   { m.tasksPending.WithLabelValues(prefixKind(prefix)).Inc() }
func (m *Metrics) observeRunning(prefix string)    { m.tasksRunning.WithLabelValues(prefixKind(prefix)).Inc() }
func (m *Metrics) observeCompleted(prefix string)  { m.tasksCompleted.WithLabelValues(prefixKind(prefix)).Inc() }
func (m *Metrics) observeErrored(prefix string)    { m.tasksErrored.WithLabelValues(prefixKind(prefix)).Inc() }
func (m *Metrics) observeAborted(prefix string)    { m.tasksAborted.WithLabelValues(prefixKind(prefix)).Inc() }
func (m *Metrics) observeGroupLatency(prefix string, seconds float64) {
	m.groupLatency.WithLabelValues(prefixKind(prefix)).Observe(seconds)
}
