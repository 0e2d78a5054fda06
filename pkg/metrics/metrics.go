package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	reconcileOps     *prometheus.CounterVec
	versionConflicts *prometheus.CounterVec
	publishTotal     *prometheus.CounterVec
	publishLatency   *prometheus.HistogramVec
	snapshotsTotal   *prometheus.CounterVec
	lookupCache      *prometheus.CounterVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		reconcileOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "showplan",
			Name:      "reconcile_ops_total",
			Help:      "Rows touched by reconciliation, by entity and operation.",
		}, []string{"entity", "op"}),
		versionConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "showplan",
			Name:      "version_conflicts_total",
			Help:      "Optimistic version check failures, by operation.",
		}, []string{"operation"}),
		publishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "showplan",
			Name:      "publish_total",
			Help:      "Schedule publish attempts, by result.",
		}, []string{"result"}),
		publishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "showplan",
			Name:      "publish_duration_seconds",
			Help:      "Latency distribution for schedule publish.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"result"}),
		snapshotsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "showplan",
			Name:      "snapshots_total",
			Help:      "Plan snapshots captured, by reason.",
		}, []string{"reason"}),
		lookupCache: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "showplan",
			Name:      "lookup_cache_total",
			Help:      "Reference key cache lookups, by kind and result (hit/miss).",
		}, []string{"kind", "result"}),
	}
})

func get() *metrics {
	return metricsSingleton()
}

// RecordReconcile 记录对账产生的行变更数量
func RecordReconcile(entity string, created, updated, deleted int) {
	m := get()
	if created > 0 {
		m.reconcileOps.WithLabelValues(entity, "create").Add(float64(created))
	}
	if updated > 0 {
		m.reconcileOps.WithLabelValues(entity, "update").Add(float64(updated))
	}
	if deleted > 0 {
		m.reconcileOps.WithLabelValues(entity, "delete").Add(float64(deleted))
	}
}

// RecordVersionConflict 记录一次版本冲突
func RecordVersionConflict(operation string) {
	get().versionConflicts.WithLabelValues(operation).Inc()
}

// RecordPublish 记录一次发布结果与耗时
func RecordPublish(result string, d time.Duration) {
	m := get()
	m.publishTotal.WithLabelValues(result).Inc()
	m.publishLatency.WithLabelValues(result).Observe(d.Seconds())
}

// RecordSnapshot 记录一次快照
func RecordSnapshot(reason string) {
	get().snapshotsTotal.WithLabelValues(reason).Inc()
}

// RecordLookupCache 记录自然键缓存命中情况
func RecordLookupCache(kind string, hits, misses int) {
	m := get()
	if hits > 0 {
		m.lookupCache.WithLabelValues(kind, "hit").Add(float64(hits))
	}
	if misses > 0 {
		m.lookupCache.WithLabelValues(kind, "miss").Add(float64(misses))
	}
}
