// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// EngagementToggles counts committed toggle transitions by kind and outcome.
	EngagementToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_engagement_toggles_total",
		Help: "Total number of committed engagement toggles",
	}, []string{"kind", "outcome"})

	// SlugCollisions counts unique-constraint retries while allocating post slugs.
	SlugCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_slug_collisions_total",
		Help: "Total number of slug collisions resolved by retry",
	})

	// TagsCollected counts tags deleted after their post count reached zero.
	TagsCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_tags_collected_total",
		Help: "Total number of zero-count tags garbage-collected",
	})

	// CacheLookups counts cache-aside lookups by key family and result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_cache_lookups_total",
		Help: "Total cache lookups by key family and result",
	}, []string{"family", "result"})
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	latency := time.Since(start).Seconds()
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(latency)
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}

const queryStartKey = "inkwell:query_start"

type callbackRegisterer interface {
	Register(name string, fn func(*gorm.DB)) error
}

// Register installs gorm callbacks that observe the latency of every
// statement the connection executes.
func (m *DatabaseMetrics) Register() error {
	cb := m.db.Callback()
	hooks := []struct {
		op            string
		before, after callbackRegisterer
	}{
		{"create", cb.Create().Before("gorm:create"), cb.Create().After("gorm:create")},
		{"query", cb.Query().Before("gorm:query"), cb.Query().After("gorm:query")},
		{"update", cb.Update().Before("gorm:update"), cb.Update().After("gorm:update")},
		{"delete", cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete")},
		{"row", cb.Row().Before("gorm:row"), cb.Row().After("gorm:row")},
		{"raw", cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw")},
	}

	for _, h := range hooks {
		op := h.op
		if err := h.before.Register("inkwell:metrics_before_"+op, func(tx *gorm.DB) {
			tx.InstanceSet(queryStartKey, time.Now())
		}); err != nil {
			return err
		}
		if err := h.after.Register("inkwell:metrics_after_"+op, func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			table := tx.Statement.Table
			if table == "" {
				table = "raw"
			}
			m.ObserveQuery(op, table, start)
		}); err != nil {
			return err
		}
	}
	return nil
}
