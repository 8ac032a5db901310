// Package observability provides metrics and tracing.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foodgram_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CacheResults counts cache-aside lookups by key family and outcome.
	CacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodgram_cache_results_total",
		Help: "Cache lookups by key family and result (hit, miss, error)",
	}, []string{"family", "result"})

	// ShortLinkAttempts observes how many candidates were drawn per generated short link.
	ShortLinkAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "foodgram_short_link_attempts",
		Help:    "Number of candidate codes drawn per short link",
		Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100},
	})

	// ShortLinkExhausted counts generator runs that ran out of attempts.
	ShortLinkExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodgram_short_link_exhausted_total",
		Help: "Short link generations that exhausted the attempt bound",
	})

	// ShoppingListDownloads counts rendered shopping lists.
	ShoppingListDownloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodgram_shopping_list_downloads_total",
		Help: "Total number of shopping lists downloaded",
	})

	// ToggleOperations counts favorite/cart/subscription state changes.
	ToggleOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodgram_toggle_operations_total",
		Help: "Favorite, shopping cart and subscription toggles by kind, action and result",
	}, []string{"kind", "action", "result"})

	// FeedEventsPublished counts new-recipe events fanned out to subscribers.
	FeedEventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodgram_feed_events_published_total",
		Help: "Recipe feed events published to subscriber channels",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodgram_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

const startTimeKey = "observability:start"

// gormHook registers fn around one GORM operation.
type gormHook func(name string, fn func(*gorm.DB)) error

// RegisterGormCallbacks records DatabaseQueryLatency for every GORM operation.
func RegisterGormCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	ops := []struct {
		name          string
		before, after gormHook
	}{
		{"create",
			func(n string, fn func(*gorm.DB)) error { return cb.Create().Before("gorm:create").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Create().After("gorm:create").Register(n, fn) }},
		{"query",
			func(n string, fn func(*gorm.DB)) error { return cb.Query().Before("gorm:query").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Query().After("gorm:query").Register(n, fn) }},
		{"update",
			func(n string, fn func(*gorm.DB)) error { return cb.Update().Before("gorm:update").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Update().After("gorm:update").Register(n, fn) }},
		{"delete",
			func(n string, fn func(*gorm.DB)) error { return cb.Delete().Before("gorm:delete").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Delete().After("gorm:delete").Register(n, fn) }},
		{"row",
			func(n string, fn func(*gorm.DB)) error { return cb.Row().Before("gorm:row").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Row().After("gorm:row").Register(n, fn) }},
		{"raw",
			func(n string, fn func(*gorm.DB)) error { return cb.Raw().Before("gorm:raw").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Raw().After("gorm:raw").Register(n, fn) }},
	}

	for _, op := range ops {
		if err := op.before("metrics:before_"+op.name, startTimer); err != nil {
			return err
		}
		if err := op.after("metrics:after_"+op.name, observeLatency(op.name)); err != nil {
			return err
		}
	}
	return nil
}

func startTimer(tx *gorm.DB) {
	tx.InstanceSet(startTimeKey, time.Now())
}

func observeLatency(operation string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		v, ok := tx.InstanceGet(startTimeKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		table := tx.Statement.Table
		if table == "" {
			table = "unknown"
		}
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(_ context.Context, operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
