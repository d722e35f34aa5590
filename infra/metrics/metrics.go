package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	EventsAppliedTotal  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "book_events_applied_total", Help: "Events applied to the book by type"}, []string{"type"})
	EventsStaleTotal    = prometheus.NewCounter(prometheus.CounterOpts{Name: "book_events_stale_total", Help: "Events discarded as already applied"})
	EventsIgnoredTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "book_events_ignored_total", Help: "Events with no book effect (priceless done, received, activate)"})
	SequenceGapsTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "book_sequence_gaps_total", Help: "Detected sequence gaps"})
	ResyncsTotal        = prometheus.NewCounter(prometheus.CounterOpts{Name: "book_resyncs_total", Help: "Full snapshot resyncs performed"})
	ResyncFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "book_resync_failures_total", Help: "Snapshot loads that failed"})

	MalformedEventsTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "book_malformed_events_total", Help: "Events skipped for missing or bad fields"})
	OrdersNotFoundTotal    = prometheus.NewCounter(prometheus.CounterOpts{Name: "book_orders_not_found_total", Help: "Mutations referencing ids absent from the book"})
	PriorityRepairsTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "book_priority_repairs_total", Help: "Match events whose maker was moved to the level head"})
	PriceMismatchesTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "book_price_mismatches_total", Help: "Events whose price disagreed with the order index"})
	ConsistencyFaultsTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "book_consistency_faults_total", Help: "Detected index/level divergences"})

	JournalErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "book_journal_errors_total", Help: "Raw event journal write failures"})
	BroadcastSentTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "book_broadcast_sent_total", Help: "Journaled events republished to Kafka"})
	BroadcastErrsTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "book_broadcast_errors_total", Help: "Kafka publish failures"})

	BestBid       = prometheus.NewGauge(prometheus.GaugeOpts{Name: "book_best_bid", Help: "Best bid price"})
	BestAsk       = prometheus.NewGauge(prometheus.GaugeOpts{Name: "book_best_ask", Help: "Best ask price"})
	RestingOrders = prometheus.NewGauge(prometheus.GaugeOpts{Name: "book_resting_orders", Help: "Resting orders currently tracked"})
)

func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		EventsAppliedTotal, EventsStaleTotal, EventsIgnoredTotal,
		SequenceGapsTotal, ResyncsTotal, ResyncFailuresTotal,
		MalformedEventsTotal, OrdersNotFoundTotal, PriorityRepairsTotal,
		PriceMismatchesTotal, ConsistencyFaultsTotal,
		JournalErrorsTotal, BroadcastSentTotal, BroadcastErrsTotal,
		BestBid, BestAsk, RestingOrders,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
