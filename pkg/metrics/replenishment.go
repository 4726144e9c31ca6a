package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReplenishmentMetrics counts request lifecycle and stock events.
type ReplenishmentMetrics struct {
	transitions *prometheus.CounterVec
	conflicts   prometheus.Counter
	stockAlerts *prometheus.CounterVec
	statsCache  *prometheus.CounterVec
}

// NewReplenishmentMetrics registers the counters on reg. A nil registerer
// yields a no-op recorder.
func NewReplenishmentMetrics(reg prometheus.Registerer) *ReplenishmentMetrics {
	if reg == nil {
		return &ReplenishmentMetrics{}
	}
	m := &ReplenishmentMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replenish_status_transitions_total",
			Help: "Committed replenishment status transitions.",
		}, []string{"from", "to"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replenish_transition_conflicts_total",
			Help: "Status transitions that lost a compare-and-swap race.",
		}),
		stockAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replenish_stock_alerts_total",
			Help: "Inventory stock alerts raised.",
		}, []string{"reason"}),
		statsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replenish_stats_cache_lookups_total",
			Help: "DC stats cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.transitions, m.conflicts, m.stockAlerts, m.statsCache)
	return m
}

func (m *ReplenishmentMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *ReplenishmentMetrics) IncConflict() {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *ReplenishmentMetrics) IncStockAlert(reason string) {
	if m == nil || m.stockAlerts == nil {
		return
	}
	m.stockAlerts.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveStatsCache records "hit", "miss" or "error".
func (m *ReplenishmentMetrics) ObserveStatsCache(result string) {
	if m == nil || m.statsCache == nil {
		return
	}
	m.statsCache.WithLabelValues(normalizeLabel(result)).Inc()
}
