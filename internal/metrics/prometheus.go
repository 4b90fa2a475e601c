package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for the scheduler's
// per-slot state and the rules that moved VMs around.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Gauges — current pool shape, refreshed once per slot.
	activePMs   prometheus.Gauge
	idlePMs     prometheus.Gauge
	vmsRunning  prometheus.Gauge
	pmsByClass  *prometheus.GaugeVec
	uptime      prometheus.GaugeFunc

	// Counters — VM placements/retirements, migrations, pool exhaustion.
	vmsPlaced      prometheus.Counter
	vmsRetired     prometheus.Counter
	migrationsMade prometheus.Counter
	poolExhausted  prometheus.Counter

	// Histogram — how long a slot's full pipeline took to run.
	slotDuration prometheus.Histogram
}

var defaultSlotBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem for the
// simulation run. namespace is typically "novasim".
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultSlotBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		activePMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_pms",
			Help:      "Number of physical machines currently hosting at least one VM",
		}),
		idlePMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "idle_pms",
			Help:      "Number of physical machines currently hosting no VMs",
		}),
		vmsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vms_running",
			Help:      "Number of VMs currently placed on a PM",
		}),
		pmsByClass: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pms_by_class",
			Help:      "Number of active PMs per size class",
		}, []string{"class"}),

		vmsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vms_placed_total",
			Help:      "Total VMs placed by insert",
		}),
		vmsRetired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vms_retired_total",
			Help:      "Total VMs retired after their end_time",
		}),
		migrationsMade: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_total",
			Help:      "Total VM migrations — a move that relocates a VM off a prior host",
		}),
		poolExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_exhausted_total",
			Help:      "Total times allocate_idle failed because no idle PM was available",
		}),

		slotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_duration_milliseconds",
			Help:      "Wall-clock duration of a single slot's scheduling pipeline",
			Buckets:   buckets,
		}),
	}

	pm.uptime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Time since the simulation process started",
	}, func() float64 {
		return time.Since(StartTime()).Seconds()
	})

	registry.MustRegister(
		pm.activePMs,
		pm.idlePMs,
		pm.vmsRunning,
		pm.pmsByClass,
		pm.vmsPlaced,
		pm.vmsRetired,
		pm.migrationsMade,
		pm.poolExhausted,
		pm.slotDuration,
		pm.uptime,
	)

	promMetrics = pm
}

// SetPoolShape records the current active/idle PM counts and running VM
// count. Called once per slot after the class index is rebuilt.
func SetPoolShape(active, idle, vms int) {
	if promMetrics == nil {
		return
	}
	promMetrics.activePMs.Set(float64(active))
	promMetrics.idlePMs.Set(float64(idle))
	promMetrics.vmsRunning.Set(float64(vms))
}

// SetClassCounts records the number of active PMs in each size class.
func SetClassCounts(counts map[string]int) {
	if promMetrics == nil {
		return
	}
	for class, n := range counts {
		promMetrics.pmsByClass.WithLabelValues(class).Set(float64(n))
	}
}

// RecordVMPlaced increments the placed-VM counter.
func RecordVMPlaced() {
	if promMetrics == nil {
		return
	}
	promMetrics.vmsPlaced.Inc()
}

// RecordVMRetired increments the retired-VM counter.
func RecordVMRetired() {
	if promMetrics == nil {
		return
	}
	promMetrics.vmsRetired.Inc()
}

// RecordMigration increments the migration counter. Called once per Move
// that actually relocates a VM off a prior host (see Pool.OnMigrate) —
// not per scheduling rule, since a single change-table row can trigger
// several Moves or none.
func RecordMigration() {
	if promMetrics == nil {
		return
	}
	promMetrics.migrationsMade.Inc()
}

// RecordPoolExhausted increments the pool-exhaustion counter.
func RecordPoolExhausted() {
	if promMetrics == nil {
		return
	}
	promMetrics.poolExhausted.Inc()
}

// ObserveSlotDuration records how long a slot's pipeline took.
func ObserveSlotDuration(d time.Duration) {
	if promMetrics == nil {
		return
	}
	promMetrics.slotDuration.Observe(float64(d.Milliseconds()))
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping.
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors).
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
