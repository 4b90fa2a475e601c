// Package metrics exposes Prometheus collectors for the scheduler's
// operational state: active PM count, placement/migration throughput, and
// pool exhaustion. The simulator has no request traffic of its own, so this
// is a much smaller surface than a service's invocation metrics would be —
// one registry, gauges for point-in-time pool shape, counters for VM
// placements, retirements, migrations and pool exhaustion.
package metrics

import "time"

var startTime = time.Now()

// StartTime returns when the process metrics were initialized, used by the
// uptime gauge.
func StartTime() time.Time {
	return startTime
}
