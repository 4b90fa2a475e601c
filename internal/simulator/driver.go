// Package simulator drives the slot loop: at each discrete time step it
// drains arrivals, runs the scheduling rules, ages and retires VMs, and
// rebuilds the class index, in the fixed order §5 specifies. It owns no
// scheduling logic itself — that lives in internal/cluster — only the
// per-slot orchestration and the diagnostic log lines.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/oriys/novasim/internal/cluster"
	"github.com/oriys/novasim/internal/logging"
	"github.com/oriys/novasim/internal/metrics"
	"github.com/oriys/novasim/internal/tracing"
)

// Driver runs a fixed-size PM pool through NumSlots discrete time steps
// against a pre-generated arrival stream.
type Driver struct {
	Pool      *cluster.Pool
	Scheduler *cluster.Scheduler

	arrivals []*cluster.VirtualMachine // remaining, sorted ascending by StartTime
	vmSet    map[int]*cluster.VirtualMachine

	// ValidateEachSlot runs the invariant checker after every slot. Off by
	// default — it is O(vms+pms) and meant for tests/debug runs.
	ValidateEachSlot bool
}

// New builds a Driver over a fresh pool of numPMs machines and the given
// arrival stream. arrivals must already be sorted by StartTime ascending
// (workload.Generator.Generate guarantees this).
func New(numPMs int, arrivals []*cluster.VirtualMachine) *Driver {
	pool := cluster.NewPool(numPMs)
	pool.OnMigrate = func() { metrics.RecordMigration() }
	return &Driver{
		Pool:      pool,
		Scheduler: cluster.NewScheduler(pool),
		arrivals:  arrivals,
		vmSet:     make(map[int]*cluster.VirtualMachine),
	}
}

// Run advances the simulation through numSlots time steps, applying the
// slot pipeline from §5 at each one. It returns the first error
// encountered (pool exhaustion or an invariant violation), stopping the
// run at the slot that produced it.
func (d *Driver) Run(ctx context.Context, numSlots int) error {
	for t := 0; t < numSlots; t++ {
		if err := d.runSlot(ctx, t); err != nil {
			if errors.Is(err, cluster.ErrPoolExhausted) {
				metrics.RecordPoolExhausted()
			}
			return fmt.Errorf("slot %d: %w", t, err)
		}
	}
	return nil
}

func (d *Driver) runSlot(ctx context.Context, t int) error {
	ctx, span := tracing.Tracer().Start(ctx, "slot")
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveSlotDuration(time.Since(start)) }()

	sc := span.SpanContext()
	var traceID, spanID string
	if sc.HasTraceID() {
		traceID, spanID = sc.TraceID().String(), sc.SpanID().String()
	}
	log := logging.OpWithTrace(traceID, spanID)

	// 1. drain arrivals with start_time == t
	arriving := d.drainArrivals(t)

	// 2. insert
	for _, vm := range arriving {
		log.Debug("vm arrived", "vm", vm.ID, "slot", t)
		if err := d.Scheduler.Insert(vm); err != nil {
			return err
		}
	}

	// 3. vm_re_categorize(t): retire, then age demands
	retired := d.Scheduler.VMReCategorize(d.vmSet, t)
	for _, vm := range retired {
		log.Debug("vm finished", "vm", vm.ID, "slot", t)
		metrics.RecordVMRetired()
	}

	// 4. pm_re_categorize
	d.Pool.ReCategorize()

	// 5. change: react to class transitions on the surviving set
	survivors := make([]*cluster.VirtualMachine, 0, len(d.vmSet))
	for _, vm := range d.vmSet {
		survivors = append(survivors, vm)
	}
	if err := d.Scheduler.Change(survivors); err != nil {
		return err
	}

	// 6. integrate new arrivals into the main VM set
	for _, vm := range arriving {
		d.vmSet[vm.ID] = vm
		metrics.RecordVMPlaced()
	}

	// 7. pm_re_categorize + pm_group_renew
	d.Pool.RenewIndex()

	if d.ValidateEachSlot {
		if err := d.Pool.Validate(d.vmSet); err != nil {
			return err
		}
	}

	log.Info("slot complete", "slot", t, "active_pms", d.Pool.ActiveCount(), "idle_pms", d.Pool.IdleCount(), "vms", len(d.vmSet))
	metrics.SetPoolShape(d.Pool.ActiveCount(), d.Pool.IdleCount(), len(d.vmSet))
	metrics.SetClassCounts(d.Pool.ClassCounts())
	return nil
}

// drainArrivals pops every arrival with StartTime == t off the front of
// the sorted queue. Ties within a slot are broken by ascending VM id —
// the arrival stream is sorted by StartTime only, so the popped prefix is
// re-sorted by id here.
func (d *Driver) drainArrivals(t int) []*cluster.VirtualMachine {
	i := 0
	for i < len(d.arrivals) && d.arrivals[i].StartTime == t {
		i++
	}
	batch := d.arrivals[:i]
	d.arrivals = d.arrivals[i:]
	sort.Slice(batch, func(a, b int) bool { return batch[a].ID < batch[b].ID })
	return batch
}
