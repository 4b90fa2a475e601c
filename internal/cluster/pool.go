package cluster

import (
	"fmt"
	"sort"
)

// Pool owns every PhysicalMachine record for the run and partitions their
// ids into idle and active. It also maintains the class index: active PMs
// grouped by current PMClass, the scheduler's only way to ask "is there a
// bin of class X I can use".
//
// Pool is not safe for concurrent use — see the package doc for why it
// doesn't need to be.
type Pool struct {
	pms    map[int]*PhysicalMachine
	idle   map[int]struct{}
	active map[int]struct{}
	index  map[PMClass]map[int]*PhysicalMachine

	// OnMigrate, if set, is called once per Move that actually relocates at
	// least one VM off a prior host. Left nil by default; the driver wires
	// it to a metrics counter.
	OnMigrate func()
}

// NewPool allocates numPMs PhysicalMachine records, all idle.
func NewPool(numPMs int) *Pool {
	p := &Pool{
		pms:    make(map[int]*PhysicalMachine, numPMs),
		idle:   make(map[int]struct{}, numPMs),
		active: make(map[int]struct{}),
		index:  make(map[PMClass]map[int]*PhysicalMachine),
	}
	for i := 1; i <= numPMs; i++ {
		p.pms[i] = newPhysicalMachine(i)
		p.idle[i] = struct{}{}
	}
	return p
}

// Get returns the PM record for id. Panics if id is not one this pool
// allocated — that would be a scheduler bug, not a runtime condition.
func (p *Pool) Get(id int) *PhysicalMachine {
	pm, ok := p.pms[id]
	if !ok {
		panic(fmt.Sprintf("cluster: unknown PM id %d", id))
	}
	return pm
}

// AllocateIdle pops the lowest-id idle PM, moves it to active, and returns
// its id. Returns ErrPoolExhausted if no idle PM remains.
func (p *Pool) AllocateIdle() (int, error) {
	if len(p.idle) == 0 {
		return 0, ErrPoolExhausted
	}
	ids := make([]int, 0, len(p.idle))
	for id := range p.idle {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	id := ids[0]
	delete(p.idle, id)
	p.active[id] = struct{}{}
	return id, nil
}

// releaseToIdle resets pm and moves it from active to idle. It is the pure
// bookkeeping half of the scheduler's Release rule (which also re-places
// pm's VMs before calling this).
func (p *Pool) releaseToIdle(id int) {
	delete(p.active, id)
	delete(p.idle, id) // defensive: never both
	p.idle[id] = struct{}{}
	for class, bucket := range p.index {
		if _, ok := bucket[id]; ok {
			delete(bucket, id)
		}
		_ = class
	}
	p.pms[id] = newPhysicalMachine(id)
}

// IsActive reports whether id is currently in the active set.
func (p *Pool) IsActive(id int) bool {
	_, ok := p.active[id]
	return ok
}

// ActiveCount and IdleCount report pool shape for metrics/logging.
func (p *Pool) ActiveCount() int { return len(p.active) }
func (p *Pool) IdleCount() int   { return len(p.idle) }

// ClassCounts returns the number of active PMs per class, for metrics.
func (p *Pool) ClassCounts() map[string]int {
	out := make(map[string]int, len(p.index))
	for class, bucket := range p.index {
		out[string(class)] = len(bucket)
	}
	return out
}

// ReCategorize is pm_re_categorize: release any active PM whose running set
// has gone empty, and recompute Gap/Class for the rest. Beyond dropping the
// released PMs from their buckets it does not update the class index — call
// RenewIndex afterward (the slot pipeline calls both, in that order, per §5).
func (p *Pool) ReCategorize() {
	var toRelease []int
	for id := range p.active {
		pm := p.pms[id]
		if len(pm.RunningVMs) == 0 {
			toRelease = append(toRelease, id)
		}
	}
	for _, id := range toRelease {
		p.releaseToIdle(id)
	}
	for id := range p.active {
		p.pms[id].Reclassify()
	}
}

// RenewIndex is pm_group_renew: rebuild the class index from the current
// active set. Any active PM whose running set is empty is released to idle
// first (the index can only ever reflect active PMs); any active PM left
// uncategorized (transient hot state, §4.2) is kept active but dropped from
// every class bucket.
func (p *Pool) RenewIndex() {
	p.ReCategorize()

	for class := range p.index {
		delete(p.index, class)
	}

	for id := range p.active {
		pm := p.pms[id]
		if pm.Class == "" {
			continue
		}
		bucket, ok := p.index[pm.Class]
		if !ok {
			bucket = make(map[int]*PhysicalMachine)
			p.index[pm.Class] = bucket
		}
		bucket[id] = pm
	}
}

// reindexOne recomputes a single PM's class and repositions it within the
// index without a full rebuild — used by placement primitives (new, move)
// that only touch one or two PMs per call and would otherwise pay for a
// whole-pool RenewIndex on every VM.
func (p *Pool) reindexOne(id int) {
	pm := p.pms[id]
	if !p.IsActive(id) {
		return
	}
	if len(pm.RunningVMs) == 0 {
		p.releaseToIdle(id)
		return
	}

	for class, bucket := range p.index {
		delete(bucket, id)
		_ = class
	}
	pm.Reclassify()
	if pm.Class == "" {
		return
	}
	bucket, ok := p.index[pm.Class]
	if !ok {
		bucket = make(map[int]*PhysicalMachine)
		p.index[pm.Class] = bucket
	}
	bucket[id] = pm
}

// exists reports whether the class bucket has a PM other than excluding
// (excluding may be nil to mean "no exclusion").
func (p *Pool) exists(class PMClass, excluding *PhysicalMachine) bool {
	bucket := p.index[class]
	if len(bucket) == 0 {
		return false
	}
	if excluding == nil {
		return true
	}
	if len(bucket) == 1 {
		_, onlyIsExcluded := bucket[excluding.ID]
		return !onlyIsExcluded
	}
	return true
}

// get returns an arbitrary PM of the given class other than excluding (the
// lowest id, for determinism), without removing it from the bucket.
func (p *Pool) get(class PMClass, excluding *PhysicalMachine) *PhysicalMachine {
	bucket := p.index[class]
	if len(bucket) == 0 {
		return nil
	}
	ids := make([]int, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if excluding != nil && id == excluding.ID {
			continue
		}
		return bucket[id]
	}
	return nil
}
