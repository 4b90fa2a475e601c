package cluster

import "sort"

const capacity = 1.0

// PhysicalMachine is a unit-capacity bin. RunningVMs is keyed by VM id so
// that "pick any VM" operations can commit to a deterministic order (lowest
// id first) instead of depending on Go's randomized map iteration — the
// spec leaves pop order unspecified but requires it be reproducible.
type PhysicalMachine struct {
	ID         int
	RunningVMs map[int]*VirtualMachine

	Gap   float64
	Class PMClass // "" when uncategorized
}

func newPhysicalMachine(id int) *PhysicalMachine {
	return &PhysicalMachine{
		ID:         id,
		RunningVMs: make(map[int]*VirtualMachine),
		Gap:        capacity,
	}
}

// Load returns the total demand currently hosted.
func (p *PhysicalMachine) Load() float64 {
	var total float64
	for _, v := range p.RunningVMs {
		total += v.CurrentDemand
	}
	return total
}

// Hot reports whether the PM's total demand exceeds its capacity. Only
// tolerated transiently, mid-slot, while Scheduler.Adjust is still
// resolving a class change.
func (p *PhysicalMachine) Hot() bool {
	return p.Load() > capacity+classEpsilon
}

// Reclassify recomputes Gap and Class from the current running set. It does
// not touch pool membership (idle/active) or the class index — callers go
// through Pool for that.
func (p *PhysicalMachine) Reclassify() {
	load := p.Load()
	p.Gap = capacity - load

	var counts itemCounts
	counts.load = load
	for _, v := range p.RunningVMs {
		switch v.Category {
		case ClassT:
			counts.t++
		case ClassS:
			counts.s++
		case ClassL:
			counts.l++
		case ClassB:
			counts.b++
		}
	}
	p.Class = PMClassOf(counts)
}

// sortedVMIDs returns the ids of the running set in ascending order, the
// reference iteration order for "pick any" operations.
func (p *PhysicalMachine) sortedVMIDs() []int {
	ids := make([]int, 0, len(p.RunningVMs))
	for id := range p.RunningVMs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// anyVM returns the lowest-id VM in the running set, or nil if empty. This
// is the reference "set-pop" used by Release and similar rules.
func (p *PhysicalMachine) anyVM() *VirtualMachine {
	ids := p.sortedVMIDs()
	if len(ids) == 0 {
		return nil
	}
	return p.RunningVMs[ids[0]]
}

// vmOfClass returns an arbitrary VM of the given item class, excluding
// excl if non-nil. Returns nil if none match.
func (p *PhysicalMachine) vmOfClass(class ItemClass, excl *VirtualMachine) *VirtualMachine {
	for _, id := range p.sortedVMIDs() {
		v := p.RunningVMs[id]
		if excl != nil && v.ID == excl.ID {
			continue
		}
		if v.Category == class {
			return v
		}
	}
	return nil
}

// hasClass reports whether the running set contains an item of the given
// class, excluding excl if non-nil.
func (p *PhysicalMachine) hasClass(class ItemClass, excl *VirtualMachine) bool {
	return p.vmOfClass(class, excl) != nil
}

// tItems returns the T-class VMs on p, in ascending-id order.
func (p *PhysicalMachine) tItems() []*VirtualMachine {
	var out []*VirtualMachine
	for _, id := range p.sortedVMIDs() {
		if v := p.RunningVMs[id]; v.Category == ClassT {
			out = append(out, v)
		}
	}
	return out
}
