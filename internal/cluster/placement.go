package cluster

import "sort"

// New allocates a fresh PM from the idle set, assigns every VM in vms to
// it, and reindexes the new PM. A VM still listed in its previous host's
// running set is taken off that host first, so it never sits on two PMs.
// Returns the new PM's id, or ErrPoolExhausted if the idle set is empty.
func (p *Pool) New(vms []*VirtualMachine) (int, error) {
	id, err := p.AllocateIdle()
	if err != nil {
		return 0, err
	}
	pm := p.pms[id]
	for _, v := range vms {
		if v.HasPM && v.CurrentPMID != id {
			if src := p.pms[v.CurrentPMID]; src.RunningVMs[v.ID] == v {
				delete(src.RunningVMs, v.ID)
				p.reindexOne(src.ID)
			}
		}
		v.AttachTo(id)
		pm.RunningVMs[v.ID] = v
	}
	p.reindexOne(id)
	return id, nil
}

// Move relocates every VM in vms onto dest. For each VM: it is removed from
// its current host's running set (which is released to idle if that leaves
// it empty), re-attached to dest, and added to dest's running set. dest is
// reindexed once at the end; any vacated source PM was already released
// by reindexOne during the per-VM removal.
//
// Move does not capacity-check dest — transient over-capacity mid-slot is
// allowed by design (§9); callers that need the result cool by slot end
// follow up with Adjust.
func (p *Pool) Move(vms []*VirtualMachine, dest *PhysicalMachine) {
	relocated := false
	for _, v := range vms {
		if v.HasPM && v.CurrentPMID != dest.ID {
			src := p.pms[v.CurrentPMID]
			delete(src.RunningVMs, v.ID)
			p.reindexOne(src.ID)
			relocated = true
		}
		v.AttachTo(dest.ID)
		dest.RunningVMs[v.ID] = v
	}
	p.reindexOne(dest.ID)
	if relocated && p.OnMigrate != nil {
		p.OnMigrate()
	}
}

// Divide partitions pm's T-class items into groups whose demand sum is each
// <= 1/3, built greedily: sort T-items ascending by demand, repeatedly pop
// the largest remaining item into the group under construction; when adding
// it would push the group over 1/3, close the group and start a new one
// with that item. Groups are returned in construction order; callers
// consume from the back (the last-built group is the one most likely to be
// a clean ~1/3 fit).
func (p *Pool) Divide(pm *PhysicalMachine) [][]*VirtualMachine {
	items := pm.tItems()
	sort.Slice(items, func(i, j int) bool {
		return items[i].CurrentDemand < items[j].CurrentDemand
	})

	var groups [][]*VirtualMachine
	var cur []*VirtualMachine
	var curLoad float64

	for len(items) > 0 {
		// pop the largest remaining
		last := items[len(items)-1]
		items = items[:len(items)-1]

		if curLoad+last.CurrentDemand > 1.0/3.0+classEpsilon && len(cur) > 0 {
			groups = append(groups, cur)
			cur = nil
			curLoad = 0
		}
		cur = append(cur, last)
		curLoad += last.CurrentDemand
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}

	return groups
}
