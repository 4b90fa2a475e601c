package cluster

import "fmt"

// Validate checks the pool and vmSet against invariants I1-I5 / properties
// P1-P6 (§3, §8). It is not on the hot path of any scheduling rule — the
// driver calls it after each slot only when invariant checking has been
// enabled, since it walks every PM and VM.
func (p *Pool) Validate(vmSet map[int]*VirtualMachine) error {
	for id, v := range vmSet {
		if id != v.ID {
			return fmt.Errorf("%w: vmSet key %d holds VM-%d", ErrInvariantViolation, id, v.ID)
		}
		if !v.HasPM {
			return fmt.Errorf("%w: VM-%d has no host", ErrInvariantViolation, v.ID)
		}
		pm, ok := p.pms[v.CurrentPMID]
		if !ok {
			return fmt.Errorf("%w: VM-%d references unknown PM %d", ErrInvariantViolation, v.ID, v.CurrentPMID)
		}
		if pm.RunningVMs[v.ID] != v {
			return fmt.Errorf("%w: VM-%d claims host PM-%d but is not in its running set", ErrInvariantViolation, v.ID, pm.ID)
		}
		wantClass, ok := ItemClassOf(v.CurrentDemand)
		if !ok || wantClass != v.Category {
			return fmt.Errorf("%w: VM-%d category %s does not match demand %v", ErrInvariantViolation, v.ID, v.Category, v.CurrentDemand)
		}
	}

	for id, pm := range p.pms {
		_, idle := p.idle[id]
		_, active := p.active[id]
		if idle == active {
			return fmt.Errorf("%w: PM-%d is idle=%v active=%v", ErrInvariantViolation, id, idle, active)
		}
		if active && len(pm.RunningVMs) == 0 {
			return fmt.Errorf("%w: PM-%d is active with no running VMs", ErrInvariantViolation, id)
		}
		if idle && len(pm.RunningVMs) != 0 {
			return fmt.Errorf("%w: PM-%d is idle with a non-empty running set", ErrInvariantViolation, id)
		}
		if !active {
			continue
		}
		if pm.Hot() {
			return fmt.Errorf("%w: PM-%d is active and hot (load %v)", ErrInvariantViolation, id, pm.Load())
		}

		var counts itemCounts
		counts.load = pm.Load()
		for _, v := range pm.RunningVMs {
			if v.CurrentPMID != id {
				return fmt.Errorf("%w: PM-%d hosts VM-%d whose current_pm_id is %d", ErrInvariantViolation, id, v.ID, v.CurrentPMID)
			}
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
		if want := PMClassOf(counts); want != pm.Class {
			return fmt.Errorf("%w: PM-%d classified %s, derived %s from running set", ErrInvariantViolation, id, pm.Class, want)
		}
	}

	for class, bucket := range p.index {
		for id, pm := range bucket {
			if !p.IsActive(id) {
				return fmt.Errorf("%w: class index bucket %s references inactive PM-%d", ErrInvariantViolation, class, id)
			}
			if pm.Class != class {
				return fmt.Errorf("%w: PM-%d indexed under %s but classified %s", ErrInvariantViolation, id, class, pm.Class)
			}
		}
	}
	for id := range p.active {
		pm := p.pms[id]
		if pm.Class == "" {
			continue
		}
		bucket := p.index[pm.Class]
		if bucket == nil || bucket[id] == nil {
			return fmt.Errorf("%w: active PM-%d of class %s missing from class index", ErrInvariantViolation, id, pm.Class)
		}
	}

	return nil
}
