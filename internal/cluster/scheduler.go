package cluster

// Scheduler applies the placement rules of §4.5 against a Pool: arrival
// dispatch (Insert), the class-change transition table (Change), and the
// supporting rules (Fill, FillWith, Adjust, InsertSItem, Release) that
// those two call into. It holds no state of its own beyond the Pool it was
// built with — every rule is a pure function of the current pool and VM
// state.
type Scheduler struct {
	Pool *Pool
}

// NewScheduler builds a Scheduler over pool.
func NewScheduler(pool *Pool) *Scheduler {
	return &Scheduler{Pool: pool}
}

// Insert dispatches a newly arrived VM by item class (§4.5.1):
// B gets its own PM, L gets its own PM with its gap filled by T-groups,
// S pairs with an existing S-bin if one exists, T prefers an under-full
// bin over a fresh one.
func (s *Scheduler) Insert(vm *VirtualMachine) error {
	switch vm.Category {
	case ClassB:
		_, err := s.Pool.New([]*VirtualMachine{vm})
		return err

	case ClassL:
		id, err := s.Pool.New([]*VirtualMachine{vm})
		if err != nil {
			return err
		}
		s.Fill(s.Pool.Get(id))
		return nil

	case ClassS:
		return s.InsertSItem(vm)

	default: // ClassT
		return s.FillWith(vm)
	}
}

// InsertSItem homes an S-class VM: pairs it onto an existing S-singleton
// bin (forming SS), or gives it a fresh PM if none exists.
func (s *Scheduler) InsertSItem(vm *VirtualMachine) error {
	if pm := s.Pool.get(PMClassS, nil); pm != nil {
		s.Pool.Move([]*VirtualMachine{vm}, pm)
		return nil
	}
	_, err := s.Pool.New([]*VirtualMachine{vm})
	return err
}

// FillWith homes a VM: a T-class VM prefers a ULLT bin, then a UT bin, then
// a fresh PM; a VM of any other class gets a fresh PM. Used both for
// arrivals and for VMs evicted by Adjust/Release.
func (s *Scheduler) FillWith(vm *VirtualMachine) error {
	return s.fillWith(vm, nil)
}

// fillWith is FillWith with excluding (may be nil) never chosen as the
// destination bin.
func (s *Scheduler) fillWith(vm *VirtualMachine, excluding *PhysicalMachine) error {
	if vm.Category == ClassT {
		if pm := s.Pool.get(PMClassULLT, excluding); pm != nil {
			s.Pool.Move([]*VirtualMachine{vm}, pm)
			return nil
		}
		if pm := s.Pool.get(PMClassUT, excluding); pm != nil {
			s.Pool.Move([]*VirtualMachine{vm}, pm)
			return nil
		}
	}
	_, err := s.Pool.New([]*VirtualMachine{vm})
	return err
}

// Fill packs T-groups into an L or LT bin's residual gap (§4.5.2): while
// pmB's gap is at least 1/3 and a T-class bin exists elsewhere, pull the
// last group off a source bin (preferring an under-full one) and move it
// onto pmB. The source-existence check only looks at the plain T class,
// not UT, matching the reference implementation's asymmetry — a pool that
// holds only UT bins and no plain-T bin will not trigger this loop.
func (s *Scheduler) Fill(pmB *PhysicalMachine) {
	if pmB.Class != PMClassL && pmB.Class != PMClassLT {
		return
	}
	for pmB.Gap >= 1.0/3.0-classEpsilon && s.Pool.exists(PMClassT, pmB) {
		var src *PhysicalMachine
		if s.Pool.exists(PMClassUT, pmB) {
			src = s.Pool.get(PMClassUT, pmB)
		} else {
			src = s.Pool.get(PMClassT, pmB)
		}
		if src == nil {
			return
		}
		groups := s.Pool.Divide(src)
		if len(groups) == 0 {
			return
		}
		g := groups[len(groups)-1]
		s.Pool.Move(g, pmB)
	}
}

// Adjust resolves a hot or under-full LT/T bin (§4.5.3): while pmB is hot,
// evict an arbitrary VM and re-place it with FillWith; once cool, if the
// resulting gap is at least 1/3, Fill it.
//
// Eviction mutates pmB's running set directly (mirroring the reference
// pop-then-place pattern) rather than going through Detach, so that
// FillWith's downstream Move sees pmB's already-shrunk set when deciding
// whether pmB itself has gone empty.
func (s *Scheduler) Adjust(pmB *PhysicalMachine) error {
	if pmB.Class != PMClassLT && pmB.Class != PMClassT {
		return nil
	}
	for pmB.Hot() {
		vm := pmB.anyVM()
		if vm == nil {
			break
		}
		delete(pmB.RunningVMs, vm.ID)
		if err := s.FillWith(vm); err != nil {
			return err
		}
	}
	if s.Pool.IsActive(pmB.ID) {
		s.Pool.reindexOne(pmB.ID)
	}
	if pmB.Gap >= 1.0/3.0-classEpsilon {
		s.Fill(pmB)
	}
	return nil
}

// Release empties pm by repeatedly popping a VM off it and re-placing it
// with FillWith, then returns pm to idle (§4.3). Re-packing an evicted VM
// back onto a PM already in this slot's work list is permitted by design;
// termination is guaranteed because FillWith always finds a bin (existing
// or fresh), pm itself is never chosen as the destination, and pm's running
// set only ever shrinks.
func (s *Scheduler) Release(pm *PhysicalMachine) error {
	for len(pm.RunningVMs) != 0 {
		vm := pm.anyVM()
		delete(pm.RunningVMs, vm.ID)
		if err := s.fillWith(vm, pm); err != nil {
			return err
		}
	}
	if s.Pool.IsActive(pm.ID) {
		s.Pool.releaseToIdle(pm.ID)
	}
	return nil
}

// Change applies the pre→cur transition table (§4.5.4) to every VM that
// carries a recorded PreCategory. A VM on its first slot (no PreCategory
// yet) or whose class didn't change this slot falls through to a no-op,
// matching "any transition not listed is a no-op".
func (s *Scheduler) Change(vms []*VirtualMachine) error {
	for _, v := range vms {
		if !v.HasPreCategory {
			continue
		}
		if err := s.changeOne(v); err != nil {
			return err
		}
	}
	return nil
}

// changeOne applies the single transition row matching v's pre/cur pair.
//
// Two destination picks deviate from a literal reading of the reference
// implementation: the T→S rule's external S-bin lookup and the L→T rule's
// UT-bin lookup both omit the "excluding p" argument there. The transition
// table's prose is explicit that the destination must be p' ≠ p, and an
// unexcluded lookup can pick p itself — a no-op move that, in the L→T loop,
// would never shrink p's T-group and so never terminate. Both lookups are
// implemented here with the exclusion the table calls for.
func (s *Scheduler) changeOne(v *VirtualMachine) error {
	pm := s.Pool.Get(v.CurrentPMID)
	pre, cur := v.PreCategory, v.Category

	switch {
	case pre == ClassB && cur == ClassL:
		s.Fill(pm)

	case pre == ClassB && cur == ClassS:
		if dest := s.Pool.get(PMClassS, pm); dest != nil {
			s.Pool.Move([]*VirtualMachine{v}, dest)
		}

	case pre == ClassB && cur == ClassT:
		if dest := s.Pool.get(PMClassULLT, pm); dest != nil {
			s.Pool.Move([]*VirtualMachine{v}, dest)
		} else if dest := s.Pool.get(PMClassUT, pm); dest != nil {
			s.Pool.Move([]*VirtualMachine{v}, dest)
		}

	case pre == ClassL && cur == ClassB:
		return s.Release(pm)

	case pre == ClassL && cur == ClassL:
		return s.Adjust(pm)

	case pre == ClassL && cur == ClassS:
		if dest := s.Pool.get(PMClassS, pm); dest != nil {
			s.Pool.Move([]*VirtualMachine{v}, dest)
		}

	case pre == ClassL && cur == ClassT:
		if s.Pool.exists(PMClassUT, pm) {
			for s.Pool.exists(PMClassUT, pm) {
				dest := s.Pool.get(PMClassUT, pm)
				groups := s.Pool.Divide(pm)
				if len(groups) == 0 {
					break
				}
				s.Pool.Move(groups[len(groups)-1], dest)
			}
		} else {
			for s.Pool.exists(PMClassULLT, pm) {
				dest := s.Pool.get(PMClassULLT, pm)
				groups := s.Pool.Divide(pm)
				if len(groups) == 0 {
					break
				}
				s.Pool.Move(groups[len(groups)-1], dest)
			}
		}

	case pre == ClassS && cur == ClassB:
		if sItem := pm.vmOfClass(ClassS, nil); sItem != nil {
			return s.InsertSItem(sItem)
		}

	case pre == ClassS && cur == ClassL:
		if sItem := pm.vmOfClass(ClassS, nil); sItem != nil {
			if err := s.InsertSItem(sItem); err != nil {
				return err
			}
			s.Fill(pm)
		}

	case pre == ClassS && cur == ClassT:
		if sItem := pm.vmOfClass(ClassS, nil); sItem != nil {
			if dest := s.Pool.get(PMClassS, pm); dest != nil {
				s.Pool.Move([]*VirtualMachine{sItem}, dest)
			}
		}
		if dest := s.Pool.get(PMClassULLT, pm); dest != nil {
			s.Pool.Move([]*VirtualMachine{v}, dest)
		} else if dest := s.Pool.get(PMClassUT, pm); dest != nil {
			s.Pool.Move([]*VirtualMachine{v}, dest)
		} else if pm.hasClass(ClassS, nil) {
			delete(pm.RunningVMs, v.ID)
			v.Detach()
			s.Pool.reindexOne(pm.ID)
			if _, err := s.Pool.New([]*VirtualMachine{v}); err != nil {
				return err
			}
		}

	case pre == ClassT && cur == ClassB:
		if lItem := pm.vmOfClass(ClassL, nil); lItem != nil {
			delete(pm.RunningVMs, lItem.ID)
			lItem.Detach()
			if _, err := s.Pool.New([]*VirtualMachine{lItem}); err != nil {
				return err
			}
			return s.Release(pm)
		}

	case pre == ClassT && cur == ClassL:
		if lItem := pm.vmOfClass(ClassL, v); lItem != nil {
			delete(pm.RunningVMs, lItem.ID)
			lItem.Detach()
			newID, err := s.Pool.New([]*VirtualMachine{lItem})
			if err != nil {
				return err
			}
			s.Fill(s.Pool.Get(newID))
			s.Pool.reindexOne(pm.ID)
			return s.Adjust(pm)
		}

	case pre == ClassT && cur == ClassS:
		if lItem := pm.vmOfClass(ClassL, nil); lItem != nil {
			if err := s.InsertSItem(v); err != nil {
				return err
			}
			s.Fill(pm)
		} else if dest := s.Pool.get(PMClassS, pm); dest != nil {
			groups := s.Pool.Divide(pm)
			for len(groups) > 0 && s.Pool.exists(PMClassUT, pm) {
				c := s.Pool.get(PMClassUT, pm)
				g := groups[len(groups)-1]
				groups = groups[:len(groups)-1]
				s.Pool.Move(g, c)
			}
			s.Pool.Move([]*VirtualMachine{v}, dest)
		} else {
			return s.Release(pm)
		}

	case pre == ClassT && cur == ClassT:
		if pm.hasClass(ClassL, v) {
			return s.Adjust(pm)
		}
		if pm.Hot() {
			return s.FillWith(v)
		}
		for pm.Gap >= 1.0/3.0-classEpsilon && s.Pool.exists(PMClassUT, pm) {
			src := s.Pool.get(PMClassUT, pm)
			groups := s.Pool.Divide(src)
			if len(groups) == 0 {
				break
			}
			s.Pool.Move(groups[len(groups)-1], pm)
		}
	}
	return nil
}

// VMReCategorize is vm_re_categorize(t) (§4.5.5): retire every VM whose
// end_time has passed (removing it from its host and from vmSet), then
// advance every surviving VM's demand/category to slot t. Returns the
// retired VMs for logging.
//
// A VM occupies slots [start_time, end_time] inclusive (§3) and its last
// demand value (index end_time-start_time) is applied during slot
// end_time itself; retirement fires the slot after, t > end_time. This
// differs from a literal end_time == t check: combined with arrivals only
// joining the working VM set at the end of their arrival slot (step 6),
// an equality check never fires for a VM whose start_time == end_time,
// leaving it stranded on its host forever.
func (s *Scheduler) VMReCategorize(vmSet map[int]*VirtualMachine, t int) []*VirtualMachine {
	var retired []*VirtualMachine
	for id, v := range vmSet {
		if t > v.EndTime {
			if v.HasPM {
				delete(s.Pool.Get(v.CurrentPMID).RunningVMs, v.ID)
			}
			retired = append(retired, v)
			delete(vmSet, id)
		}
	}
	for _, v := range vmSet {
		v.Advance(t)
	}
	return retired
}
