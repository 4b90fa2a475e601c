package cluster

import "testing"

// runSlot replays the §5 per-slot pipeline against a fixed arrival batch,
// mirroring internal/simulator.Driver.runSlot closely enough to exercise
// the scheduling rules without pulling in the simulator package.
func runSlot(t *testing.T, s *Scheduler, vmSet map[int]*VirtualMachine, arriving []*VirtualMachine, slot int) {
	t.Helper()
	for _, vm := range arriving {
		if err := s.Insert(vm); err != nil {
			t.Fatalf("slot %d: Insert(%d): %v", slot, vm.ID, err)
		}
	}
	s.VMReCategorize(vmSet, slot)
	s.Pool.ReCategorize()
	survivors := make([]*VirtualMachine, 0, len(vmSet))
	for _, vm := range vmSet {
		survivors = append(survivors, vm)
	}
	if err := s.Change(survivors); err != nil {
		t.Fatalf("slot %d: Change: %v", slot, err)
	}
	for _, vm := range arriving {
		vmSet[vm.ID] = vm
	}
	s.Pool.RenewIndex()
}

// S1: a single-slot VM occupies its host for exactly the one slot it
// spans, then the host goes idle.
func TestScenarioS1TrivialSingleSlot(t *testing.T) {
	pool := NewPool(1)
	s := NewScheduler(pool)
	vmSet := map[int]*VirtualMachine{}
	v1 := mustVM(t, 1, 0, 0, []float64{0.5})

	runSlot(t, s, vmSet, []*VirtualMachine{v1}, 0)

	if pool.ActiveCount() != 1 || pool.IdleCount() != 0 {
		t.Fatalf("after slot 0: active=%d idle=%d, want 1/0", pool.ActiveCount(), pool.IdleCount())
	}
	pm := pool.Get(v1.CurrentPMID)
	if pm.Class != PMClassS {
		t.Fatalf("after slot 0: pm class = %v, want S", pm.Class)
	}
	if pm.RunningVMs[v1.ID] != v1 {
		t.Fatal("after slot 0: v1 not running on its host")
	}

	runSlot(t, s, vmSet, nil, 1)

	if pool.ActiveCount() != 0 || pool.IdleCount() != 1 {
		t.Fatalf("after slot 1: active=%d idle=%d, want 0/1", pool.ActiveCount(), pool.IdleCount())
	}
	if len(vmSet) != 0 {
		t.Fatalf("after slot 1: vmSet still holds %d vms, want 0", len(vmSet))
	}
}

// S2: a T item arriving alongside an L item packs onto the L item's host,
// forming an LT bin, instead of opening a second PM.
func TestScenarioS2TPackIntoL(t *testing.T) {
	pool := NewPool(2)
	s := NewScheduler(pool)
	vmSet := map[int]*VirtualMachine{}
	v1 := mustVM(t, 1, 0, 1, []float64{0.6, 0.6})
	v2 := mustVM(t, 2, 0, 1, []float64{0.3, 0.3})

	runSlot(t, s, vmSet, []*VirtualMachine{v1, v2}, 0)

	if v1.CurrentPMID != v2.CurrentPMID {
		t.Fatalf("v1 on pm %d, v2 on pm %d, want same host", v1.CurrentPMID, v2.CurrentPMID)
	}
	pm := pool.Get(v1.CurrentPMID)
	if pm.Class != PMClassLT {
		t.Fatalf("host class = %v, want LT", pm.Class)
	}
	if pool.ActiveCount() != 1 || pool.IdleCount() != 1 {
		t.Fatalf("active=%d idle=%d, want 1/1", pool.ActiveCount(), pool.IdleCount())
	}
}

// S3: two S items arriving together pair onto a single PM, forming an SS
// bin, rather than each claiming its own host.
func TestScenarioS3SSFormation(t *testing.T) {
	pool := NewPool(2)
	s := NewScheduler(pool)
	vmSet := map[int]*VirtualMachine{}
	v1 := mustVM(t, 1, 0, 0, []float64{0.4})
	v2 := mustVM(t, 2, 0, 0, []float64{0.4})

	runSlot(t, s, vmSet, []*VirtualMachine{v1, v2}, 0)

	if v1.CurrentPMID != v2.CurrentPMID {
		t.Fatalf("v1 on pm %d, v2 on pm %d, want same host", v1.CurrentPMID, v2.CurrentPMID)
	}
	pm := pool.Get(v1.CurrentPMID)
	if pm.Class != PMClassSS {
		t.Fatalf("host class = %v, want SS", pm.Class)
	}
	if pool.ActiveCount() != 1 || pool.IdleCount() != 1 {
		t.Fatalf("active=%d idle=%d, want 1/1", pool.ActiveCount(), pool.IdleCount())
	}
}

// S4: a lone L item whose demand rises to B ends up as a B singleton; a
// packed T companion ends up on a different PM from it.
func TestScenarioS4ReleaseOnLToB(t *testing.T) {
	t.Run("alone stays B singleton", func(t *testing.T) {
		pool := NewPool(2)
		s := NewScheduler(pool)
		vmSet := map[int]*VirtualMachine{}
		v1 := mustVM(t, 1, 0, 1, []float64{0.6, 0.9})

		runSlot(t, s, vmSet, []*VirtualMachine{v1}, 0)
		runSlot(t, s, vmSet, nil, 1)

		pm := pool.Get(v1.CurrentPMID)
		if pm.Class != PMClassB {
			t.Fatalf("host class = %v, want B", pm.Class)
		}
		if len(pm.RunningVMs) != 1 {
			t.Fatalf("host running set size = %d, want 1", len(pm.RunningVMs))
		}
	})

	t.Run("packed T companion migrated off", func(t *testing.T) {
		pool := NewPool(3)
		s := NewScheduler(pool)
		vmSet := map[int]*VirtualMachine{}
		vL := mustVM(t, 1, 0, 1, []float64{0.6, 0.9})
		vT := mustVM(t, 2, 0, 1, []float64{0.2, 0.2})

		runSlot(t, s, vmSet, []*VirtualMachine{vL, vT}, 0)
		hostSlot0 := vL.CurrentPMID
		if vT.CurrentPMID != hostSlot0 {
			t.Fatalf("setup: vT on pm %d, want %d alongside vL", vT.CurrentPMID, hostSlot0)
		}

		runSlot(t, s, vmSet, nil, 1)

		if vT.CurrentPMID == vL.CurrentPMID {
			t.Fatal("vT was not migrated off vL's host after L->B")
		}
		hostL := pool.Get(vL.CurrentPMID)
		if hostL.Class != PMClassB {
			t.Fatalf("vL's host class = %v, want B", hostL.Class)
		}
		if len(hostL.RunningVMs) != 1 {
			t.Fatalf("vL's host running set size = %d, want 1 (B singleton)", len(hostL.RunningVMs))
		}
	})
}

// S5: a T companion jumping straight to B forces its L neighbour onto a
// fresh PM and ends up alone on a B-class host.
func TestScenarioS5TToBWithLCompanion(t *testing.T) {
	pool := NewPool(3)
	s := NewScheduler(pool)
	vmSet := map[int]*VirtualMachine{}
	vL := mustVM(t, 1, 0, 1, []float64{0.6, 0.6})
	vT := mustVM(t, 2, 0, 1, []float64{0.3, 0.9})

	runSlot(t, s, vmSet, []*VirtualMachine{vL, vT}, 0)
	originalHost := vT.CurrentPMID
	if vL.CurrentPMID != originalHost {
		t.Fatalf("setup: vL on pm %d, want %d alongside vT", vL.CurrentPMID, originalHost)
	}

	runSlot(t, s, vmSet, nil, 1)

	if vL.CurrentPMID == originalHost {
		t.Fatal("vL was not relocated off the original host")
	}
	hostT := pool.Get(vT.CurrentPMID)
	if hostT.Class != PMClassB {
		t.Fatalf("vT's host class = %v, want B", hostT.Class)
	}
	if len(hostT.RunningVMs) != 1 {
		t.Fatalf("vT's host running set size = %d, want 1", len(hostT.RunningVMs))
	}
}

// S6: a T item on an LT bin grows to S (0.6+0.5 = 1.1, hot); by the end of
// the slot the items are split across PMs and no active PM is hot.
func TestScenarioS6HotRecovery(t *testing.T) {
	pool := NewPool(3)
	s := NewScheduler(pool)
	vmSet := map[int]*VirtualMachine{}
	vL := mustVM(t, 1, 0, 1, []float64{0.6, 0.6})
	vT := mustVM(t, 2, 0, 1, []float64{0.3, 0.3})

	runSlot(t, s, vmSet, []*VirtualMachine{vL, vT}, 0)
	host := pool.Get(vL.CurrentPMID)
	if host.Class != PMClassLT {
		t.Fatalf("setup: host class = %v, want LT", host.Class)
	}

	vT.Demands[1] = 0.5 // 0.6+0.5 = 1.1, hot
	runSlot(t, s, vmSet, nil, 1)

	for id, pm := range pool.pms {
		if pool.IsActive(id) && pm.Hot() {
			t.Fatalf("pm %d still hot after slot 1: load %v", id, pm.Load())
		}
	}
	if vL.CurrentPMID == vT.CurrentPMID {
		t.Fatal("neither item was moved off the shared host")
	}
}

// L1: item_class is total on (0,1] and monotone at its boundaries.
func TestLawL1ItemClassTotalAndMonotone(t *testing.T) {
	for _, d := range []float64{0.001, 1.0 / 3.0, 1.0/3.0 + 1e-9, 0.5, 0.5 + 1e-9, 2.0 / 3.0, 2.0/3.0 + 1e-9, 1.0} {
		if _, ok := ItemClassOf(d); !ok {
			t.Fatalf("ItemClassOf(%v) not classified, want total over (0,1]", d)
		}
	}
	order := map[ItemClass]int{ClassT: 0, ClassS: 1, ClassL: 2, ClassB: 3}
	prevRank := -1
	for _, d := range []float64{0.2, 0.45, 0.6, 0.95} {
		c, _ := ItemClassOf(d)
		if order[c] < prevRank {
			t.Fatalf("ItemClassOf(%v) = %v, not monotone with increasing demand", d, c)
		}
		prevRank = order[c]
	}
}

// L2: divide(pm) partitions pm's T items into groups each summing to at
// most 1/3, with no item dropped or duplicated.
func TestLawL2DividePartitionsTItems(t *testing.T) {
	pool := NewPool(1)
	id, _ := pool.AllocateIdle()
	pm := pool.Get(id)
	demands := []float64{0.3, 0.25, 0.2, 0.15, 0.1, 0.05}
	want := map[int]float64{}
	for i, d := range demands {
		vm := mustVM(t, i+1, 0, 0, []float64{d})
		vm.AttachTo(id)
		pm.RunningVMs[vm.ID] = vm
		want[vm.ID] = d
	}

	groups := pool.Divide(pm)

	seen := map[int]bool{}
	for _, g := range groups {
		var sum float64
		for _, vm := range g {
			if seen[vm.ID] {
				t.Fatalf("vm %d appears in more than one group", vm.ID)
			}
			seen[vm.ID] = true
			sum += vm.CurrentDemand
		}
		if sum > 1.0/3.0+classEpsilon {
			t.Fatalf("group sum %v exceeds 1/3", sum)
		}
	}
	if len(seen) != len(want) {
		t.Fatalf("divide covered %d items, want %d", len(seen), len(want))
	}
}

// L3: release(pm) leaves pm idle and empty, and every VM it hosted is
// re-placed on some other active PM.
func TestLawL3ReleaseEmptiesAndRelocates(t *testing.T) {
	pool := NewPool(4)
	s := NewScheduler(pool)
	id, _ := pool.AllocateIdle()
	pm := pool.Get(id)
	vms := []*VirtualMachine{
		mustVM(t, 1, 0, 0, []float64{0.2}),
		mustVM(t, 2, 0, 0, []float64{0.2}),
		mustVM(t, 3, 0, 0, []float64{0.2}),
	}
	for _, vm := range vms {
		vm.AttachTo(id)
		pm.RunningVMs[vm.ID] = vm
	}
	pool.RenewIndex()

	if err := s.Release(pm); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if pool.IsActive(id) {
		t.Fatal("pm still active after Release")
	}
	if len(pm.RunningVMs) != 0 {
		t.Fatalf("pm running set size = %d after Release, want 0", len(pm.RunningVMs))
	}
	for _, vm := range vms {
		if !vm.HasPM || vm.CurrentPMID == id {
			t.Fatalf("vm %d not relocated off the released pm", vm.ID)
		}
	}
}

// L4: insert followed by pm_re_categorize preserves P1-P6 given enough
// spare capacity.
func TestLawL4InsertPreservesInvariants(t *testing.T) {
	pool := NewPool(8)
	s := NewScheduler(pool)
	vmSet := map[int]*VirtualMachine{}

	arrivals := []*VirtualMachine{
		mustVM(t, 1, 0, 0, []float64{0.9}),
		mustVM(t, 2, 0, 0, []float64{0.6}),
		mustVM(t, 3, 0, 0, []float64{0.3}),
		mustVM(t, 4, 0, 0, []float64{0.4}),
		mustVM(t, 5, 0, 0, []float64{0.4}),
	}
	for _, vm := range arrivals {
		if err := s.Insert(vm); err != nil {
			t.Fatalf("Insert(%d): %v", vm.ID, err)
		}
		vmSet[vm.ID] = vm
	}
	pool.ReCategorize()
	pool.RenewIndex()

	if err := pool.Validate(vmSet); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
