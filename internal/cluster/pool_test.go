package cluster

import "testing"

func mustVM(t *testing.T, id, start, end int, demands []float64) *VirtualMachine {
	t.Helper()
	vm, err := NewVirtualMachine(id, start, end, demands)
	if err != nil {
		t.Fatalf("NewVirtualMachine(%d): %v", id, err)
	}
	return vm
}

func TestAllocateIdleExhaustion(t *testing.T) {
	p := NewPool(1)
	id, err := p.AllocateIdle()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected pm 1, got %d", id)
	}
	if _, err := p.AllocateIdle(); err != ErrPoolExhausted {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestAllocateIdleLowestID(t *testing.T) {
	p := NewPool(3)
	if id, _ := p.AllocateIdle(); id != 1 {
		t.Fatalf("expected 1, got %d", id)
	}
	if id, _ := p.AllocateIdle(); id != 2 {
		t.Fatalf("expected 2, got %d", id)
	}
}

func TestReCategorizeReleasesEmptyPMs(t *testing.T) {
	p := NewPool(1)
	id, _ := p.AllocateIdle()
	pm := p.Get(id)
	vm := mustVM(t, 1, 0, 0, []float64{0.5})
	vm.AttachTo(id)
	pm.RunningVMs[vm.ID] = vm

	delete(pm.RunningVMs, vm.ID)
	p.ReCategorize()

	if p.IsActive(id) {
		t.Fatal("expected PM to be released to idle once its running set is empty")
	}
	if p.ActiveCount() != 0 || p.IdleCount() != 1 {
		t.Fatalf("active=%d idle=%d, want 0/1", p.ActiveCount(), p.IdleCount())
	}
}

func TestRenewIndexRebuildsBuckets(t *testing.T) {
	p := NewPool(2)
	id, _ := p.AllocateIdle()
	pm := p.Get(id)
	vm := mustVM(t, 1, 0, 0, []float64{0.4})
	vm.AttachTo(id)
	pm.RunningVMs[vm.ID] = vm

	p.RenewIndex()

	if !p.exists(PMClassS, nil) {
		t.Fatal("expected PM to be indexed as class S")
	}
	counts := p.ClassCounts()
	if counts[string(PMClassS)] != 1 {
		t.Fatalf("ClassCounts()[S] = %d, want 1", counts[string(PMClassS)])
	}
}

func TestGetExcludesSelf(t *testing.T) {
	p := NewPool(2)
	id1, _ := p.AllocateIdle()
	pm1 := p.Get(id1)
	vm1 := mustVM(t, 1, 0, 0, []float64{0.4})
	vm1.AttachTo(id1)
	pm1.RunningVMs[vm1.ID] = vm1
	p.RenewIndex()

	if p.exists(PMClassS, pm1) {
		t.Fatal("expected no S-class PM other than pm1")
	}
	if got := p.get(PMClassS, pm1); got != nil {
		t.Fatalf("expected nil excluding the only S-class PM, got %v", got.ID)
	}
	if got := p.get(PMClassS, nil); got == nil || got.ID != id1 {
		t.Fatalf("expected pm1 with no exclusion, got %v", got)
	}
}
