package cluster

import "fmt"

// VirtualMachine is a time-varying bin-packing item: it arrives at
// StartTime, runs through EndTime inclusive, and has a known per-slot
// resource demand. CurrentPMID identifies its host by id rather than by
// reference — the pool resolves it.
type VirtualMachine struct {
	ID        int
	StartTime int
	EndTime   int
	Demands   []float64 // length EndTime-StartTime+1, each in (0,1]

	CurrentDemand float64
	Category      ItemClass
	PreCategory   ItemClass // category at the previous slot; "" before the first
	HasPreCategory bool

	CurrentPMID int
	HasPM       bool
}

// NewVirtualMachine constructs a VM with its first slot's demand already
// categorized. It is fatal (returns an error) if any demand is out of the
// valid (0,1] range — demand validation happens once, at construction, not
// on every slot advance.
func NewVirtualMachine(id, startTime, endTime int, demands []float64) (*VirtualMachine, error) {
	if endTime < startTime {
		return nil, fmt.Errorf("vm %d: end_time %d before start_time %d", id, endTime, startTime)
	}
	wantLen := endTime - startTime + 1
	if len(demands) != wantLen {
		return nil, fmt.Errorf("vm %d: expected %d demand values, got %d", id, wantLen, len(demands))
	}
	for i, d := range demands {
		if d <= 0 || d > 1.0+classEpsilon {
			return nil, fmt.Errorf("vm %d: demand[%d]=%v out of range (0,1]", id, i, d)
		}
	}

	cat, ok := ItemClassOf(demands[0])
	if !ok {
		return nil, fmt.Errorf("vm %d: initial demand %v did not classify", id, demands[0])
	}

	return &VirtualMachine{
		ID:            id,
		StartTime:     startTime,
		EndTime:       endTime,
		Demands:       demands,
		CurrentDemand: demands[0],
		Category:      cat,
	}, nil
}

// Advance moves the VM's current-slot state to systemTime, recomputing its
// demand and category and saving the previous category into PreCategory.
// It is a no-op once systemTime has moved past EndTime — the VM is retired
// at the first slot after EndTime, before Advance would be called again.
func (v *VirtualMachine) Advance(systemTime int) {
	idx := systemTime - v.StartTime
	if idx < 0 || idx >= len(v.Demands) {
		return
	}
	v.PreCategory = v.Category
	v.HasPreCategory = true
	v.CurrentDemand = v.Demands[idx]
	cat, ok := ItemClassOf(v.CurrentDemand)
	if ok {
		v.Category = cat
	}
}

// AttachTo records that v is now hosted by the PM with the given id.
func (v *VirtualMachine) AttachTo(pmID int) {
	v.CurrentPMID = pmID
	v.HasPM = true
}

// Detach clears v's host, used only during a brief re-placement window —
// every VM must have a host again before the slot's pipeline ends.
func (v *VirtualMachine) Detach() {
	v.CurrentPMID = 0
	v.HasPM = false
}

func (v *VirtualMachine) String() string {
	return fmt.Sprintf("VM-%d[start=%d end=%d demand=%.4f class=%s]", v.ID, v.StartTime, v.EndTime, v.CurrentDemand, v.Category)
}
