// Package workload synthesizes a VM arrival stream to drive the
// simulator. It is an external collaborator of the scheduler (§1 non-goals
// exclude a real trace loader), grounded on the reference data generator's
// shape: each VM gets a random start time, a duration drawn from a normal
// distribution, and a per-slot demand trace jittered around a random base
// level within (0, 1].
package workload

import (
	"math"
	"math/rand"
	"sort"

	"github.com/oriys/novasim/internal/cluster"
)

// Generator produces a reproducible VM arrival stream from a seed.
type Generator struct {
	rng *rand.Rand

	// MeanDuration and DurationStdDev parameterize the slot count a VM
	// runs for (a normal distribution, reference's 300/0.1 shape scaled
	// down for a simulator-sized run rather than the reference's
	// thousand-slot trace).
	MeanDuration   float64
	DurationStdDev float64
}

// NewGenerator builds a Generator seeded for reproducibility: the same
// seed, NumVMs and NumSlots to Generate always produce the same stream.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng:            rand.New(rand.NewSource(seed)),
		MeanDuration:   12,
		DurationStdDev: 4,
	}
}

// Generate produces numVMs arrivals spread across [0, numSlots), each with
// a monotonically increasing id starting at 1. VMs are returned sorted by
// start_time ascending, matching the arrival ordering the driver expects
// (§6: "the driver consumes VMs in ascending start_time").
func (g *Generator) Generate(numVMs, numSlots int) ([]*cluster.VirtualMachine, error) {
	vms := make([]*cluster.VirtualMachine, 0, numVMs)

	for id := 1; id <= numVMs; id++ {
		start := g.rng.Intn(numSlots)
		duration := int(math.Round(g.rng.NormFloat64()*g.DurationStdDev + g.MeanDuration))
		if duration < 1 {
			duration = 1
		}
		end := start + duration - 1
		if end >= numSlots {
			end = numSlots - 1
		}

		demands := g.demandTrace(end - start + 1)
		vm, err := cluster.NewVirtualMachine(id, start, end, demands)
		if err != nil {
			return nil, err
		}
		vms = append(vms, vm)
	}

	sort.Slice(vms, func(i, j int) bool { return vms[i].StartTime < vms[j].StartTime })
	return vms, nil
}

// demandTrace produces length per-slot demand values: a random base level
// in (0, 1], then each slot jitters within +/-15% of it, clamped to (0,1].
// This mirrors the reference generator's down_demand/up_demand band without
// depending on its fixed real-world trace file.
func (g *Generator) demandTrace(length int) []float64 {
	base := 0.05 + g.rng.Float64()*0.9
	out := make([]float64, length)
	for i := range out {
		d := base * (0.85 + g.rng.Float64()*0.3)
		if d <= 0 {
			d = 0.01
		}
		if d > 1 {
			d = 1
		}
		out[i] = d
	}
	return out
}

