// Package cluster implements the size-class bin-packing scheduler: the rule
// driven engine that decides which physical machine (PM) hosts each virtual
// machine (VM) at every discrete time slot, and migrates VMs between PMs
// when their resource demand shifts into a different size class.
//
// # Size classes
//
// A VM's current demand d, a float in (0, 1], buckets into one of four item
// classes: T (tiny, d<=1/3), S (small, 1/3<d<=1/2), L (large, 1/2<d<=2/3), or
// B (big, 2/3<d<=1). A PM's class is derived from the multiset of item
// classes it hosts plus its total load — see PMClassOf. The "U" prefixed
// classes (UT, ULLT) mark under-full bins with residual gap > 1/3 that can
// still absorb a T-group; these are the existing bins FillWith offers to a
// T-item (Fill separately packs T-groups into L and LT bins).
//
// # Pool topology
//
// Every PM the simulation will ever use is allocated up front by the driver
// and handed to Pool as a fixed-size id space. Pool partitions PM ids into
// idle (never used, or emptied and reset) and active (hosting at least one
// VM), and maintains a class index: a map from PM class to the set of active
// PMs currently in that class. The index is an inverted view rebuilt each
// slot rather than maintained incrementally — with the PM count bounded and
// per-slot work already O(|active|), re-deriving it is cheap and removes an
// entire category of staleness bugs.
//
// # Ownership
//
// The pool exclusively owns PhysicalMachine records, addressed by int id. A
// PhysicalMachine exclusively owns the VirtualMachine values in its running
// set. A VirtualMachine carries its host as an id (CurrentPMID), not a back
// reference — resolve the host by looking it up in the pool. The class index
// holds non-owning references into the same PM records the pool owns.
//
// # Concurrency model
//
// None. The scheduler is driven synchronously, one slot at a time, by
// internal/simulator; there is no internal locking because there is nothing
// to race against. A PM may be transiently hot (load > 1.0) or absent from
// the class index mid-slot while a rule sequence is still rearranging VMs;
// by the time a slot's pipeline finishes, every PM that remains active must
// be cool and classified — see Scheduler.Adjust and the invariants below.
//
// # Invariants (hold at slot boundaries, after the full per-slot pipeline)
//
//   - I1: every non-retired VM has exactly one host PM, and that PM's
//     running set contains it.
//   - I2: a PM is active iff its running set is non-empty.
//   - I3: the class index contains exactly the active PMs, keyed by class.
//   - I4: for every active PM, Gap and Class match the running set.
//   - I5: no active PM is hot (total demand > 1.0).
package cluster
