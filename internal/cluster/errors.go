package cluster

import "errors"

// ErrPoolExhausted is returned by Pool.AllocateIdle when no idle PM remains.
// It is fatal to the run: the simulation was given too small a PM pool for
// the arrival stream it was asked to place.
var ErrPoolExhausted = errors.New("cluster: PM pool exhausted")

// ErrInvariantViolation is returned by Validate when the pool's derived
// state (running sets, gaps, classes, class index) disagrees with what the
// invariants in doc.go require. It indicates a scheduler bug, never a
// recoverable runtime condition.
var ErrInvariantViolation = errors.New("cluster: invariant violation")
