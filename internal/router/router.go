// Package router executes named generation calls strictly one at a
// time, gated on free-memory headroom. With a local model there is no
// spare capacity for parallel generation, and there is no preemption
// or queuing of generation requests, so the only safe move under
// memory pressure is to refuse a unit of work before it starts.
package router

import (
	"context"

	"go.uber.org/zap"
)

// CallState tracks what happened to one named call. Resource gating is
// an expected, frequent condition, so it is a state, not an error.
type CallState int

const (
	// StateNotAttempted - the call has not run yet.
	StateNotAttempted CallState = iota
	// StateSkipped - free memory was below the floor; the call never started.
	StateSkipped
	// StateSucceeded - the call ran and returned a result.
	StateSucceeded
	// StateFailed - the call started and failed; its error is recorded.
	StateFailed
)

func (s CallState) String() string {
	switch s {
	case StateNotAttempted:
		return "not_attempted"
	case StateSkipped:
		return "skipped_low_resource"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Call is one named unit of work. Run must be a zero-argument closure
// over whatever inputs the call needs; closures may read results
// written by earlier calls in the same batch, since execution order is
// the input order.
type Call struct {
	Name string
	Run  func(ctx context.Context) (any, error)
}

// Result records the outcome of one call.
type Result struct {
	Name   string
	State  CallState
	Value  any     // nil unless State == StateSucceeded
	Err    error   // nil unless State == StateFailed
	FreeGB float64 // free memory sampled before the call
}

// Batch holds results in input order.
type Batch struct {
	Results []Result
	byName  map[string]int
}

// Value returns the result value for a name. ok is false when the
// call was skipped, failed, or never ran - callers treat all three as
// an unavailable evaluator.
func (b *Batch) Value(name string) (any, bool) {
	i, found := b.byName[name]
	if !found {
		return nil, false
	}
	r := b.Results[i]
	if r.State != StateSucceeded {
		return nil, false
	}
	return r.Value, true
}

// Router runs call batches sequentially with a free-memory gate.
type Router struct {
	monitor   Monitor
	minFreeGB float64
	logger    *zap.Logger
}

// New creates a router. A nil monitor disables the gate (every call
// runs), which is what tests want.
func New(monitor Monitor, minFreeGB float64, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		monitor:   monitor,
		minFreeGB: minFreeGB,
		logger:    logger,
	}
}

// RunSequential executes the calls one after another, never
// concurrently. Before each call the free-memory headroom is sampled;
// below the floor the call is skipped and recorded as null. A failure
// during one call is caught and recorded, and the batch continues.
// The batch as a whole never errors.
func (r *Router) RunSequential(ctx context.Context, calls []Call) *Batch {
	batch := &Batch{
		Results: make([]Result, len(calls)),
		byName:  make(map[string]int, len(calls)),
	}

	for i, call := range calls {
		batch.byName[call.Name] = i
		batch.Results[i] = Result{Name: call.Name, State: StateNotAttempted}
	}

	for i, call := range calls {
		res := &batch.Results[i]

		ok, freeGB := r.headroom()
		res.FreeGB = freeGB

		if !ok {
			r.logger.Warn("skipping call: low free memory",
				zap.String("call", call.Name),
				zap.Float64("free_gb", freeGB),
				zap.Float64("min_free_gb", r.minFreeGB))
			res.State = StateSkipped
			continue
		}

		r.logger.Debug("running call",
			zap.String("call", call.Name),
			zap.Float64("free_gb", freeGB))

		value, err := call.Run(ctx)
		if err != nil {
			r.logger.Error("call failed",
				zap.String("call", call.Name),
				zap.Error(err))
			res.State = StateFailed
			res.Err = err
			continue
		}

		res.State = StateSucceeded
		res.Value = value
	}

	return batch
}

// headroom samples the monitor. A monitor error fails open: gating is
// a protective optimization, not a correctness requirement, and a
// broken monitor should not stall the whole analysis.
func (r *Router) headroom() (bool, float64) {
	if r.monitor == nil {
		return true, 0
	}
	freeGB, err := r.monitor.FreeMemoryGB()
	if err != nil {
		r.logger.Warn("resource monitor failed, running call anyway", zap.Error(err))
		return true, 0
	}
	return freeGB >= r.minFreeGB, freeGB
}
