// Package govern implements the execution governor: a single cancellation
// signal shared by every running command. Every command dispatch, loop
// iteration, and function call is charged against a bounded counter;
// exceeding any of them raises a LimitError that unwinds every frame.
package govern

import (
	"fmt"
	"sync/atomic"
)

// Limits configures every bound the governor enforces. A zero value in
// any field is treated as "unbounded" for that counter.
type Limits struct {
	MaxCallDepth       int
	MaxCommandCount    int
	MaxLoopIterations  int
	MaxAwkIterations   int
	MaxSedIterations   int
	MaxJqIterations    int
}

// LimitName identifies which counter saturated.
type LimitName string

const (
	LimitCallDepth      LimitName = "maxCallDepth"
	LimitCommandCount   LimitName = "maxCommandCount"
	LimitLoopIterations LimitName = "maxLoopIterations"
	LimitAwkIterations  LimitName = "maxAwkIterations"
	LimitSedIterations  LimitName = "maxSedIterations"
	LimitJqIterations   LimitName = "maxJqIterations"
)

// LimitError is the governor's reserved, never-user-catchable error. It
// carries the limit name and the configured value so embedders can render
// a precise diagnostic. ReservedExitCode is the stable nonzero exit code
// the engine surfaces for it.
type LimitError struct {
	Name  LimitName
	Value int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("execution limit exceeded: %s (limit=%d)", e.Name, e.Value)
}

// ReservedExitCode is the stable nonzero exit code for execution-limit
// termination, distinct from the 0-2/126/127 codes ordinary command
// outcomes use.
const ReservedExitCode = 124

// Governor enforces Limits with atomic counters so plugins invoked
// concurrently with stream pumping can charge it safely without a
// separate lock.
type Governor struct {
	limits Limits

	commandCount atomic.Int64
	callDepth    atomic.Int64

	awkIterTotal atomic.Int64
	sedIterTotal atomic.Int64
	jqIterTotal  atomic.Int64
}

// LoopMarker is an opaque per-loop token owning its own iteration counter,
// so ChargeLoop tracks the *current* loop construct separately even though
// Bash programs routinely nest loops (a nested loop's iterations must not
// count against an enclosing loop's budget, and vice versa).
type LoopMarker struct {
	iterations atomic.Int64
}

// New builds a Governor with the given limits.
func New(limits Limits) *Governor {
	return &Governor{limits: limits}
}

// ChargeCommand must be called once per command dispatch.
func (g *Governor) ChargeCommand() error {
	if g.limits.MaxCommandCount <= 0 {
		return nil
	}
	if g.commandCount.Add(1) > int64(g.limits.MaxCommandCount) {
		return &LimitError{Name: LimitCommandCount, Value: g.limits.MaxCommandCount}
	}
	return nil
}

// EnterCall charges call-depth on function entry; the returned func must
// be deferred to release the depth counter on return (scope-guard
// semantics).
func (g *Governor) EnterCall() (func(), error) {
	depth := g.callDepth.Add(1)
	if g.limits.MaxCallDepth > 0 && depth > int64(g.limits.MaxCallDepth) {
		g.callDepth.Add(-1)
		return func() {}, &LimitError{Name: LimitCallDepth, Value: g.limits.MaxCallDepth}
	}
	return func() { g.callDepth.Add(-1) }, nil
}

// NewLoop returns a fresh token for one loop construct. The caller defers
// the returned func, which is a no-op kept so existing `marker, release :=
// NewLoop(); defer release()` call sites don't need restructuring; the
// counter itself lives on the marker and needs no explicit teardown.
func (g *Governor) NewLoop() (*LoopMarker, func()) {
	return &LoopMarker{}, func() {}
}

// ChargeLoop must be called once per loop-body iteration, charging the
// iteration count owned by m rather than a single script-wide total, so
// maxLoopIterations bounds each loop construct independently: two
// sequential loops of 100 iterations each stay under a limit of 150.
func (g *Governor) ChargeLoop(m *LoopMarker) error {
	if g.limits.MaxLoopIterations <= 0 {
		return nil
	}
	if m.iterations.Add(1) > int64(g.limits.MaxLoopIterations) {
		return &LimitError{Name: LimitLoopIterations, Value: g.limits.MaxLoopIterations}
	}
	return nil
}

// ChargeAwk/ChargeSed/ChargeJq let plugins charge their own interpreter
// loops against the shared governor.
func (g *Governor) ChargeAwk() error { return charge(&g.awkIterTotal, g.limits.MaxAwkIterations, LimitAwkIterations) }
func (g *Governor) ChargeSed() error { return charge(&g.sedIterTotal, g.limits.MaxSedIterations, LimitSedIterations) }
func (g *Governor) ChargeJq() error  { return charge(&g.jqIterTotal, g.limits.MaxJqIterations, LimitJqIterations) }

func charge(counter *atomic.Int64, limit int, name LimitName) error {
	if limit <= 0 {
		return nil
	}
	if counter.Add(1) > int64(limit) {
		return &LimitError{Name: name, Value: limit}
	}
	return nil
}

// Limits returns the configured limits, for callers (plugin contexts) that
// need to report the sandbox's bounds without holding a reference to the
// Governor itself.
func (g *Governor) Limits() Limits { return g.limits }

// CommandCount reports the total commands dispatched so far, for
// diagnostics.
func (g *Governor) CommandCount() int64 { return g.commandCount.Load() }

// CallDepth reports current recursion depth.
func (g *Governor) CallDepth() int64 { return g.callDepth.Load() }

// Reset zeroes every counter; the engine calls this at the start of every
// `exec`.
func (g *Governor) Reset() {
	g.commandCount.Store(0)
	g.callDepth.Store(0)
	g.awkIterTotal.Store(0)
	g.sedIterTotal.Store(0)
	g.jqIterTotal.Store(0)
}
