package reconciler

import (
	"context"
	"time"
)

// Reconciler converges one subsystem of the host toward the data store.
type Reconciler interface {
	// Name identifies the reconciler in logs, status and the CLI.
	Name() string

	// Sources lists the notification sources that trigger a rebuild.
	Sources() []string

	// Rebuild reads a fresh snapshot, computes the desired artifacts and
	// commits them through pass. It must be idempotent: running it twice on
	// unchanged input performs no writes the second time.
	Rebuild(ctx context.Context, pass *Pass) error
}

// Restarter is implemented by reconcilers whose service must be reloaded
// after its configuration changed. Restart is called at most once per pass,
// under the rebuild lock, and only when the pass changed something.
type Restarter interface {
	Restart(ctx context.Context, pass *Pass) error
}

// Relabeler restores security contexts on freshly written paths. It is
// called once per pass, after the rebuild lock is released.
type Relabeler interface {
	Relabel(ctx context.Context, paths []string) error
}

// State is the scheduling state of a Runner.
type State int

const (
	// StateIdle means no pass is in flight.
	StateIdle State = iota

	// StateRunning means a pass is in flight and nothing arrived since it
	// started.
	StateRunning

	// StateRunningPending means a pass is in flight and at least one
	// notification arrived during it, so exactly one more pass follows.
	StateRunningPending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateRunningPending:
		return "RunningPending"
	default:
		return "Unknown"
	}
}

// Outcome is the terminal result of one pass.
type Outcome struct {
	PassID     string
	Reconciler string
	Started    time.Time
	Finished   time.Time

	// Changed reports whether any artifact was written or removed.
	Changed bool

	// Restarted reports whether the reconciler's Restart hook ran.
	Restarted bool

	// Err is nil for a successful pass.
	Err error
}

// Succeeded reports whether the pass completed without error.
func (o Outcome) Succeeded() bool { return o.Err == nil }

// Duration is how long the pass held the rebuild lock.
func (o Outcome) Duration() time.Duration { return o.Finished.Sub(o.Started) }

// Status is a point-in-time view of a runner for the CLI and logs.
type Status struct {
	Name     string
	State    State
	Sources  []string
	Passes   int64
	Failures int64
	// Last is nil until the first pass finishes.
	Last *Outcome
}
