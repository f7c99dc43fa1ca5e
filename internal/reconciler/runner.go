package reconciler

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"hostconfd/internal/commit"
	"hostconfd/pkg/logging"
)

// Runner schedules the passes of one reconciler. Notifications never block
// and never run a pass inline. While a pass is in flight any number of
// notifications collapse into exactly one follow-up pass, and at most one
// pass holds the rebuild lock at any time.
type Runner struct {
	rec       Reconciler
	committer *commit.Committer
	relabeler Relabeler
	metrics   *Metrics

	// rebuildMu serializes passes, including those started by RunOnce.
	rebuildMu sync.Mutex

	mu       sync.Mutex
	state    State
	stopped  bool
	ctx      context.Context
	last     *Outcome
	passes   int64
	failures int64
	inflight sync.WaitGroup
}

// NewRunner creates a runner for rec. relabeler and metrics may be nil.
func NewRunner(rec Reconciler, committer *commit.Committer, relabeler Relabeler, metrics *Metrics) *Runner {
	if committer == nil {
		committer = commit.New()
	}
	return &Runner{
		rec:       rec,
		committer: committer,
		relabeler: relabeler,
		metrics:   metrics,
		ctx:       context.Background(),
	}
}

// Name returns the reconciler's name.
func (r *Runner) Name() string { return r.rec.Name() }

// Reconciler returns the reconciler this runner drives.
func (r *Runner) Reconciler() Reconciler { return r.rec }

// setContext sets the parent context of future passes. Its values are kept
// but its cancellation is not: passes always run to completion.
func (r *Runner) setContext(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx = context.WithoutCancel(ctx)
}

// OnNotification schedules a pass. It returns immediately.
func (r *Runner) OnNotification() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	switch r.state {
	case StateIdle:
		r.state = StateRunning
		r.inflight.Add(1)
		go r.loop(r.ctx)
	case StateRunning:
		r.state = StateRunningPending
	case StateRunningPending:
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer r.inflight.Done()
	for {
		r.runPass(ctx)

		r.mu.Lock()
		if r.state == StateRunningPending && !r.stopped {
			r.state = StateRunning
			r.mu.Unlock()
			continue
		}
		r.state = StateIdle
		r.mu.Unlock()
		return
	}
}

// RunOnce runs one pass synchronously, waiting for any pass in flight to
// finish first.
func (r *Runner) RunOnce(ctx context.Context) Outcome {
	return r.runPass(context.WithoutCancel(ctx))
}

func (r *Runner) runPass(ctx context.Context) Outcome {
	name := r.rec.Name()

	r.rebuildMu.Lock()
	pass := NewPass(name, r.committer)
	logging.Debug(name, "Pass %s started", pass.ID)
	out := r.execute(ctx, pass)
	r.record(out)
	r.rebuildMu.Unlock()

	if out.Err != nil {
		logging.Error(name, out.Err, "Pass %s failed after %s", pass.ID, out.Duration())
		if pe, ok := out.Err.(*PanicError); ok {
			logging.Debug(name, "Pass %s panic stack:\n%s", pass.ID, pe.Stack)
		}
	} else if out.Changed {
		logging.Info(name, "Pass %s applied %d changes in %s", pass.ID, len(pass.ChangedPaths()), out.Duration())
	} else {
		logging.Debug(name, "Pass %s found nothing to change", pass.ID)
	}

	r.relabel(ctx, pass)
	return out
}

// execute runs the rebuild and, if anything changed, the restart hook. A
// panic in either becomes a PanicError. The restart hook also runs after a
// failed rebuild that already committed changes, so the service never keeps
// running on stale configuration that the next pass would see as applied.
func (r *Runner) execute(ctx context.Context, pass *Pass) (out Outcome) {
	out = Outcome{PassID: pass.ID, Reconciler: pass.Reconciler, Started: pass.Started}
	defer func() {
		if v := recover(); v != nil {
			out.Err = &PanicError{Value: v, Stack: debug.Stack()}
		}
		out.Changed = pass.Changed()
		out.Finished = time.Now()
	}()

	out.Err = r.rec.Rebuild(ctx, pass)

	restarter, ok := r.rec.(Restarter)
	if !ok || !pass.Changed() {
		return out
	}
	out.Restarted = true
	if err := restarter.Restart(ctx, pass); err != nil && out.Err == nil {
		out.Err = err
	}
	return out
}

func (r *Runner) relabel(ctx context.Context, pass *Pass) {
	paths := pass.RelabelPaths()
	if r.relabeler == nil || len(paths) == 0 {
		return
	}
	defer func() {
		if v := recover(); v != nil {
			logging.Error(r.rec.Name(), &PanicError{Value: v}, "Relabel after pass %s panicked", pass.ID)
		}
	}()
	if err := r.relabeler.Relabel(ctx, paths); err != nil {
		logging.Warn(r.rec.Name(), "Relabel after pass %s failed: %v", pass.ID, err)
	}
}

func (r *Runner) record(out Outcome) {
	r.mu.Lock()
	r.last = &out
	r.passes++
	if out.Err != nil {
		r.failures++
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordPass(out)
	}
}

// State returns the current scheduling state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Status returns a snapshot for reporting.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Status{
		Name:     r.rec.Name(),
		State:    r.state,
		Sources:  r.rec.Sources(),
		Passes:   r.passes,
		Failures: r.failures,
	}
	if r.last != nil {
		last := *r.last
		s.Last = &last
	}
	return s
}

// Stop stops accepting notifications, drops a pending follow-up pass and
// waits for the pass in flight to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	r.inflight.Wait()
}
