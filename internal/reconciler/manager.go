package reconciler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"hostconfd/internal/commit"
	"hostconfd/internal/notify"
	"hostconfd/pkg/logging"
)

// Subscriber is the part of the notification hub the manager needs.
type Subscriber interface {
	Subscribe(source string, handler notify.Handler)
}

// ManagerConfig holds the collaborators shared by all runners.
type ManagerConfig struct {
	// Notifier delivers change notifications. Nil means runners only run
	// on Start and RunAll.
	Notifier Subscriber

	// Committer is shared by all passes. Defaults to commit.New().
	Committer *commit.Committer

	// Relabeler is called after each pass that wrote files. Optional.
	Relabeler Relabeler

	// MaxConcurrentPasses bounds how many passes RunAll runs at once.
	// Zero means no bound.
	MaxConcurrentPasses int
}

// Manager owns the runners of all registered reconcilers. Reconcilers run
// fully concurrently with each other and share no lock.
type Manager struct {
	mu sync.RWMutex

	config  ManagerConfig
	metrics *Metrics

	// runners maps reconciler names to their runners
	runners map[string]*Runner

	ctx     context.Context
	running bool
	stopped bool
}

// NewManager creates a manager with no reconcilers.
func NewManager(config ManagerConfig) *Manager {
	if config.Committer == nil {
		config.Committer = commit.New()
	}
	return &Manager{
		config:  config,
		metrics: NewMetrics(),
		runners: make(map[string]*Runner),
	}
}

// Register adds rec and subscribes its runner to rec.Sources(). Registering
// the same reconciler again returns the existing runner. Registering a
// different reconciler under a taken name is an error. A reconciler
// registered after Start gets its initial pass immediately.
func (m *Manager) Register(rec Reconciler) (*Runner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := rec.Name()
	if existing, ok := m.runners[name]; ok {
		if existing.rec == rec {
			return existing, nil
		}
		return nil, fmt.Errorf("reconciler %s already registered", name)
	}
	if m.stopped {
		return nil, fmt.Errorf("reconciler %s: manager is stopped", name)
	}

	runner := NewRunner(rec, m.config.Committer, m.config.Relabeler, m.metrics)
	m.runners[name] = runner

	if m.config.Notifier != nil {
		for _, source := range rec.Sources() {
			m.config.Notifier.Subscribe(source, runner)
		}
	}
	logging.Info("ReconcileManager", "Registered reconciler %s (sources: %v)", name, rec.Sources())

	if m.running {
		runner.setContext(m.ctx)
		runner.OnNotification()
	}
	return runner, nil
}

// Start triggers one initial pass per runner so the host converges without
// waiting for a notification.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return fmt.Errorf("manager is stopped")
	}
	if m.running {
		return nil
	}
	m.ctx = ctx
	m.running = true

	for _, runner := range m.sortedRunners() {
		runner.setContext(ctx)
		runner.OnNotification()
	}
	logging.Info("ReconcileManager", "Started %d reconcilers", len(m.runners))
	return nil
}

// Stop stops all runners from accepting notifications and waits for the
// passes in flight to finish. Pending follow-up passes are dropped.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.running = false
	runners := m.sortedRunners()
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, runner := range runners {
		wg.Add(1)
		go func(r *Runner) {
			defer wg.Done()
			r.Stop()
		}(runner)
	}
	wg.Wait()
	logging.Info("ReconcileManager", "Stopped; all in-flight passes drained")
}

// IsRunning reports whether Start was called and Stop was not.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Runner returns the runner for name.
func (m *Manager) Runner(name string) (*Runner, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runners[name]
	return r, ok
}

// Names returns the registered reconciler names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.runners))
	for name := range m.runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunAll runs one synchronous pass of each named reconciler concurrently,
// or of all of them when names is empty, at most MaxConcurrentPasses at a
// time. Pass failures are reported in the outcomes. The error is for
// unknown names, or ctx ending before every pass started; the passes that
// never started carry ctx's error in their outcome.
func (m *Manager) RunAll(ctx context.Context, names ...string) ([]Outcome, error) {
	m.mu.RLock()
	var runners []*Runner
	if len(names) == 0 {
		runners = m.sortedRunners()
	} else {
		for _, name := range names {
			r, ok := m.runners[name]
			if !ok {
				m.mu.RUnlock()
				return nil, fmt.Errorf("unknown reconciler %q", name)
			}
			runners = append(runners, r)
		}
	}
	m.mu.RUnlock()

	outcomes := make([]Outcome, len(runners))
	var g errgroup.Group
	if m.config.MaxConcurrentPasses > 0 {
		g.SetLimit(m.config.MaxConcurrentPasses)
	}
	for i, runner := range runners {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = Outcome{Reconciler: runner.Name(), Err: err}
				return fmt.Errorf("reconciler %s not run: %w", runner.Name(), err)
			}
			outcomes[i] = runner.RunOnce(ctx)
			return nil
		})
	}
	return outcomes, g.Wait()
}

// Statuses returns a status snapshot of every runner, sorted by name.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	runners := m.sortedRunners()
	m.mu.RUnlock()

	statuses := make([]Status, 0, len(runners))
	for _, r := range runners {
		statuses = append(statuses, r.Status())
	}
	return statuses
}

// Metrics returns the pass metrics of all runners.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// sortedRunners must be called with m.mu held.
func (m *Manager) sortedRunners() []*Runner {
	runners := make([]*Runner, 0, len(m.runners))
	for _, r := range m.runners {
		runners = append(runners, r)
	}
	sort.Slice(runners, func(i, j int) bool {
		return runners[i].Name() < runners[j].Name()
	})
	return runners
}
