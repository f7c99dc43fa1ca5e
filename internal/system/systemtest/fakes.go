// Package systemtest provides in-memory fakes of the system interfaces.
package systemtest

import (
	"context"
	"fmt"
	"path"
	"slices"
	"sort"
	"strconv"
	"sync"
)

// Services records every call and tracks which units are active and
// enabled.
type Services struct {
	mu      sync.Mutex
	calls   []string
	active  map[string]bool
	enabled map[string]bool

	// Err, when set, is returned by every call.
	Err error
}

func NewServices() *Services {
	return &Services{active: map[string]bool{}, enabled: map[string]bool{}}
}

func (s *Services) record(call string) error {
	s.calls = append(s.calls, call)
	return s.Err
}

func (s *Services) Start(ctx context.Context, unit string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[unit] = true
	return s.record("start " + unit)
}

func (s *Services) Stop(ctx context.Context, unit string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, unit)
	return s.record("stop " + unit)
}

func (s *Services) Restart(ctx context.Context, unit string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[unit] = true
	return s.record("restart " + unit)
}

func (s *Services) ReloadOrRestart(ctx context.Context, unit string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[unit] = true
	return s.record("reload-or-restart " + unit)
}

func (s *Services) Enable(ctx context.Context, units ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range units {
		s.enabled[u] = true
	}
	return s.record(fmt.Sprintf("enable %v", units))
}

func (s *Services) Disable(ctx context.Context, units ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range units {
		delete(s.enabled, u)
	}
	return s.record(fmt.Sprintf("disable %v", units))
}

// ActiveUnits lists started units only, like the systemd adapter. A unit
// marked with Fail is loaded but not listed.
func (s *Services) ActiveUnits(ctx context.Context, patterns ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for unit := range s.active {
		for _, p := range patterns {
			if ok, _ := path.Match(p, unit); ok {
				names = append(names, unit)
				break
			}
		}
	}
	sort.Strings(names)
	return names, s.Err
}

// Calls returns the recorded calls in order.
func (s *Services) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// Count returns how many times call was recorded.
func (s *Services) Count(call string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == call {
			n++
		}
	}
	return n
}

// Reset forgets the recorded calls but keeps unit state.
func (s *Services) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Fail marks unit as crashed: it stays enabled but is no longer active.
func (s *Services) Fail(unit string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, unit)
}

// Active reports whether unit was started and not stopped since.
func (s *Services) Active(unit string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[unit]
}

// Enabled reports whether unit is enabled.
func (s *Services) Enabled(unit string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[unit]
}

// Packages is an in-memory package database.
type Packages struct {
	mu        sync.Mutex
	installed map[string]bool
	calls     []string
}

func NewPackages(installed ...string) *Packages {
	p := &Packages{installed: map[string]bool{}}
	for _, pkg := range installed {
		p.installed[pkg] = true
	}
	return p
}

func (p *Packages) Installed(ctx context.Context, pkg string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.installed[pkg], nil
}

func (p *Packages) Install(ctx context.Context, pkgs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pkg := range pkgs {
		p.installed[pkg] = true
		p.calls = append(p.calls, "install "+pkg)
	}
	return nil
}

func (p *Packages) Remove(ctx context.Context, pkgs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pkg := range pkgs {
		delete(p.installed, pkg)
		p.calls = append(p.calls, "remove "+pkg)
	}
	return nil
}

func (p *Packages) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// Resolver maps names to the ids given at construction. Numeric names
// resolve to themselves.
type Resolver struct {
	Users  map[string]int
	Groups map[string]int
}

// NewResolver returns a resolver that knows root (0) as user and group.
func NewResolver() *Resolver {
	return &Resolver{Users: map[string]int{"root": 0}, Groups: map[string]int{"root": 0}}
}

func (r *Resolver) UID(name string) (int, error) {
	if id, ok := r.Users[name]; ok {
		return id, nil
	}
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}
	return 0, fmt.Errorf("unknown user %q", name)
}

func (r *Resolver) GID(name string) (int, error) {
	if id, ok := r.Groups[name]; ok {
		return id, nil
	}
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}
	return 0, fmt.Errorf("unknown group %q", name)
}
