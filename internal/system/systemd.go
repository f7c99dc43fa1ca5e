package system

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coreos/go-systemd/v22/dbus"

	"hostconfd/pkg/logging"
)

// ServiceManager controls systemd units.
type ServiceManager interface {
	Start(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	Restart(ctx context.Context, unit string) error
	ReloadOrRestart(ctx context.Context, unit string) error
	Enable(ctx context.Context, units ...string) error
	Disable(ctx context.Context, units ...string) error

	// ActiveUnits returns the units matching any of the glob patterns
	// whose active state is active, activating or reloading, sorted by
	// name. Failed and inactive units are left out even while loaded.
	ActiveUnits(ctx context.Context, patterns ...string) ([]string, error)
}

// Systemd implements ServiceManager over the systemd D-Bus API. The bus
// connection is opened on first use and reopened after it drops.
type Systemd struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

// NewSystemd returns a manager that connects lazily.
func NewSystemd() *Systemd {
	return &Systemd{}
}

func (s *Systemd) connection(ctx context.Context) (*dbus.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil && s.conn.Connected() {
		return s.conn, nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	conn, err := dbus.NewWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	s.conn = conn
	return conn, nil
}

type jobFunc func(ctx context.Context, name, mode string, ch chan<- string) (int, error)

// job submits a unit job and waits for its result.
func (s *Systemd) job(ctx context.Context, verb, unit string, submit func(*dbus.Conn) jobFunc) error {
	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}
	done := make(chan string, 1)
	if _, err := submit(conn)(ctx, unit, "replace", done); err != nil {
		return fmt.Errorf("%s %s: %w", verb, unit, err)
	}
	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("%s %s: job %s", verb, unit, result)
		}
		logging.Debug("Systemd", "%s %s: done", verb, unit)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s %s: %w", verb, unit, ctx.Err())
	}
}

func (s *Systemd) Start(ctx context.Context, unit string) error {
	return s.job(ctx, "start", unit, func(c *dbus.Conn) jobFunc { return c.StartUnitContext })
}

func (s *Systemd) Stop(ctx context.Context, unit string) error {
	return s.job(ctx, "stop", unit, func(c *dbus.Conn) jobFunc { return c.StopUnitContext })
}

func (s *Systemd) Restart(ctx context.Context, unit string) error {
	return s.job(ctx, "restart", unit, func(c *dbus.Conn) jobFunc { return c.RestartUnitContext })
}

func (s *Systemd) ReloadOrRestart(ctx context.Context, unit string) error {
	return s.job(ctx, "reload-or-restart", unit, func(c *dbus.Conn) jobFunc { return c.ReloadOrRestartUnitContext })
}

func (s *Systemd) Enable(ctx context.Context, units ...string) error {
	if len(units) == 0 {
		return nil
	}
	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}
	_, changes, err := conn.EnableUnitFilesContext(ctx, units, false, false)
	if err != nil {
		return fmt.Errorf("enable %v: %w", units, err)
	}
	if len(changes) == 0 {
		return nil
	}
	return conn.ReloadContext(ctx)
}

func (s *Systemd) Disable(ctx context.Context, units ...string) error {
	if len(units) == 0 {
		return nil
	}
	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}
	changes, err := conn.DisableUnitFilesContext(ctx, units, false)
	if err != nil {
		return fmt.Errorf("disable %v: %w", units, err)
	}
	if len(changes) == 0 {
		return nil
	}
	return conn.ReloadContext(ctx)
}

// activeStates are the unit ActiveState values counted as running.
var activeStates = []string{"active", "activating", "reloading"}

// unitLister is the part of *dbus.Conn that ActiveUnits needs.
type unitLister interface {
	ListUnitsByPatternsContext(ctx context.Context, states []string, patterns []string) ([]dbus.UnitStatus, error)
}

func (s *Systemd) ActiveUnits(ctx context.Context, patterns ...string) ([]string, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}
	return activeUnits(ctx, conn, patterns)
}

func activeUnits(ctx context.Context, conn unitLister, patterns []string) ([]string, error) {
	statuses, err := conn.ListUnitsByPatternsContext(ctx, activeStates, patterns)
	if err != nil {
		return nil, fmt.Errorf("list units %v: %w", patterns, err)
	}
	names := make([]string, 0, len(statuses))
	for _, st := range statuses {
		names = append(names, st.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the bus connection, if any.
func (s *Systemd) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
