package datastore

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process Store holding a snapshot set by the caller. Err,
// when set, is returned by every query, which is how an unreachable master
// looks to a reconciler.
type Memory struct {
	mu sync.RWMutex

	zones       []Zone
	ftpServers  []FTPServer
	mailLimits  []MailLimit
	banJails    []BanJail
	settings    HostSettings
	groups      []Group
	sharedDirs  []SharedDirectory
	err         error
	zoneQueries int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) SetZones(zones ...Zone) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones = cloneZones(zones)
}

func (m *Memory) SetFTPServers(servers ...FTPServer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ftpServers = slices.Clone(servers)
}

func (m *Memory) SetMailLimits(limits ...MailLimit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mailLimits = slices.Clone(limits)
}

func (m *Memory) SetBanJails(jails ...BanJail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banJails = slices.Clone(jails)
}

func (m *Memory) SetHostSettings(settings HostSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
}

func (m *Memory) SetGroups(groups ...Group) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = cloneGroups(groups)
}

func (m *Memory) SetSharedDirectories(dirs ...SharedDirectory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sharedDirs = slices.Clone(dirs)
}

// SetError makes every query fail with err until it is cleared with nil.
func (m *Memory) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ZoneQueries counts calls to Zones.
func (m *Memory) ZoneQueries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.zoneQueries
}

func (m *Memory) Zones(ctx context.Context) ([]Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zoneQueries++
	if m.err != nil {
		return nil, m.err
	}
	return cloneZones(m.zones), nil
}

func (m *Memory) FTPServers(ctx context.Context) ([]FTPServer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return slices.Clone(m.ftpServers), nil
}

func (m *Memory) MailLimits(ctx context.Context) ([]MailLimit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return slices.Clone(m.mailLimits), nil
}

func (m *Memory) BanJails(ctx context.Context) ([]BanJail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return slices.Clone(m.banJails), nil
}

func (m *Memory) HostSettings(ctx context.Context) (HostSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return HostSettings{}, m.err
	}
	return m.settings, nil
}

func (m *Memory) Groups(ctx context.Context) ([]Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return cloneGroups(m.groups), nil
}

func (m *Memory) SharedDirectories(ctx context.Context) ([]SharedDirectory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return slices.Clone(m.sharedDirs), nil
}

func (m *Memory) Close() error { return nil }

func cloneZones(zones []Zone) []Zone {
	out := slices.Clone(zones)
	for i := range out {
		out[i].Records = slices.Clone(out[i].Records)
	}
	return out
}

func cloneGroups(groups []Group) []Group {
	out := slices.Clone(groups)
	for i := range out {
		out[i].Members = slices.Clone(out[i].Members)
	}
	return out
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*SQLStore)(nil)
)
