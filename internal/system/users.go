package system

import (
	"fmt"
	"os/user"
	"strconv"
)

// IDResolver maps user and group names to numeric ids.
type IDResolver interface {
	UID(name string) (int, error)
	GID(name string) (int, error)
}

// NSSResolver resolves names through the host's name service switch.
// Lookups are not cached: a group created by this daemon's own group
// reconciler must resolve in the next pass of another reconciler.
type NSSResolver struct{}

func (NSSResolver) UID(name string) (int, error) {
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}
	u, err := user.Lookup(name)
	if err != nil {
		return 0, fmt.Errorf("resolve user %q: %w", name, err)
	}
	return strconv.Atoi(u.Uid)
}

func (NSSResolver) GID(name string) (int, error) {
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, fmt.Errorf("resolve group %q: %w", name, err)
	}
	return strconv.Atoi(g.Gid)
}
