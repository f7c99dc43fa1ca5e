package subsystem

import (
	"fmt"

	"hostconfd/internal/datastore"
	"hostconfd/internal/reconciler"
	"hostconfd/internal/system"
)

// Deps are the collaborators shared by the subsystem reconcilers.
type Deps struct {
	Store    datastore.Store
	Host     system.Host
	Services system.ServiceManager
	Packages system.PackageManager
	IDs      system.IDResolver
}

// RequireRedHat fails with reconciler.ErrUnsupportedEnvironment unless the
// host is a Red Hat derivative.
func RequireRedHat(host system.Host) error {
	if !host.RedHatFamily() {
		return reconciler.Unsupported("host %s is not in the Red Hat family", host)
	}
	return nil
}

// Owner resolves a user and group name pair.
func Owner(ids system.IDResolver, user, group string) (uid, gid int, err error) {
	if uid, err = ids.UID(user); err != nil {
		return 0, 0, err
	}
	if gid, err = ids.GID(group); err != nil {
		return 0, 0, err
	}
	return uid, gid, nil
}

// ValidName rejects names that cannot be used as a single path element.
func ValidName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid name %q", name)
	}
	for _, r := range name {
		if r == '/' || r == 0 {
			return fmt.Errorf("invalid name %q", name)
		}
	}
	return nil
}
