package system

import (
	"context"
	"os"

	"hostconfd/pkg/logging"
)

// DefaultSELinuxEnforceFile exists only while SELinux is enabled.
const DefaultSELinuxEnforceFile = "/sys/fs/selinux/enforce"

// Restorecon relabels paths with restorecon(8).
type Restorecon struct {
	Command     string
	EnforceFile string
}

// NewRestorecon returns a relabeler running command.
func NewRestorecon(command string) *Restorecon {
	return &Restorecon{Command: command, EnforceFile: DefaultSELinuxEnforceFile}
}

// Enabled reports whether SELinux is active on this host.
func (r *Restorecon) Enabled() bool {
	_, err := os.Stat(r.EnforceFile)
	return err == nil
}

// Relabel restores the default security context of paths. It does nothing
// when SELinux is disabled.
func (r *Restorecon) Relabel(ctx context.Context, paths []string) error {
	if len(paths) == 0 || !r.Enabled() {
		return nil
	}
	args := append([]string{"-F", "--"}, paths...)
	if _, err := run(ctx, r.Command, args...); err != nil {
		return err
	}
	logging.Debug("SELinux", "Relabeled %d paths", len(paths))
	return nil
}
