package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOSRelease(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantID    string
		wantMajor int
		redHat    bool
	}{
		{
			name:      "rocky",
			input:     "NAME=\"Rocky Linux\"\nID=\"rocky\"\nID_LIKE=\"rhel centos fedora\"\nVERSION_ID=\"9.4\"\nPRETTY_NAME=\"Rocky Linux 9.4 (Blue Onyx)\"\n",
			wantID:    "rocky",
			wantMajor: 9,
			redHat:    true,
		},
		{
			name:      "derivative via ID_LIKE",
			input:     "ID=ol\nID_LIKE=\"fedora\"\nVERSION_ID=\"8.10\"\n",
			wantID:    "ol",
			wantMajor: 8,
			redHat:    true,
		},
		{
			name:      "debian",
			input:     "# comment\n\nID=debian\nVERSION_ID=\"12\"\n",
			wantID:    "debian",
			wantMajor: 12,
			redHat:    false,
		},
		{
			name:   "missing ID defaults to linux",
			input:  "NAME=Something\n",
			wantID: "linux",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseOSRelease([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, h.ID)
			assert.Equal(t, tt.wantMajor, h.MajorVersion())
			assert.Equal(t, tt.redHat, h.RedHatFamily())
		})
	}
}

func TestParseOSRelease_Malformed(t *testing.T) {
	_, err := ParseOSRelease([]byte("ID=rhel\ngarbage\n"))
	assert.Error(t, err)
}

func TestReadHost_Missing(t *testing.T) {
	_, err := ReadHost(filepath.Join(t.TempDir(), "os-release"))
	assert.Error(t, err)
}

type exitError int

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", int(e)) }
func (e exitError) ExitCode() int { return int(e) }

func fakeExec(t *testing.T, fn func(name string, args []string) ([]byte, error)) *[]string {
	t.Helper()
	var calls []string
	orig := execCommand
	execCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, name+" "+strings.Join(args, " "))
		return fn(name, args)
	}
	t.Cleanup(func() { execCommand = orig })
	return &calls
}

func TestRPMPackages_Installed(t *testing.T) {
	fakeExec(t, func(name string, args []string) ([]byte, error) {
		switch args[len(args)-1] {
		case "vsftpd":
			return nil, nil
		case "fail2ban-server":
			return []byte("package fail2ban-server is not installed"), exitError(1)
		default:
			return []byte("rpmdb open failed"), exitError(2)
		}
	})
	p := NewRPMPackages("")
	ctx := context.Background()

	ok, err := p.Installed(ctx, "vsftpd")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Installed(ctx, "fail2ban-server")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.Installed(ctx, "broken")
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 2, cmdErr.ExitCode)
	assert.Contains(t, err.Error(), "rpmdb open failed")
}

func TestRPMPackages_InstallRemove(t *testing.T) {
	calls := fakeExec(t, func(string, []string) ([]byte, error) { return nil, nil })
	p := NewRPMPackages("yum")
	ctx := context.Background()

	require.NoError(t, p.Install(ctx, "vsftpd"))
	require.NoError(t, p.Remove(ctx, "vsftpd", "ftp"))
	require.NoError(t, p.Install(ctx))

	assert.Equal(t, []string{"yum -y -q install vsftpd", "yum -y -q remove vsftpd ftp"}, *calls)
}

func TestRestorecon(t *testing.T) {
	calls := fakeExec(t, func(string, []string) ([]byte, error) { return nil, nil })
	enforce := filepath.Join(t.TempDir(), "enforce")
	r := &Restorecon{Command: "/sbin/restorecon", EnforceFile: enforce}
	ctx := context.Background()

	require.NoError(t, r.Relabel(ctx, []string{"/etc/group"}))
	assert.Empty(t, *calls, "disabled SELinux means no relabel")

	require.NoError(t, os.WriteFile(enforce, []byte("1"), 0o644))
	require.NoError(t, r.Relabel(ctx, nil))
	require.NoError(t, r.Relabel(ctx, []string{"/etc/group", "/etc/gshadow"}))
	assert.Equal(t, []string{"/sbin/restorecon -F -- /etc/group /etc/gshadow"}, *calls)
}

func TestNSSResolver_Numeric(t *testing.T) {
	var r NSSResolver
	uid, err := r.UID("1234")
	require.NoError(t, err)
	assert.Equal(t, 1234, uid)

	gid, err := r.GID("0")
	require.NoError(t, err)
	assert.Equal(t, 0, gid)
}

func TestNSSResolver_Root(t *testing.T) {
	var r NSSResolver
	uid, err := r.UID("root")
	if err != nil {
		t.Skipf("no passwd database: %v", err)
	}
	assert.Equal(t, 0, uid)
}

// busUnits answers ListUnitsByPatterns the way systemd does: nil states
// match every loaded unit.
type busUnits struct {
	units  []dbus.UnitStatus
	states []string
}

func (b *busUnits) ListUnitsByPatternsContext(_ context.Context, states, patterns []string) ([]dbus.UnitStatus, error) {
	b.states = states
	var out []dbus.UnitStatus
	for _, u := range b.units {
		if len(states) > 0 && !slices.Contains(states, u.ActiveState) {
			continue
		}
		for _, p := range patterns {
			if ok, _ := path.Match(p, u.Name); ok {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func TestActiveUnits_SkipsFailedAndInactive(t *testing.T) {
	bus := &busUnits{units: []dbus.UnitStatus{
		{Name: "vsftpd@vhost-b.service", LoadState: "loaded", ActiveState: "active"},
		{Name: "vsftpd@vhost-c.service", LoadState: "loaded", ActiveState: "failed"},
		{Name: "vsftpd@vhost-a.service", LoadState: "loaded", ActiveState: "activating"},
		{Name: "vsftpd@vhost-d.service", LoadState: "loaded", ActiveState: "inactive"},
		{Name: "fail2ban.service", LoadState: "loaded", ActiveState: "active"},
	}}

	names, err := activeUnits(context.Background(), bus, []string{"vsftpd@vhost-*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"vsftpd@vhost-a.service", "vsftpd@vhost-b.service"}, names)
	assert.ElementsMatch(t, []string{"active", "activating", "reloading"}, bus.states)
}
