package mailfilter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostconfd/internal/config"
	"hostconfd/internal/datastore"
	"hostconfd/internal/reconciler"
	"hostconfd/internal/subsystem"
	"hostconfd/internal/system/systemtest"
)

func newTest(t *testing.T, unit string) (*Reconciler, *reconciler.Runner, *datastore.Memory, *systemtest.Services) {
	t.Helper()
	cfg := config.MailFilterConfig{
		Enabled:    true,
		LimitsFile: filepath.Join(t.TempDir(), "limits"),
		Owner:      "root",
		Group:      "mail",
		Unit:       unit,
	}
	ids := &systemtest.Resolver{
		Users:  map[string]int{"root": os.Getuid()},
		Groups: map[string]int{"mail": os.Getgid()},
	}
	store := datastore.NewMemory()
	services := systemtest.NewServices()
	rec := New(cfg, subsystem.Deps{Store: store, Services: services, IDs: ids})
	return rec, reconciler.NewRunner(rec, nil, nil, nil), store, services
}

func TestRebuild_WritesSortedTable(t *testing.T) {
	rec, runner, store, services := newTest(t, "mailfilter.service")
	store.SetMailLimits(
		datastore.MailLimit{Address: "b@example.com", Burst: 10, Rate: 100},
		datastore.MailLimit{Address: "a@example.com", Burst: 5, Rate: 50},
	)

	out := runner.RunOnce(context.Background())
	require.NoError(t, out.Err)
	assert.True(t, out.Changed)
	assert.Equal(t, 1, services.Count("reload-or-restart mailfilter.service"))

	content, err := os.ReadFile(rec.cfg.LimitsFile)
	require.NoError(t, err)
	assert.Equal(t, "# generated by hostconfd\n# address burst rate\na@example.com 5 50\nb@example.com 10 100\n", string(content))

	out = runner.RunOnce(context.Background())
	require.NoError(t, out.Err)
	assert.False(t, out.Changed)
	assert.Equal(t, 1, services.Count("reload-or-restart mailfilter.service"))
}

func TestRebuild_TokenChangeRewrites(t *testing.T) {
	rec, runner, store, _ := newTest(t, "")
	store.SetMailLimits(datastore.MailLimit{Address: "a@example.com", Burst: 5, Rate: 50})
	require.NoError(t, runner.RunOnce(context.Background()).Err)

	store.SetMailLimits(datastore.MailLimit{Address: "a@example.com", Burst: 6, Rate: 50})
	out := runner.RunOnce(context.Background())
	require.NoError(t, out.Err)
	assert.True(t, out.Changed)
	assert.True(t, out.Restarted, "Restart runs but has no unit to reload")

	content, err := os.ReadFile(rec.cfg.LimitsFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "a@example.com 6 50\n")
}

func TestRebuild_NoLimitsRemovesTable(t *testing.T) {
	rec, runner, store, _ := newTest(t, "")
	store.SetMailLimits(datastore.MailLimit{Address: "a@example.com", Burst: 5, Rate: 50})
	require.NoError(t, runner.RunOnce(context.Background()).Err)

	store.SetMailLimits()
	out := runner.RunOnce(context.Background())
	require.NoError(t, out.Err)
	assert.True(t, out.Changed)
	assert.NoFileExists(t, rec.cfg.LimitsFile)

	out = runner.RunOnce(context.Background())
	require.NoError(t, out.Err)
	assert.False(t, out.Changed)
}

func TestRebuild_InvalidAddressWritesNothing(t *testing.T) {
	rec, runner, store, _ := newTest(t, "")
	store.SetMailLimits(
		datastore.MailLimit{Address: "a@example.com", Burst: 5, Rate: 50},
		datastore.MailLimit{Address: "bad address", Burst: 5, Rate: 50},
	)

	out := runner.RunOnce(context.Background())
	require.Error(t, out.Err)
	assert.NoFileExists(t, rec.cfg.LimitsFile)
}
