package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostconfd/internal/config"
	"hostconfd/internal/datastore"
	"hostconfd/internal/notify"
	"hostconfd/internal/subsystem"
	"hostconfd/internal/system"
	"hostconfd/internal/system/systemtest"
)

// testConfig returns a configuration backed by a sqlite snapshot in a
// temporary directory with every source disabled.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Logging.Format = "text"
	cfg.Datastore.Driver = "sqlite"
	cfg.Datastore.DSN = filepath.Join(t.TempDir(), "snapshot.db")
	cfg.Notify.Listen = false
	cfg.Notify.Periodic = 0
	cfg.System.OSReleaseFile = filepath.Join("testdata", "os-release")
	cfg.System.Relabel = false
	return cfg
}

func testDeps() subsystem.Deps {
	return subsystem.Deps{
		Store:    datastore.NewMemory(),
		Host:     system.Host{ID: "rocky", VersionID: "9.4"},
		Services: systemtest.NewServices(),
		Packages: systemtest.NewPackages(),
		IDs:      systemtest.NewResolver(),
	}
}

func names(t *testing.T, cfg config.Config) []string {
	t.Helper()
	var out []string
	for _, rec := range BuildReconcilers(cfg, testDeps()) {
		out = append(out, rec.Name())
	}
	return out
}

func TestBuildReconcilers_OnlyEnabled(t *testing.T) {
	cfg := testConfig(t)
	assert.Empty(t, names(t, cfg))

	cfg.Reconcilers.SharedDirs.Enabled = true
	cfg.Reconcilers.DNS.Enabled = true
	cfg.Reconcilers.Groups.Enabled = true
	assert.Equal(t, []string{"dns", "groups", "shareddirs"}, names(t, cfg))

	cfg.Reconcilers.FTP.Enabled = true
	cfg.Reconcilers.MailFilter.Enabled = true
	cfg.Reconcilers.Jails.Enabled = true
	cfg.Reconcilers.Timezone.Enabled = true
	assert.Equal(t,
		[]string{"dns", "ftp", "mailfilter", "jails", "timezone", "groups", "shareddirs"},
		names(t, cfg))
}

func TestBuildSources(t *testing.T) {
	sourceNames := func(cfg config.Config) []string {
		var out []string
		for _, src := range buildSources(cfg) {
			out = append(out, src.Name())
		}
		return out
	}

	cfg := testConfig(t)
	assert.Empty(t, sourceNames(cfg))

	cfg.Datastore.Driver = "postgres"
	cfg.Datastore.DSN = "postgres://hostconfd@localhost:1/hostconfd?sslmode=disable"
	cfg.Notify.Listen = true
	cfg.Notify.Periodic = time.Minute
	cfg.Reconcilers.Groups.Watch = true
	assert.Equal(t, []string{"postgres", notify.Periodic}, sourceNames(cfg),
		"group file is only watched when the groups reconciler is enabled")

	cfg.Reconcilers.Groups.Enabled = true
	assert.Equal(t, []string{"postgres", "filesystem", notify.Periodic}, sourceNames(cfg))
}

func TestInitializeServices(t *testing.T) {
	cfg := testConfig(t)
	cfg.Reconcilers.Timezone.Enabled = true
	cfg.Reconcilers.Timezone.Localtime = filepath.Join(t.TempDir(), "localtime")
	cfg.Reconcilers.Timezone.ZoneinfoDir = t.TempDir()

	services, err := InitializeServices(cfg)
	require.NoError(t, err)
	defer services.Close()

	assert.Equal(t, "rocky", services.Host.ID)
	assert.True(t, services.Host.RedHatFamily())
	assert.Equal(t, []string{"timezone"}, services.Manager.Names())
	assert.False(t, services.Manager.IsRunning())
	assert.Equal(t, []string{datastore.SourceHostSettings, notify.Periodic}, services.Hub.Sources())
}

func TestInitializeServices_MissingOSRelease(t *testing.T) {
	cfg := testConfig(t)
	cfg.System.OSReleaseFile = filepath.Join(t.TempDir(), "os-release")

	services, err := InitializeServices(cfg)
	require.NoError(t, err)
	defer services.Close()
	assert.Equal(t, "linux", services.Host.ID)
	assert.False(t, services.Host.RedHatFamily())
}

func TestInitializeServices_StoreFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Datastore.DSN = filepath.Join(t.TempDir(), "missing", "dir", "snapshot.db")

	_, err := InitializeServices(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data store")
	_, statErr := os.Stat(filepath.Dir(cfg.Datastore.DSN))
	assert.True(t, os.IsNotExist(statErr))
}
