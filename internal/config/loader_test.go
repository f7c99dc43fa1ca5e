package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.False(t, cfg.Reconcilers.DNS.Enabled, "reconcilers are opt-in")
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
datastore:
  driver: postgres
  dsn: "host=master dbname=hosts"
  queryTimeout: 5s
notify:
  debounce: 250ms
registry:
  managedMin: 2000
  managedMax: 3000
reconcilers:
  dns:
    enabled: true
    zonesDir: /srv/named
  groups:
    enabled: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5*time.Second, cfg.Datastore.QueryTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Notify.Debounce)
	assert.Equal(t, DefaultMaxReconnectInterval, cfg.Notify.MaxReconnectInterval, "unset fields keep defaults")
	assert.Equal(t, uint32(2000), cfg.Registry.ManagedMin)
	assert.True(t, cfg.Reconcilers.DNS.Enabled)
	assert.Equal(t, "/srv/named", cfg.Reconcilers.DNS.ZonesDir)
	assert.Equal(t, "/etc/named.zones.conf", cfg.Reconcilers.DNS.ConfFile)
	assert.True(t, cfg.Reconcilers.Groups.Enabled)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "datastore: [not, a, map")

	_, err := LoadConfig(path)
	require.Error(t, err)

	var cfgErr ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "parse", cfgErr.ErrorType)
	assert.Equal(t, "config.yaml", cfgErr.FileName)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(c *Config)
		wantFields []string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name: "unknown driver and format",
			mutate: func(c *Config) {
				c.Datastore.Driver = "mysql"
				c.Notify.Listen = false
				c.Logging.Format = "xml"
			},
			wantFields: []string{"logging.format", "datastore.driver"},
		},
		{
			name: "listen requires postgres",
			mutate: func(c *Config) {
				c.Datastore.Driver = "sqlite"
			},
			wantFields: []string{"notify.listen"},
		},
		{
			name: "managed range must exclude root and be non-empty",
			mutate: func(c *Config) {
				c.Registry.ManagedMin = 0
			},
			wantFields: []string{"registry.managedMin"},
		},
		{
			name: "inverted managed range",
			mutate: func(c *Config) {
				c.Registry.ManagedMin = 5000
				c.Registry.ManagedMax = 4000
			},
			wantFields: []string{"registry.managedMin"},
		},
		{
			name: "negative check concurrency",
			mutate: func(c *Config) {
				c.Reconcilers.MaxConcurrent = -1
			},
			wantFields: []string{"reconcilers.maxConcurrent"},
		},
		{
			name: "enabled reconciler needs absolute paths",
			mutate: func(c *Config) {
				c.Reconcilers.DNS.Enabled = true
				c.Reconcilers.DNS.ZonesDir = "named"
			},
			wantFields: []string{"reconcilers.dns.zonesDir"},
		},
		{
			name: "dns conf file may not live in trimmed zone dir",
			mutate: func(c *Config) {
				c.Reconcilers.DNS.Enabled = true
				c.Reconcilers.DNS.ConfFile = "/var/named/zones.conf"
			},
			wantFields: []string{"reconcilers.dns.confFile"},
		},
		{
			name: "ftp unit must be a template",
			mutate: func(c *Config) {
				c.Reconcilers.FTP.Enabled = true
				c.Reconcilers.FTP.UnitTemplate = "vsftpd.service"
			},
			wantFields: []string{"reconcilers.ftp.unitTemplate"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate("/etc/hostconfd/config.yaml")
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var coll ConfigurationErrorCollection
			require.True(t, errors.As(err, &coll), "expected a ConfigurationErrorCollection, got %v", err)
			var fields []string
			for _, e := range coll.Errors {
				fields = append(fields, e.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestConfigurationErrorCollection_Error(t *testing.T) {
	var coll ConfigurationErrorCollection
	assert.Equal(t, "no configuration errors", coll.Error())

	coll.Add(NewConfigurationError("/a/config.yaml", "config.yaml", "validation", "first"))
	assert.Equal(t, "config.yaml: first", coll.Error())

	coll.Add(NewConfigurationError("/a/config.yaml", "config.yaml", "validation", "second"))
	assert.Equal(t, "2 configuration errors: config.yaml: first (and 1 more)", coll.Error())

	coll.Errors[1].Field = "datastore.driver"
	coll.Errors[1].Suggestions = []string{"use postgres or sqlite"}
	assert.Equal(t,
		"first (validation error in /a/config.yaml)\n\n"+
			"second (validation error in /a/config.yaml)\n  field: datastore.driver\n  hint: use postgres or sqlite\n",
		coll.Report())
}
