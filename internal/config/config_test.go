package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "production", cfg.Database.Name)
	assert.Equal(t, "/api", cfg.Server.BasePath)
	assert.Equal(t, "open", cfg.Tasks.TransitionPolicy)
}

func TestFromYAMLOverlaysDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
database:
  name: staging
tasks:
  transition_policy: locked
webhooks:
  - url: https://hooks.example.org/donortrack
    events: [task.status_changed]
`))
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Database.Name)
	assert.Equal(t, "locked", cfg.Tasks.TransitionPolicy)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, []string{"task.status_changed"}, cfg.Webhooks[0].Events)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"policy":     "tasks:\n  transition_policy: maybe\n",
		"log level":  "log:\n  level: loud\n",
		"base path":  "server:\n  base_path: api\n",
		"upstream":   "upstream:\n  base_url: not a url\n",
		"webhook":    "webhooks:\n  - events: [x]\n",
		"db name":    "database:\n  name: ../escape\n",
		"trailing /": "server:\n  base_path: /api/\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestValidateNamesField(t *testing.T) {
	_, err := FromYAML([]byte("webhooks:\n  - url: \"\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhooks[0].url")
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(dir)
	assert.ErrorContains(t, err, "not found")

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("log:\n  level: debug\n"), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestYAMLRoundTrip(t *testing.T) {
	data, err := Default().YAML()
	require.NoError(t, err)
	cfg, err := FromYAML(data)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
