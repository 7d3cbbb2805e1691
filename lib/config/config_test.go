package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nshi/falcon/lib/config"
	"github.com/nshi/falcon/lib/persist"
)

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "falcon.yaml")
	body := "cache_path: /var/lib/falcon/cache\n" +
		"cache_format: sqlite\n" +
		"batch_size: 50\n" +
		"max_workers: 8\n" +
		"dir_slots: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	o, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/falcon/cache", o.CachePath)
	assert.Equal(t, 50, o.BatchSize)
	assert.Equal(t, 8, o.MaxWorkers)
	assert.Equal(t, 2, o.DirSlots)
	assert.Equal(t, persist.FormatSQLite, o.Format())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestFormatDefaultsToText(t *testing.T) {
	var o config.Options
	assert.Equal(t, persist.FormatText, o.Format())

	o.CacheFormat = "bogus"
	assert.Equal(t, persist.FormatText, o.Format())
}
