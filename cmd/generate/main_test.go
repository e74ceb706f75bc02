package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdata/internal/config"
	"salesdata/internal/sales"
)

func TestRun_WritesDataset(t *testing.T) {
	out := filepath.Join(t.TempDir(), "raw")

	err := run([]string{"-seed", "11", "-customers", "15", "-products", "10", "-orders", "40", "-out", out, "-as-of", "2025-02-28"})
	require.NoError(t, err)

	for _, name := range sales.DatasetFiles {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}

	ds, err := sales.NewFileStorage(out).Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(11), ds.Manifest.Seed)
	assert.Equal(t, 40, ds.Manifest.Orders)
	assert.Equal(t, "2025-02-28", ds.Manifest.AsOf.String())
}

func TestRun_InvalidInput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "raw")
	assert.Error(t, run([]string{"-orders", "-3", "-out", out}))
	assert.Error(t, run([]string{"-as-of", "yesterday", "-out", out}))
	assert.Error(t, run([]string{"-unknown"}))
}

func TestOverrideConfig(t *testing.T) {
	cfg := config.Default()
	overrideConfig(&cfg, 0, 0, 0, 25, "", "", false)
	assert.Equal(t, uint64(42), cfg.Generator.Seed, "unset flags keep the config")
	assert.Equal(t, 25, cfg.Generator.Orders)
	assert.Equal(t, "data/raw", cfg.Generator.OutputDir)

	overrideConfig(&cfg, 9, 0, 0, 0, "", "", true)
	assert.Zero(t, cfg.Generator.Seed)
}
