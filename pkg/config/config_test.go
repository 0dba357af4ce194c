package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ufsvault/pkg/layout"
	"ufsvault/pkg/unixfs"
)

// reset 每个测试使用干净的全局 viper
func reset(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoad_Defaults(t *testing.T) {
	reset(t)
	setDefaults()
	assert.Equal(t, "disk", viper.GetString("storage.type"))
	assert.Equal(t, RepoDir, filepath.Base(filepath.Dir(viper.GetString("storage.path"))))
	assert.Equal(t, "sqlite", viper.GetString("database.driver"))
	assert.Equal(t, "balanced", viper.GetString("importer.strategy"))
	assert.Equal(t, 174, viper.GetInt("importer.max_children"))
	assert.NoError(t, Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	reset(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
storage:
  type: memory
importer:
  strategy: trickle
  layer_repeat: 2
  raw_leaves: true
log:
  level: debug
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	t.Setenv("UFS_IMPORTER_CHUNKER", "size-1024")

	require.NoError(t, Load(cfgPath))
	assert.Equal(t, "memory", viper.GetString("storage.type"))

	opts, err := ImporterOptions()
	require.NoError(t, err)
	assert.Equal(t, layout.Trickle, opts.Strategy)
	assert.Equal(t, 2, opts.LayerRepeat)
	assert.True(t, opts.RawLeaves)
	assert.Equal(t, "size-1024", opts.Chunker, "环境变量覆盖")
	assert.Equal(t, unixfs.TFile, opts.LeafType)
}

func TestLoad_BadFile(t *testing.T) {
	reset(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("storage: [unclosed"), 0o644))
	assert.Error(t, Load(cfgPath))
}

func TestValidate_AggregatesErrors(t *testing.T) {
	reset(t)
	setDefaults()
	viper.Set("storage.type", "ftp")
	viper.Set("database.driver", "oracle")
	viper.Set("log.level", "loud")
	viper.Set("importer.strategy", "spiral")
	viper.Set("importer.max_children", 1)

	err := Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"ftp", "oracle", "loud", "spiral", "max children"} {
		assert.Contains(t, msg, want)
	}
}

func TestValidate_S3RequiresBucket(t *testing.T) {
	reset(t)
	setDefaults()
	viper.Set("storage.type", "s3")
	err := Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestSetupLogger(t *testing.T) {
	reset(t)
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	viper.Set("log.level", "warn")
	viper.Set("log.format", "json")

	var buf bytes.Buffer
	require.NoError(t, SetupLogger(&buf))
	slog.Info("hidden")
	slog.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	viper.Set("log.level", "nope")
	assert.Error(t, SetupLogger(&buf))
}
