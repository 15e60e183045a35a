package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
storage:
  type: local
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, 4, cfg.Convert.NumExtractWorkers)
	assert.Equal(t, 2, cfg.Convert.NumMergeWorkers)
	assert.False(t, cfg.Convert.KeepTempFolder)
	assert.Equal(t, "./ucp_runs.db", cfg.Ledger.DBPath)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "ucp-transcoder", cfg.Telemetry.ServiceName)
}

func TestLoad_CustomValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
convert:
  num_extract_workers: 8
  num_merge_workers: 4
  keep_temp_folder: true
storage:
  type: local
  local_path: /tmp/storage
ledger:
  db_path: /tmp/runs.db
telemetry:
  enabled: true
  service_name: my-transcoder
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Convert.NumExtractWorkers)
	assert.Equal(t, 4, cfg.Convert.NumMergeWorkers)
	assert.True(t, cfg.Convert.KeepTempFolder)
	assert.Equal(t, "/tmp/storage", cfg.Storage.LocalPath)
	assert.Equal(t, "/tmp/runs.db", cfg.Ledger.DBPath)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "my-transcoder", cfg.Telemetry.ServiceName)
}

func TestLoad_InvalidStorageType(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
storage:
  type: s3
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	_, err = Load(configFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage type")
}

func TestLoad_COSWithCredentials(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
storage:
  type: cos
  bucket: test-bucket
  region: ap-guangzhou
  secret_id: test-id
  secret_key: test-key
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, "cos", cfg.Storage.Type)
	assert.Equal(t, "test-bucket", cfg.Storage.Bucket)
}

func TestValidate_InvalidExtractWorkers(t *testing.T) {
	cfg := &Config{
		Convert: ConvertConfig{NumExtractWorkers: 0, NumMergeWorkers: 2},
		Storage: StorageConfig{Type: "local"},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "num_extract_workers must be at least 1")
}

func TestValidate_InvalidMergeWorkers(t *testing.T) {
	cfg := &Config{
		Convert: ConvertConfig{NumExtractWorkers: 4, NumMergeWorkers: 0},
		Storage: StorageConfig{Type: "local"},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "num_merge_workers must be at least 1")
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoadFromReader(t *testing.T) {
	content := []byte(`
convert:
  num_extract_workers: 6
storage:
  type: local
`)
	cfg, err := LoadFromReader("yaml", content)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Convert.NumExtractWorkers)
	assert.Equal(t, "local", cfg.Storage.Type)
}
