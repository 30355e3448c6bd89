package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 6379, config.Port)
	assert.Equal(t, 7379, config.ReplicationPort)
	assert.Equal(t, PersistenceBinlog, config.Persistence)
	assert.Equal(t, 256, config.BlockSize)

	got, err := GetConfig()
	require.NoError(t, err)
	assert.Same(t, config, got)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blockdeque.yaml")
	content := `port: 7000
persistence: none
data_dir: /tmp/bd
block_size: 1
replication_enabled: true
followers:
  - 127.0.0.1:8001
  - 127.0.0.1:8002
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, config.Port)
	assert.Equal(t, 8000, config.ReplicationPort)
	assert.Equal(t, PersistenceNone, config.Persistence)
	assert.Equal(t, "/tmp/bd", config.DataDir)
	// Block sizes below two fall back to the default.
	assert.Equal(t, 256, config.BlockSize)
	assert.True(t, config.Replication)
	assert.Equal(t, []string{"127.0.0.1:8001", "127.0.0.1:8002"}, config.Followers)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("BLOCKDEQUE_BLOCK_SIZE", "64")
	config, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 64, config.BlockSize)
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [1, 2"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "blockdeque.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "block_size: 256")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 6379, config.Port)

	// An existing file is left alone.
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\n"), 0644))
	require.NoError(t, WriteDefaultConfig(path))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "port: 9000\n", string(data))
}
