package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()

	v := viper.New()
	SetDefaults(v)
	if yaml != "" {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.EqualValues(t, 25<<20, cfg.Gateway.MaxUploadBytes)
	assert.Equal(t, 50, cfg.Gateway.MinTextLength)
	assert.Equal(t, 1000, cfg.Gateway.DefaultDailyLimit)
	assert.Equal(t, 120*time.Second, cfg.Gateway.InferenceTimeout)
	assert.Equal(t, TransportHTTP, cfg.Inference.Transport)
	assert.Equal(t, FilesystemNone, cfg.Storage.FilesystemType)
	assert.Equal(t, DefaultUsageTopic, cfg.Pulsar.UsageTopic)
	assert.Empty(t, cfg.Management.Token)
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(newViper(t, `
port: 9090
environment: prod
db:
  driver: PG
  dsn: postgres://dmi@localhost/dmi
gateway:
  inference_timeout: 5s
  default_daily_limit: 10
inference:
  transport: tcp
  tcp:
    address: inference:9000
storage:
  filesystem_type: s3
  s3:
    bucket_name: uploads
management:
  token: s3cr3t
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, DriverPG, cfg.DB.Driver)
	assert.Equal(t, 5*time.Second, cfg.Gateway.InferenceTimeout)
	assert.Equal(t, 10, cfg.Gateway.DefaultDailyLimit)
	assert.Equal(t, TransportTCP, cfg.Inference.Transport)
	assert.Equal(t, "inference:9000", cfg.Inference.TCP.Address)
	assert.Equal(t, DefaultTCPPoolSize, cfg.Inference.TCP.PoolSize)
	assert.Equal(t, FilesystemS3, cfg.Storage.FilesystemType)
	assert.Equal(t, "uploads", cfg.Storage.S3.Bucket)
	assert.Equal(t, DefaultS3Folder, cfg.Storage.S3.Folder)
	assert.Equal(t, "s3cr3t", cfg.Management.Token)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"driver", "db:\n  driver: mongo\n", ErrInvalidDriver},
		{"transport", "inference:\n  transport: grpc\n", ErrInvalidTransport},
		{"filesystem", "storage:\n  filesystem_type: ftp\n", ErrInvalidFilesystem},
		{"upload limit", "gateway:\n  max_upload_bytes: 0\n", ErrInvalidUploadLimit},
		{"daily limit", "gateway:\n  default_daily_limit: -1\n", ErrInvalidDefaultLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newViper(t, tt.yaml))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetConfigPanicsWhenNotLoaded(t *testing.T) {
	prev := config
	t.Cleanup(func() { config = prev })

	config = nil
	assert.False(t, IsLoaded())
	assert.Panics(t, func() { GetConfig() })

	SetConfig(&Config{Port: 1})
	assert.True(t, IsLoaded())
	assert.Equal(t, 1, GetConfig().Port)
}
