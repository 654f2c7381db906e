package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmi-project/dmi-gateway/internal/utils/pathutil"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const dmiPrefix = "DMI"

type Config struct {
	Port        int               `mapstructure:"port"`
	Host        string            `mapstructure:"host"`
	Environment string            `mapstructure:"environment"`
	DB          *DBConfig         `mapstructure:"db"`
	Gateway     *GatewayConfig    `mapstructure:"gateway"`
	Inference   *InferenceConfig  `mapstructure:"inference"`
	Storage     *StorageConfig    `mapstructure:"storage"`
	Pulsar      *PulsarConfig     `mapstructure:"pulsar"`
	Management  *ManagementConfig `mapstructure:"management"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type GatewayConfig struct {
	MaxUploadBytes    int64         `mapstructure:"max_upload_bytes"`
	MaxTextBytes      int64         `mapstructure:"max_text_bytes"`
	MinTextLength     int           `mapstructure:"min_text_length"`
	InferenceTimeout  time.Duration `mapstructure:"inference_timeout"`
	DefaultDailyLimit int           `mapstructure:"default_daily_limit"`
}

type InferenceConfig struct {
	Transport string               `mapstructure:"transport"`
	HTTP      *InferenceHTTPConfig `mapstructure:"http"`
	TCP       *InferenceTCPConfig  `mapstructure:"tcp"`
}

type InferenceHTTPConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type InferenceTCPConfig struct {
	Address  string `mapstructure:"address"`
	PoolSize int    `mapstructure:"pool_size"`
}

type StorageConfig struct {
	FilesystemType string    `mapstructure:"filesystem_type"`
	AssetsDir      string    `mapstructure:"assets_dir"`
	Workers        int       `mapstructure:"workers"`
	S3             *S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Folder    string `mapstructure:"folder"`
	Region    string `mapstructure:"region_name"`
	Bucket    string `mapstructure:"bucket_name"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint_url"`
	PublicUrl string `mapstructure:"public_url"`
}

type PulsarConfig struct {
	URL               string        `mapstructure:"url"`
	UsageTopic        string        `mapstructure:"usage_topic"`
	OperationTimeout  time.Duration `mapstructure:"operation_timeout"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
}

type ManagementConfig struct {
	Token string `mapstructure:"token"`
}

var config *Config

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", DefaultPort)
	v.SetDefault("host", DefaultHost)
	v.SetDefault("environment", DefaultEnvironment)

	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.dsn", DefaultDatabaseDSN)

	v.SetDefault("gateway.max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("gateway.max_text_bytes", DefaultMaxTextBytes)
	v.SetDefault("gateway.min_text_length", DefaultMinTextLength)
	v.SetDefault("gateway.inference_timeout", DefaultInferenceTimeout)
	v.SetDefault("gateway.default_daily_limit", DefaultDailyLimit)

	v.SetDefault("inference.transport", TransportHTTP)
	v.SetDefault("inference.http.base_url", DefaultInferenceBaseURL)
	v.SetDefault("inference.tcp.address", DefaultInferenceTCPAddr)
	v.SetDefault("inference.tcp.pool_size", DefaultTCPPoolSize)

	v.SetDefault("storage.filesystem_type", FilesystemNone)
	v.SetDefault("storage.assets_dir", DefaultAssetsDir)
	v.SetDefault("storage.workers", DefaultStorageWorkers)
	v.SetDefault("storage.s3.folder", DefaultS3Folder)

	v.SetDefault("pulsar.url", "")
	v.SetDefault("pulsar.usage_topic", DefaultUsageTopic)
	v.SetDefault("pulsar.operation_timeout", 30*time.Second)
	v.SetDefault("pulsar.connection_timeout", 10*time.Second)

	v.SetDefault("management.token", "")
}

// InitConfig loads the env file, the config file and DMI_* environment
// variables into the global viper instance and unmarshals the result.
func InitConfig() error {
	envFile := viper.GetString("env_file")
	if envFile == "" {
		envFile = DefaultEnvFileName
	}

	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat env file: %w", err)
	}

	v := viper.GetViper()
	v.SetEnvPrefix(dmiPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`, `-`, `_`))
	v.AutomaticEnv()
	SetDefaults(v)

	configFile := viper.GetString("config_file")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigType("yaml")
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config: %w", err)
		}
	}

	cfg, err := Load(v)
	if err != nil {
		return err
	}

	config = cfg
	return nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) normalize() error {
	if c.DB == nil {
		c.DB = &DBConfig{Driver: DriverSQLite, DSN: DefaultDatabaseDSN}
	}
	if c.Gateway == nil {
		c.Gateway = &GatewayConfig{
			MaxUploadBytes:    DefaultMaxUploadBytes,
			DefaultDailyLimit: DefaultDailyLimit,
		}
	}
	if c.Inference == nil {
		c.Inference = &InferenceConfig{Transport: TransportHTTP}
	}
	if c.Storage == nil {
		c.Storage = &StorageConfig{FilesystemType: FilesystemNone}
	}
	if c.Management == nil {
		c.Management = &ManagementConfig{}
	}
	if c.Pulsar == nil {
		c.Pulsar = &PulsarConfig{}
	}
	if c.Pulsar.UsageTopic == "" {
		c.Pulsar.UsageTopic = DefaultUsageTopic
	}

	switch strings.ToLower(c.DB.Driver) {
	case DriverSQLite, DriverLibSQL, DriverPG:
		c.DB.Driver = strings.ToLower(c.DB.Driver)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidDriver, c.DB.Driver)
	}

	switch strings.ToLower(c.Inference.Transport) {
	case TransportHTTP, TransportTCP:
		c.Inference.Transport = strings.ToLower(c.Inference.Transport)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTransport, c.Inference.Transport)
	}

	switch strings.ToLower(c.Storage.FilesystemType) {
	case "", FilesystemNone:
		c.Storage.FilesystemType = FilesystemNone
	case FilesystemLocal, FilesystemS3:
		c.Storage.FilesystemType = strings.ToLower(c.Storage.FilesystemType)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFilesystem, c.Storage.FilesystemType)
	}

	if c.Storage.AssetsDir != "" {
		assetsDir, err := pathutil.ExpandPath(c.Storage.AssetsDir)
		if err != nil {
			return fmt.Errorf("failed to expand assets dir: %w", err)
		}
		c.Storage.AssetsDir = assetsDir
	}

	if c.Gateway.MaxUploadBytes <= 0 {
		return ErrInvalidUploadLimit
	}
	if c.Gateway.DefaultDailyLimit <= 0 {
		return ErrInvalidDefaultLimit
	}
	if c.Gateway.MinTextLength <= 0 {
		c.Gateway.MinTextLength = DefaultMinTextLength
	}
	if c.Gateway.MaxTextBytes <= 0 {
		c.Gateway.MaxTextBytes = DefaultMaxTextBytes
	}
	if c.Gateway.InferenceTimeout <= 0 {
		c.Gateway.InferenceTimeout = DefaultInferenceTimeout
	}

	return nil
}

// SetConfig replaces the global config. Used by commands that build their
// own Config and by tests.
func SetConfig(cfg *Config) {
	config = cfg
}

func GetConfig() *Config {
	if config == nil {
		panic(ErrConfigNotLoaded)
	}

	return config
}

func IsLoaded() bool {
	return config != nil
}
