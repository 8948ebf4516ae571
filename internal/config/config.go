package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the root configuration structure for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Log         LogConfig         `mapstructure:"log"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Shutdown    ShutdownConfig    `mapstructure:"shutdown"`
}

// ServerConfig holds the network settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// StorageConfig defines the internal structure of the storage engine
type StorageConfig struct {
	Shards uint `mapstructure:"shards"`
}

// LogConfig defines logging verbosity and output style
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// PersistenceConfig defines settings of the durability log
type PersistenceConfig struct {
	AOF AOFConfig `mapstructure:"aof"`
}

// AOFConfig defines settings of AOF method
type AOFConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Filename string `mapstructure:"filename"`
	Fsync    string `mapstructure:"fsync"` // always, everysec, no
	// AbsoluteExpiry logs relative expirations as unix-ms instants so replay keeps the original deadline
	AbsoluteExpiry bool `mapstructure:"absolute_expiry"`
	// LoadTruncated replays the complete prefix of a file whose last request was cut short
	LoadTruncated bool `mapstructure:"load_truncated"`
}

// ShutdownConfig bounds how long open connections are waited for on exit
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Flags returns the command line flags understood by Load
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("minikv", pflag.ContinueOnError)
	fs.String("config", ".", "directory containing config.yaml")
	fs.String("host", "", "address to listen on")
	fs.String("port", "", "port to listen on")
	fs.String("aof", "", "path of the append only file")
	return fs
}

// flagKeys maps command line flags onto configuration keys
var flagKeys = map[string]string{
	"host": "server.host",
	"port": "server.port",
	"aof":  "persistence.aof.filename",
}

// Load reads the configuration from a file and overrides it with environment variables
// and with the flags that were set explicitly. flags may be nil
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed {
			path = f.Value.String()
		}

		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "bind flag %s", name)
				}
			}
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AddConfigPath(".")

	v.SetEnvPrefix("MINIKV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	return &cfg, nil
}

// setDefaults populates viper with fallback values if they are not provided via file or ENV
func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "6380")

	// Storage
	v.SetDefault("storage.shards", 16)

	// Logger
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Persistence
	v.SetDefault("persistence.aof.enabled", true)
	v.SetDefault("persistence.aof.filename", "appendonly.aof")
	v.SetDefault("persistence.aof.fsync", "always")
	v.SetDefault("persistence.aof.absolute_expiry", true)
	v.SetDefault("persistence.aof.load_truncated", false)

	// Shutdown
	v.SetDefault("shutdown.timeout", "5s")
}
