// Package config loads region cache settings from a YAML/JSON file and
// environment variables.
//
//	cfg, err := config.Load("regioncache.yaml", "REGIONCACHE")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	def, regions, err := cfg.RegionConfigs()
package config

import (
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Config is the file layout.
type Config struct {
	KeyPrefix        string         `mapstructure:"key_prefix"`
	Disabled         bool           `mapstructure:"disabled"`
	LockRegistrySize int            `mapstructure:"lock_registry_size"`
	TokenFormat      string         `mapstructure:"token_format"` // uuid, nanoid
	Redis            RedisConfig    `mapstructure:"redis"`
	Breaker          BreakerConfig  `mapstructure:"breaker"`
	Tracing          bool           `mapstructure:"tracing"`
	DefaultRegion    RegionConfig   `mapstructure:"default_region"`
	Regions          []RegionConfig `mapstructure:"regions"`
}

// RedisConfig holds the connection settings; DB is the database regions use
// unless they name their own.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Options converts to go-redis options.
func (r RedisConfig) Options() *goredis.Options {
	return &goredis.Options{
		Addr:         r.Addr,
		Username:     r.Username,
		Password:     r.Password,
		DB:           r.DB,
		PoolSize:     r.PoolSize,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
	}
}

type BreakerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	OpenTimeout         time.Duration `mapstructure:"open_timeout"`
}

// RegionConfig mirrors regioncache.RegionConfig. SlidingExpiration is a
// string so that "none" can be told apart from "inherit" (empty).
type RegionConfig struct {
	Name               string        `mapstructure:"name"`
	Expiration         time.Duration `mapstructure:"expiration"`
	SlidingExpiration  string        `mapstructure:"sliding_expiration"`
	LockTimeout        time.Duration `mapstructure:"lock_timeout"`
	AcquireLockTimeout time.Duration `mapstructure:"acquire_lock_timeout"`
	Database           int           `mapstructure:"database"`
}
