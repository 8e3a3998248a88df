package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/unkn0wn-root/regioncache"
)

// Load reads configPath (if not empty) and then environment variables with
// envPrefix, e.g. REGIONCACHE_REDIS_ADDR.
func Load(configPath, envPrefix string) (*Config, error) {
	v := viper.New()

	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load that panics.
func MustLoad(configPath, envPrefix string) *Config {
	cfg, err := Load(configPath, envPrefix)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// setDefaults registers every key so AutomaticEnv can override keys absent
// from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("key_prefix", regioncache.DefaultKeyPrefix)
	v.SetDefault("disabled", false)
	v.SetDefault("lock_registry_size", regioncache.DefaultLockRegistrySize)
	v.SetDefault("token_format", "uuid")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 0)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("breaker.enabled", false)
	v.SetDefault("breaker.consecutive_failures", 5)
	v.SetDefault("breaker.open_timeout", 5*time.Second)
	v.SetDefault("tracing", false)
	v.SetDefault("default_region.expiration", regioncache.DefaultExpiration)
	v.SetDefault("default_region.sliding_expiration", "none")
	v.SetDefault("default_region.lock_timeout", regioncache.DefaultLockTimeout)
	v.SetDefault("default_region.acquire_lock_timeout", time.Duration(0))
}

// Validate checks what can be checked without building a cache.
func Validate(cfg *Config) error {
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	switch cfg.TokenFormat {
	case "", "uuid", "nanoid":
	default:
		return fmt.Errorf("token_format must be uuid or nanoid, got %q", cfg.TokenFormat)
	}
	if cfg.LockRegistrySize < 0 {
		return fmt.Errorf("lock_registry_size must not be negative")
	}
	if _, _, err := cfg.RegionConfigs(); err != nil {
		return err
	}
	return nil
}

// RegionConfigs converts the file's regions. Durations are passed through;
// range checks happen in regioncache.New.
func (c *Config) RegionConfigs() (def regioncache.RegionConfig, regions []regioncache.RegionConfig, err error) {
	if def, err = c.DefaultRegion.convert(); err != nil {
		return def, nil, fmt.Errorf("default_region: %w", err)
	}
	seen := make(map[string]bool, len(c.Regions))
	for i, r := range c.Regions {
		if r.Name == "" {
			return def, nil, fmt.Errorf("regions[%d]: name is required", i)
		}
		if seen[r.Name] {
			return def, nil, fmt.Errorf("regions[%d]: duplicate region %q", i, r.Name)
		}
		seen[r.Name] = true
		rc, err := r.convert()
		if err != nil {
			return def, nil, fmt.Errorf("regions[%d] (%s): %w", i, r.Name, err)
		}
		regions = append(regions, rc)
	}
	return def, regions, nil
}

// TokenFactory returns the factory named by token_format.
func (c *Config) TokenFactory() regioncache.TokenFactory {
	if c.TokenFormat == "nanoid" {
		return regioncache.NanoIDTokens
	}
	return regioncache.UUIDTokens
}

func (r RegionConfig) convert() (regioncache.RegionConfig, error) {
	rc := regioncache.RegionConfig{
		Name:               r.Name,
		Expiration:         r.Expiration,
		LockTimeout:        r.LockTimeout,
		AcquireLockTimeout: r.AcquireLockTimeout,
		Database:           r.Database,
	}
	switch s := strings.TrimSpace(strings.ToLower(r.SlidingExpiration)); s {
	case "":
	case "none":
		rc.SlidingExpiration = regioncache.NoSlidingExpiration
	default:
		d, err := time.ParseDuration(s)
		if err != nil {
			return rc, fmt.Errorf("sliding_expiration: %w", err)
		}
		if d <= 0 {
			return rc, fmt.Errorf("sliding_expiration must be positive or \"none\", got %s", d)
		}
		rc.SlidingExpiration = d
	}
	return rc, nil
}
