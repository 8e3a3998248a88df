package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/unkn0wn-root/regioncache"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regioncache.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
key_prefix: shop
token_format: nanoid
redis:
  addr: cache:6379
  db: 1
breaker:
  enabled: true
default_region:
  expiration: 10m
  sliding_expiration: 2m
regions:
  - name: products
    expiration: 1h
    sliding_expiration: none
    lock_timeout: 5s
    database: 2
  - name: orders
`)
	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.KeyPrefix != "shop" || cfg.Redis.Addr != "cache:6379" || cfg.Redis.DB != 1 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !cfg.Breaker.Enabled || cfg.Breaker.ConsecutiveFailures != 5 || cfg.Breaker.OpenTimeout != 5*time.Second {
		t.Fatalf("breaker = %+v", cfg.Breaker)
	}
	if cfg.Redis.DialTimeout != 5*time.Second {
		t.Fatalf("dial timeout default not applied: %s", cfg.Redis.DialTimeout)
	}

	def, regions, err := cfg.RegionConfigs()
	if err != nil {
		t.Fatalf("RegionConfigs: %v", err)
	}
	if def.Expiration != 10*time.Minute || def.SlidingExpiration != 2*time.Minute {
		t.Fatalf("default = %+v", def)
	}
	if len(regions) != 2 {
		t.Fatalf("regions = %+v", regions)
	}
	products := regions[0]
	if products.Name != "products" || products.Expiration != time.Hour ||
		products.SlidingExpiration != regioncache.NoSlidingExpiration ||
		products.LockTimeout != 5*time.Second || products.Database != 2 {
		t.Fatalf("products = %+v", products)
	}
	if orders := regions[1]; orders.SlidingExpiration != 0 || orders.Expiration != 0 {
		t.Fatalf("orders should inherit, got %+v", orders)
	}
	if tok := cfg.TokenFactory()(); len(tok) != len("lock-")+21 {
		t.Fatalf("nanoid token expected, got %q", tok)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RC_REDIS_ADDR", "env-host:6380")
	t.Setenv("RC_KEY_PREFIX", "envprefix")
	t.Setenv("RC_DEFAULT_REGION_EXPIRATION", "90s")

	cfg, err := Load("", "RC")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Redis.Addr != "env-host:6380" || cfg.KeyPrefix != "envprefix" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.DefaultRegion.Expiration != 90*time.Second {
		t.Fatalf("expiration = %s", cfg.DefaultRegion.Expiration)
	}
	def, _, err := cfg.RegionConfigs()
	if err != nil || def.SlidingExpiration != regioncache.NoSlidingExpiration {
		t.Fatalf("default sliding = %s err=%v", def.SlidingExpiration, err)
	}
}

func TestLoadRejectsBadRegions(t *testing.T) {
	cases := map[string]string{
		"bad sliding": `
regions:
  - name: a
    sliding_expiration: soon
`,
		"duplicate": `
regions:
  - name: a
  - name: a
`,
		"unnamed": `
regions:
  - expiration: 1m
`,
		"token format": `
token_format: sequential
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content), ""); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestMustLoadPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustLoad("/nonexistent/regioncache.yaml", "")
}
