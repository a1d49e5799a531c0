package bootstrap

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWhenDefaultFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "inventory-service", cfg.App.Name)
	assert.Equal(t, StorageMemory, cfg.App.Storage)
	assert.Equal(t, LockMemory, cfg.App.Lock)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_YAMLThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
app:
  name: inventory-test
  port: 9090
  storage: mysql
  lock: redis
  lockWaitTimeout: 2s
infra:
  mysql:
    addr: db:3306
    database: shop
  kafka:
    enabled: true
    brokers: [k1:9092, k2:9092]
`)
	t.Setenv("INVENTORY_APP_PORT", "9191")
	t.Setenv("INVENTORY_INFRA_MYSQL_PASSWORD", "secret")

	cfg, err := Load(path, filepath.Join(dir, "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "inventory-test", cfg.App.Name)
	assert.Equal(t, 9191, cfg.App.Port)
	assert.Equal(t, 2*time.Second, cfg.App.LockWaitTimeout)
	assert.Equal(t, "db:3306", cfg.Infra.MySQL.Addr)
	assert.Equal(t, "secret", cfg.Infra.MySQL.Password)
	assert.Equal(t, "root", cfg.Infra.MySQL.User, "defaults survive a partial file")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Infra.Kafka.Brokers)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, "test.env", "INVENTORY_APP_LOG_LEVEL=debug\n")
	t.Setenv("INVENTORY_APP_LOG_LEVEL", "")
	os.Unsetenv("INVENTORY_APP_LOG_LEVEL")

	cfg, err := Load(writeFile(t, dir, "config.yaml", "app:\n  name: x\n"), envFile)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.App.LogLevel)
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]func(c *Config){
		"unknown storage":          func(c *Config) { c.App.Storage = "sqlite" },
		"unknown lock":             func(c *Config) { c.App.Lock = "etcd" },
		"bad port":                 func(c *Config) { c.App.Port = 0 },
		"distributed lock, memory": func(c *Config) { c.App.Lock = LockRedis },
		"kafka without brokers":    func(c *Config) { c.Infra.Kafka.Enabled = true; c.Infra.Kafka.Brokers = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestRun_ServesUntilCancelledThenClosesLIFO(t *testing.T) {
	cfg := DefaultConfig()
	ctx, cancel := context.WithCancel(context.Background())

	var order []string
	info := AppInfo{
		ServiceName: "inventory-test",
		Port:        18089,
		RegisterHandlers: func(appCtx AppCtx) {
			assert.Nil(t, appCtx.Nacos)
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
		},
		Closers: []Closer{
			{Name: "first", Close: func(context.Context) error { order = append(order, "first"); return nil }},
			{Name: "second", Close: func(context.Context) error { order = append(order, "second"); return nil }},
		},
	}

	done := make(chan error, 1)
	go func() { done <- Run(ctx, info, cfg) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:18089/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, []string{"second", "first"}, order)
}
