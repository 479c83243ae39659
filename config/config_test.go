package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appConfig struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	IDGen struct {
		Method   string `mapstructure:"method"`
		WorkerID int64  `mapstructure:"worker_id"`
	} `mapstructure:"idgen"`
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "config", cfg.Name)
	assert.Equal(t, []string{".", "./config"}, cfg.Paths)
	assert.Equal(t, "yaml", cfg.FileType)
	assert.Equal(t, DefaultEnvPrefix, cfg.EnvPrefix)

	cfg = &Config{EnvPrefix: "idf"}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "IDF", cfg.EnvPrefix)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "idforge.yaml", `
server:
  addr: ":8080"
idgen:
  method: static
  worker_id: 3
`)
	t.Setenv("CFGTEST_IDGEN_WORKER_ID", "9")

	loader, err := New(&Config{Name: "idforge", Paths: []string{dir}, EnvPrefix: "cfgtest"}, WithoutWatch())
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	var cfg appConfig
	require.NoError(t, loader.Unmarshal(&cfg))
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "static", cfg.IDGen.Method)
	assert.EqualValues(t, 9, cfg.IDGen.WorkerID, "环境变量应覆盖文件配置")
	assert.Equal(t, "static", loader.Get("idgen.method"))
}

func TestLoadEnvironmentOverlay(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "idforge.yaml", "server:\n  addr: \":8080\"\nidgen:\n  method: static\n")
	writeFile(t, dir, "idforge.prod.yaml", "idgen:\n  method: redis\n")
	t.Setenv("OVERLAY_ENV", "prod")

	loader, err := New(&Config{Name: "idforge", Paths: []string{dir}, EnvPrefix: "overlay"}, WithoutWatch())
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	assert.Equal(t, "redis", loader.Get("idgen.method"))
	assert.Equal(t, ":8080", loader.Get("server.addr"))
}

func TestLoadDefaultsOnly(t *testing.T) {
	t.Setenv("DEFONLY_SERVER_ADDR", ":9090")

	loader, err := New(&Config{Name: "missing", Paths: []string{t.TempDir()}, EnvPrefix: "defonly"},
		WithDefaults(map[string]any{"server.addr": ":8080", "idgen.method": "static"}),
		WithoutWatch(),
	)
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	var cfg appConfig
	require.NoError(t, loader.Unmarshal(&cfg))
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "static", cfg.IDGen.Method)
}

func TestLoadEmptyFails(t *testing.T) {
	loader, err := New(&Config{Name: "missing", Paths: []string{t.TempDir()}, EnvPrefix: "emptycfg"}, WithoutWatch())
	require.NoError(t, err)

	err = loader.Load(context.Background())
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "server: [unclosed\n")

	loader, err := New(&Config{Name: "broken", Paths: []string{dir}, EnvPrefix: "broken"}, WithoutWatch())
	require.NoError(t, err)
	assert.Error(t, loader.Load(context.Background()))
}

func TestWatchNotify(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "watch.yaml", "log:\n  level: info\n")

	l, err := New(&Config{Name: "watch", Paths: []string{dir}, EnvPrefix: "watchcfg"}, WithoutWatch())
	require.NoError(t, err)
	require.NoError(t, l.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := l.Watch(ctx, "log.level")
	require.NoError(t, err)

	_, err = l.Watch(ctx, "")
	assert.Error(t, err)

	impl := l.(*loader)
	impl.v.Set("log.level", "debug")
	impl.notifyWatches(fsnotify.Event{Name: "watch.yaml", Op: fsnotify.Write})

	select {
	case ev := <-ch:
		assert.Equal(t, "log.level", ev.Key)
		assert.Equal(t, "debug", ev.Value)
		assert.Equal(t, "info", ev.OldValue)
		assert.Equal(t, "file", ev.Source)
	case <-time.After(time.Second):
		t.Fatal("未收到配置变更事件")
	}

	// 值未变化时不产生事件
	impl.notifyWatches(fsnotify.Event{})
	select {
	case ev := <-ch:
		t.Fatalf("不应收到事件: %+v", ev)
	default:
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMustLoadPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(&Config{Name: "missing", Paths: []string{t.TempDir()}, EnvPrefix: "mustcfg"}, WithoutWatch())
	})
}
