package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"marketdeck/internal/api"
	"marketdeck/internal/config"
	"marketdeck/internal/store"

	"github.com/charmbracelet/ssh"
	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainBootstrap(t *testing.T) {
	restore := stubSSHDeps(t)
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func TestNewSessionModelIsolatesUsers(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	limiter := api.NewRateLimiter(10, time.Millisecond)
	tracer := trace.NewNoopTracerProvider().Tracer("test")

	userStore := func(user string) (store.KV, error) {
		return store.NewFileStore(filepath.Join(dir, "users", user))
	}

	alice, err := newSessionModel(cfg, limiter, userStore, tracer, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bob, err := newSessionModel(cfg, limiter, userStore, tracer, "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alice == bob {
		t.Fatal("expected distinct models per connection")
	}

	if _, err := os.Stat(filepath.Join(dir, "users", "alice")); err != nil {
		t.Fatalf("expected per-user state dir: %v", err)
	}
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		APIBaseURL:      "http://localhost:0",
		APITimeoutSecs:  1,
		APIRateLimit:    10,
		APIRateRefillMs: 1,
		StateDir:        dir,
		DefaultSymbol:   "RELIANCE.NS",
		PriceDays:       30,
		StartingCash:    100000,
		LogPollSecs:     5,
		AgentPollSecs:   5,
		MoversPollSecs:  60,
		SSHHost:         "127.0.0.1",
		SSHPort:         2222,
		SSHHostKeyPath:  filepath.Join(dir, "test_key"),
	}
}

func stubSSHDeps(t *testing.T) func() {
	t.Helper()

	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitTracer := initTracerFunc
	origNewRedis := newRedisFunc
	origNewWishServer := newWishServerFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc

	dir := t.TempDir()

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config { return testConfig(dir) }
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newRedisFunc = func(context.Context, string) (*redis.Client, error) { return nil, nil }
	newWishServerFunc = func(ops ...ssh.Option) (*ssh.Server, error) { return nil, nil }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initTracerFunc = origInitTracer
		newRedisFunc = origNewRedis
		newWishServerFunc = origNewWishServer
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
	}
}
