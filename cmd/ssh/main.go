package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"
	"time"

	"marketdeck/internal/api"
	"marketdeck/internal/config"
	"marketdeck/internal/domain"
	"marketdeck/internal/marketdata"
	"marketdeck/internal/portfolio"
	"marketdeck/internal/session"
	"marketdeck/internal/store"
	"marketdeck/internal/tui"
	"marketdeck/internal/watchlist"
	"marketdeck/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	gossh "golang.org/x/crypto/ssh"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initTracerFunc    = tracing.InitTracer
	newRedisFunc      = store.NewRedisClient
	newWishServerFunc = wish.NewServer
	setupSignalNotify = ossignal.Notify
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Per-user state lives in Redis when configured, on disk otherwise.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = newRedisFunc(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		log.Println("Per-user state backed by Redis")
	} else {
		log.Printf("REDIS_URL not set, per-user state under %s", cfg.StateDir)
	}

	userStore := func(user string) (store.KV, error) {
		if redisClient != nil {
			return store.NewRedisStore(redisClient, user), nil
		}
		return store.NewFileStore(filepath.Join(cfg.StateDir, "users", user))
	}

	// The limiter is shared across connections so one busy session cannot
	// starve the backend's quota for everyone else.
	limiter := api.NewRateLimiter(cfg.APIRateLimit, time.Duration(cfg.APIRateRefillMs)*time.Millisecond)

	addr := fmt.Sprintf("%s:%d", cfg.SSHHost, cfg.SSHPort)

	srv, err := newWishServerFunc(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		wish.WithPublicKeyAuth(func(ctx ssh.Context, key ssh.PublicKey) bool {
			// Any key is accepted; backend access still requires signing in
			// through the dashboard. The fingerprint is logged for auditing.
			log.Printf("SSH session: user=%s fingerprint=%s", ctx.User(), gossh.FingerprintSHA256(key))
			return true
		}),
		wish.WithMiddleware(
			bubbletea.Middleware(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
				model, err := newSessionModel(cfg, limiter, userStore, tracer, s.User())
				if err != nil {
					log.Printf("failed to build session for %s: %v", s.User(), err)
					wish.Fatalln(s, "could not start dashboard:", err)
					return nil, nil
				}

				pty, _, _ := s.Pty()
				model.SetSize(pty.Window.Width, pty.Window.Height)
				return model, []tea.ProgramOption{tea.WithAltScreen()}
			}),
			logging.Middleware(),
		),
	)
	if err != nil {
		log.Fatalf("failed to create SSH server: %v", err)
	}

	if srv != nil {
		go func() {
			log.Printf("SSH dashboard listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil {
				log.Printf("SSH server stopped: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down SSH server...")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("SSH server shutdown error: %v", err)
		}
	}

	log.Println("SSH server exited")
}

// newSessionModel builds an isolated service stack for one SSH connection.
// Each connection gets its own session, watchlist, and ledger so concurrent
// users never share state.
func newSessionModel(cfg *config.Config, limiter *api.RateLimiter,
	userStore func(string) (store.KV, error), tracer trace.Tracer, user string) (*tui.AppModel, error) {

	ctx := context.Background()

	kv, err := userStore(user)
	if err != nil {
		return nil, fmt.Errorf("open state for %s: %w", user, err)
	}

	sess := session.New(kv, nil)
	client := api.NewClient(cfg.APIBaseURL, time.Duration(cfg.APITimeoutSecs)*time.Second, limiter, sess, tracer)
	sess.SetAuthenticator(client)

	if err := sess.Restore(ctx); err != nil {
		log.Printf("Warning: could not restore session for %s: %v", user, err)
	}

	ledger, err := portfolio.NewLedger(ctx, kv, cfg.StartingCash)
	if err != nil {
		return nil, fmt.Errorf("load portfolio for %s: %w", user, err)
	}

	svc := tui.Services{
		Backend:   client,
		Session:   sess,
		Watchlist: watchlist.NewService(client),
		Portfolio: ledger,
		Market:    marketdata.NewFetcher(client, cfg.PriceDays),
	}
	opt := tui.Options{
		DefaultAsset: domain.Asset{Symbol: cfg.DefaultSymbol, Name: cfg.DefaultSymbol, Type: domain.AssetStock},
		LogPoll:      time.Duration(cfg.LogPollSecs) * time.Second,
		AgentPoll:    time.Duration(cfg.AgentPollSecs) * time.Second,
		MoversPoll:   time.Duration(cfg.MoversPollSecs) * time.Second,
	}
	return tui.NewAppModel(svc, opt), nil
}
