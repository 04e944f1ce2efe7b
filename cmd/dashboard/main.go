package main

import (
	"context"
	"log"
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
	"github.com/joho/godotenv"
)

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	initTracerFunc = tracing.InitTracer
	newFileStore   = store.NewFileStore
	runProgramFunc = func(model tea.Model, opts ...tea.ProgramOption) error {
		_, err := tea.NewProgram(model, opts...).Run()
		return err
	}
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

	kv, err := newFileStore(cfg.StateDir)
	if err != nil {
		log.Fatalf("failed to open state dir %s: %v", cfg.StateDir, err)
	}

	limiter := api.NewRateLimiter(cfg.APIRateLimit, time.Duration(cfg.APIRateRefillMs)*time.Millisecond)
	sess := session.New(kv, nil)
	client := api.NewClient(cfg.APIBaseURL, time.Duration(cfg.APITimeoutSecs)*time.Second, limiter, sess, tracer)
	sess.SetAuthenticator(client)

	if err := sess.Restore(ctx); err != nil {
		log.Printf("Warning: could not restore session: %v", err)
	}

	ledger, err := portfolio.NewLedger(ctx, kv, cfg.StartingCash)
	if err != nil {
		log.Fatalf("failed to load portfolio: %v", err)
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

	if err := runProgramFunc(tui.NewAppModel(svc, opt), tea.WithAltScreen()); err != nil {
		log.Fatalf("dashboard exited with error: %v", err)
	}
}
