package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xuantien37/telegram-guess-number-bot/assets"
	"github.com/xuantien37/telegram-guess-number-bot/internal/balance"
	"github.com/xuantien37/telegram-guess-number-bot/internal/bot"
	"github.com/xuantien37/telegram-guess-number-bot/internal/config"
	"github.com/xuantien37/telegram-guess-number-bot/internal/engine"
	"github.com/xuantien37/telegram-guess-number-bot/internal/httpserver"
	"github.com/xuantien37/telegram-guess-number-bot/internal/notify"
	"github.com/xuantien37/telegram-guess-number-bot/internal/progression"
	"github.com/xuantien37/telegram-guess-number-bot/internal/timer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bal, err := balance.Load(cfg.BalanceFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load balance")
	}
	help, err := assets.HelpLines()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load help text")
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}()

	clock := clockwork.NewRealClock()
	sched, err := timer.NewCron(clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	hub := notify.NewHub()
	go hub.Run(ctx)

	e, err := engine.New(ctx, engine.Options{
		Levels:         bal.Levels,
		Catalog:        bal.Catalog,
		Quests:         bal.Quests,
		Daily:          bal.Daily,
		Store:          st,
		Scheduler:      sched,
		Notifier:       notify.Multi{hub, notify.Log{Logger: log.Logger}},
		Clock:          clock,
		Rand:           progression.CryptoSource{},
		Logger:         log.Logger,
		SessionTimeout: cfg.SessionTimeout,
		MatchTimeout:   cfg.MatchTimeout,
		ChallengeTTL:   cfg.ChallengeTTL,
		TrimEdges:      cfg.SecretTrimEdges,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start engine")
	}

	srv := httpserver.New(e, bot.New(e, help, log.Logger), hub, httpserver.Options{
		ClientOrigin: cfg.ClientOrigin,
		Logger:       log.Logger,
	})
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("starting guess-number server")
		if err := srv.Start(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("server exited")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := sched.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("scheduler shutdown")
	}
	e.Close(shutdownCtx)
}
