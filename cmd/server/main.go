package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mohd-Saddam/fx-ohlc-microservice/internal/broadcast"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/internal/bus"
	tickv1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/tick/v1"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/internal/engine"
	candlerepo "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/infrastructure/timescale/candle"
	tickrepo "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/infrastructure/timescale/tick"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/internal/pipeline"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/internal/server"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/internal/source"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/config"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/errors"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/interval"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/logger"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/metrics"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/redis"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/timescale"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.WithLoggingLevel(logger.Level(cfg.App.LogLevel)))
	if err != nil {
		slog.Error("Failed to create logger", "error", err)
		os.Exit(1)
	}
	defer log.Sync()

	m := metrics.New()

	tsClient, err := timescale.NewClient(ctx, cfg.Timescale)
	if err != nil {
		log.Error(errors.TracerFromError(err), logger.Field{Key: "action", Value: "timescale_connect"})
		os.Exit(1)
	}
	// Storage is released last, after every consumer has drained.
	defer tsClient.Close()

	set, err := interval.NewSet(cfg.Pipeline.DayStartHour)
	if err != nil {
		log.Error(errors.TracerFromError(err), logger.Field{Key: "action", Value: "interval_set"})
		os.Exit(1)
	}

	tickRepo := tickrepo.NewRepository(tsClient)
	candleRepo := candlerepo.NewRepository(tsClient)

	bm := broadcast.NewManager(cfg.Pipeline.SubscriberQueue, cfg.Pipeline.LivenessTimeout, log, m)
	eng := engine.New(set, engine.RefreshCadence{
		Minute:    cfg.Pipeline.MinuteRefresh,
		Hour:      cfg.Pipeline.HourRefresh,
		Day:       cfg.Pipeline.DayRefresh,
		CustomDay: cfg.Pipeline.CustomDayRefresh,
	}, bm.OnCandle, candleRepo, log, m)

	p := pipeline.New(cfg.Pipeline, bus.New(cfg.Pipeline.BusBuffer, m), eng, bm, tickRepo, log, m)

	pipeCtx, stopPipeline := context.WithCancel(ctx)
	pipeDone := make(chan struct{})
	go func() {
		p.Run(pipeCtx)
		close(pipeDone)
	}()

	emit := func(t tickv1.Tick) {
		if err := p.Ingest(t); err != nil {
			log.Warn("rejected tick from feed",
				logger.Field{Key: "symbol", Value: t.Symbol},
				logger.Field{Key: "error", Value: err.Error()},
			)
		}
	}

	feed := buildFeed(cfg, emit, log)
	feedCtx, stopFeed := context.WithCancel(ctx)
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		if feed == nil {
			<-feedCtx.Done()
			return
		}
		if err := feed.Run(feedCtx); err != nil {
			log.Error(errors.TracerFromError(err), logger.Field{Key: "action", Value: "tick_feed"})
		}
	}()

	srv := server.New(cfg.App, cfg.Pipeline.DayStartHour, p, tsClient, log, m)
	srvCtx, stopServer := context.WithCancel(ctx)
	srvDone := make(chan struct{})
	go func() {
		defer close(srvDone)
		if err := srv.Run(srvCtx); err != nil {
			log.Error(errors.TracerFromError(err), logger.Field{Key: "action", Value: "http_server"})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	// Feed first so no new ticks enter, then the pipeline drains what is
	// buffered, then the HTTP server stops answering.
	stopFeed()
	<-feedDone
	stopPipeline()
	<-pipeDone
	stopServer()
	<-srvDone

	log.Info("shutdown complete")
}

func buildFeed(cfg *config.Config, emit source.EmitFunc, log logger.Interface) source.Source {
	switch cfg.Feed.Mode {
	case "simulator":
		return source.NewSimulator(cfg.Feed, emit, log)
	case "redis":
		client := redis.NewClient(log, &cfg.RedisFeed.Config)
		return source.NewRedisSource(client, cfg.RedisFeed.Channel, emit, log)
	case "kafka":
		return source.NewKafkaSource(cfg.KafkaFeed, emit, log)
	default:
		log.Info("no tick feed configured", logger.Field{Key: "mode", Value: cfg.Feed.Mode})
		return nil
	}
}
