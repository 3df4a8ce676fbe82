package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/flagmirror/flagmirror/internal/api"
	"github.com/flagmirror/flagmirror/internal/config"
	"github.com/flagmirror/flagmirror/internal/evaluator"
	"github.com/flagmirror/flagmirror/internal/events"
	"github.com/flagmirror/flagmirror/internal/flagcache"
	"github.com/flagmirror/flagmirror/internal/loadgen"
	"github.com/flagmirror/flagmirror/internal/logging"
	"github.com/flagmirror/flagmirror/internal/monitor"
	"github.com/flagmirror/flagmirror/internal/session"
	"github.com/flagmirror/flagmirror/internal/stream"
	"github.com/flagmirror/flagmirror/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.AppEnv)
	telemetry.Init()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.RedisURL).Msg("invalid Redis URL")
	}
	rdb := redis.NewClient(opts)
	defer func() { _ = rdb.Close() }()

	// Confirm connectivity up front, but keep serving either way: the
	// evaluator degrades to the fallback value and the status endpoint
	// reports the failure.
	initErr := pingWithRetry(context.Background(), rdb)
	if initErr != nil {
		log.Error().Err(initErr).Msg("redis unreachable at startup, serving in degraded mode")
	} else {
		log.Info().Str("addr", opts.Addr).Msg("connected to redis")
	}

	cache := flagcache.NewRedisCache(rdb, cfg.CachePrefix, logging.Component(log, "flagcache"))
	sessions := session.NewRedisStore(rdb, cfg.CachePrefix, cfg.SessionTTL)

	var sink events.Sink = events.NewRedisSink(rdb, cfg.CachePrefix)
	if initErr != nil {
		sink = events.NewLogSink(logging.Component(log, "events"))
	}
	eventSvc := events.NewService(sink, cfg.EventQueueSize, logging.Component(log, "events"))
	defer func() { _ = eventSvc.Close() }()

	eval := evaluator.New(cache, eventSvc, logging.Component(log, "evaluator"))

	loop := stream.NewLoop(eval, stream.Config{
		FlagKey:      cfg.FlagKey,
		Fallback:     cfg.FlagFallback,
		PollInterval: cfg.PollInterval,
		WaitInterval: cfg.WaitInterval,
		WaitTimeout:  cfg.WaitTimeout,
		MaxConnTime:  cfg.MaxConnTime,
	}, logging.Component(log, "stream"))

	srvAPI := api.NewServer(api.Deps{
		Cfg:       *cfg,
		Cache:     cache,
		Sessions:  sessions,
		Evaluator: eval,
		Loop:      loop,
		LoadGen:   loadgen.NewRunner(eval, eventSvc, cfg.FlagKey, cfg.FlagFallback, logging.Component(log, "loadgen")),
		Relay:     monitor.NewRelay(rdb, cfg.MonitorTick, logging.Component(log, "monitor")),
		Log:       logging.Component(log, "api"),
		InitErr:   initErr,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0, // streaming responses outlive any fixed deadline
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShut)
	_ = metricsSrv.Shutdown(ctxShut)
	log.Info().Msg("stopped")
}

func pingWithRetry(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, rdb.Ping(ctx).Err()
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))
	return err
}
