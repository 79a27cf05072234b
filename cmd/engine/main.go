package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fenrir/internal/config"
	"fenrir/internal/ledger"
	"fenrir/internal/matching"
	"fenrir/internal/registry"
	"fenrir/internal/snapshot"
	"fenrir/internal/supervisor"
	"fenrir/internal/transport"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to engine config file")
	catalogPath := flag.String("catalog", "configs/catalog.yaml", "path to token/market catalog file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	configureLogging(cfg.Logging.Level, cfg.Logging.Format)

	cat, err := config.LoadCatalog(*catalogPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load catalog")
	}

	reg, err := registry.New(cat.Tokens, cat.Markets)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build registry")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, DB: cfg.Redis.DB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	led := ledger.New()
	eng := matching.New(reg, led, matching.SystemClock{}, cfg.Market.DepthLevels)

	consumer, err := transport.NewRequestConsumer(ctx, rdb, cfg.Redis.RequestStream, cfg.Redis.ConsumerGroup, cfg.Redis.ConsumerName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start request consumer")
	}
	replies := transport.NewReplyPublisher(rdb)
	persist := transport.NewPersistenceAppender(rdb, cfg.Redis.PersistStream)
	broad := transport.NewBroadcastPublisher(rdb)
	store := snapshot.New(rdb, cfg.Snapshot.DurableTTL, cfg.Snapshot.TickerTTL)

	sup, err := supervisor.New(eng, consumer, replies, persist, broad, store, cfg.Snapshot.IntervalOps, cfg.Dedup.CacheSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build supervisor")
	}

	marketIDs := make([]string, 0, len(cat.Markets))
	for _, m := range cat.Markets {
		marketIDs = append(marketIDs, m.ID)
	}
	if err := sup.WarmStart(ctx, marketIDs); err != nil {
		log.Fatal().Err(err).Msg("warm start failed")
	}

	log.Info().Int("tokens", len(cat.Tokens)).Int("markets", len(cat.Markets)).Msg("engine starting")
	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("supervisor exited")
	}
}

func configureLogging(level, format string) {
	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
