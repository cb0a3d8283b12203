package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ARF-DEV/caffeine_jukebox/config"
	"github.com/ARF-DEV/caffeine_jukebox/internal/audio"
	"github.com/ARF-DEV/caffeine_jukebox/internal/bot"
	"github.com/ARF-DEV/caffeine_jukebox/internal/cache"
	"github.com/ARF-DEV/caffeine_jukebox/internal/cache/memcache"
	"github.com/ARF-DEV/caffeine_jukebox/internal/cache/rediscache"
	"github.com/ARF-DEV/caffeine_jukebox/internal/logging"
	"github.com/ARF-DEV/caffeine_jukebox/internal/musicplayer"
	"github.com/ARF-DEV/caffeine_jukebox/internal/observe"
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("bot shut down")
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	provider, err := observe.InitProvider()
	if err != nil {
		return errors.Wrap(err, "init metrics")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("metrics shutdown")
		}
	}()
	metrics, err := observe.NewMetrics(provider.MeterProvider)
	if err != nil {
		return errors.Wrap(err, "create instruments")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return errors.Wrap(err, "create discord session")
	}

	manager := musicplayer.NewManager(musicplayer.Options{
		Joiner: musicplayer.SessionJoiner{Session: session},
		Resolver: &musicplayer.YTResolver{
			Bin:     cfg.YtDlpPath,
			Cache:   store,
			TTL:     cfg.CacheTTL,
			Metrics: metrics,
			Log:     logging.Component(logger, "resolver"),
		},
		Source: &musicplayer.CachedSource{
			Encoder: &audio.Transcoder{
				YtDlpPath:  cfg.YtDlpPath,
				FFmpegPath: cfg.FFmpegPath,
				Bitrate:    cfg.OpusBitrate,
				Log:        logging.Component(logger, "transcoder"),
			},
			Cache:       store,
			TTL:         cfg.CacheTTL,
			MaxDuration: cfg.CacheMaxTrack,
			Metrics:     metrics,
			Log:         logging.Component(logger, "source"),
		},
		EmptyCooldown: cfg.EmptyCooldown,
		Metrics:       metrics,
		Log:           logging.Component(logger, "player"),
	})
	defer manager.Close()

	disBot := bot.NewDisBot(session, manager, cfg, logging.Component(logger, "bot"), metrics)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return disBot.Run(gctx)
	})
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           provider.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.WithField("addr", cfg.MetricsAddr).Info("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	logger.WithField("prefix", cfg.Prefix).Info("running")
	err = g.Wait()
	logger.Info("bot shut down")
	return err
}

// openCache connects to redis when configured and falls back to the
// in-process cache otherwise.
func openCache(ctx context.Context, cfg config.Config, logger *logrus.Logger) (cache.Cache, error) {
	if cfg.UseRedis() {
		rc := rediscache.CreateCache(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return nil, errors.Wrapf(err, "connect to redis at %s", cfg.RedisAddr)
		}
		logger.WithField("addr", cfg.RedisAddr).Info("using redis cache")
		return rc, nil
	}

	mc := memcache.New(cfg.CacheMaxEntries, cfg.CacheTTL)
	go mc.RunSweeper(ctx, sweepInterval)
	logger.WithField("max_entries", cfg.CacheMaxEntries).Info("using in-memory cache")
	return mc, nil
}
