package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/smartpark/internal/catalog"
	"github.com/iliyamo/smartpark/internal/classifier"
	"github.com/iliyamo/smartpark/internal/config"
	"github.com/iliyamo/smartpark/internal/database"
	"github.com/iliyamo/smartpark/internal/frame"
	"github.com/iliyamo/smartpark/internal/handler"
	"github.com/iliyamo/smartpark/internal/identity"
	"github.com/iliyamo/smartpark/internal/ledger"
	"github.com/iliyamo/smartpark/internal/metrics"
	"github.com/iliyamo/smartpark/internal/middleware"
	"github.com/iliyamo/smartpark/internal/monitor"
	"github.com/iliyamo/smartpark/internal/queue"
	"github.com/iliyamo/smartpark/internal/repository"
	"github.com/iliyamo/smartpark/internal/router"
	"github.com/iliyamo/smartpark/internal/service"
	"github.com/iliyamo/smartpark/internal/status"
	"github.com/iliyamo/smartpark/internal/vision"
)

var version = "source"

// reservationLogDir is where the broker consumer appends reservation.log.
const reservationLogDir = "logs"

func main() {
	cfg := config.Load()
	config.SetupLogger(cfg.LogLevel, cfg.Env)
	log.Info().Msgf("starting smartpark version: %s", version)
	log.Info().Interface("config", cfg.Redacted()).Msg("config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("smartpark exited")
	}
	log.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.LayoutFile)
	if err != nil {
		return err
	}
	if cat.Len() == 0 {
		return fmt.Errorf("layout %s defines no parking spaces", cfg.LayoutFile)
	}

	src, err := frame.Open(cfg.VideoSource)
	if err != nil {
		return fmt.Errorf("open video source: %w", err)
	}
	src, width, height, err := frameSize(ctx, src, cfg.FrameWidth, cfg.FrameHeight)
	if err != nil {
		src.Close()
		return err
	}
	if err := cat.Validate(width, height); err != nil {
		src.Close()
		return err
	}
	log.Info().Int("spaces", cat.Len()).Int("width", width).Int("height", height).
		Str("layout", cfg.LayoutFile).Msg("parking layout loaded")

	cls := classifier.New(vision.NewBinarizer(vision.DefaultParams()), cat.Regions(), cfg.OccupancyThreshold)
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	// Reservation ledger with its notifiers and optional MySQL mirror
	notifiers := ledger.Notifiers{ledger.LogNotifier{}, metrics.LedgerNotifier{}}
	var pub *service.Publisher
	if cfg.RabbitURL != "" {
		pub = service.NewPublisher(cfg.RabbitURL)
		defer pub.Close()
		notifiers = append(notifiers, pub)
	}
	opts := ledger.Options{
		Total:           cat.Len(),
		DefaultDuration: cfg.DefaultDurationMin,
		Advisory:        cfg.AdvisoryExpiry(),
		Notifier:        notifiers,
	}
	if cfg.DBEnabled() {
		db, err := database.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		repo := repository.NewReservationRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		if !cfg.AdvisoryExpiry() {
			if n, err := repo.DeleteExpired(ctx, time.Now()); err != nil {
				log.Warn().Str("component", "mysql").Err(err).Msg("purge expired reservations")
			} else if n > 0 {
				log.Info().Str("component", "mysql").Int64("rows", n).Msg("purged expired reservations")
			}
		}
		opts.Store = repo
	}
	led := ledger.New(opts)
	if opts.Store != nil {
		n, err := led.Restore(ctx)
		if err != nil {
			return fmt.Errorf("restore reservations: %w", err)
		}
		log.Info().Str("component", "ledger").Int("restored", n).Msg("reservations restored")
	}

	store := status.NewStore()
	loop := monitor.New(
		func() (frame.Source, error) { return frame.Open(cfg.VideoSource) },
		cls, led, store,
		monitor.Options{Interval: cfg.ProcessInterval, Width: width, Height: height, Source: src},
	)

	ids := identity.NewService(identity.Options{
		Store:      codeStore(rdb),
		Sender:     codeSender(pub),
		CodeTTL:    cfg.OTPTTL,
		BcryptCost: cfg.BcryptCost,
		JWTSecret:  cfg.JWTSecret,
		TokenTTL:   cfg.AccessTTLMin,
	})
	hub := handler.NewHub(store)
	e := newServer(cfg, rdb, handler.NewParkingHandler(store, led, frame.NewPreview(cfg.PreviewCacheTTL), cat.Len()), handler.NewAuthHandler(ids), hub)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return led.RunJanitor(gctx, cfg.SweepInterval) })
	g.Go(func() error { return hub.Run(gctx) })
	if pub != nil {
		g.Go(func() error { return pub.Run(gctx) })
		g.Go(func() error { return queue.StartReservationConsumer(gctx, cfg.RabbitURL, reservationLogDir) })
	}
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr()).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server graceful shutdown failed")
		}
		return nil
	})
	return g.Wait()
}

func newServer(cfg config.Config, rdb *redis.Client, ph *handler.ParkingHandler, ah *handler.AuthHandler, hub *handler.Hub) *echo.Echo {
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	router.Setup(e)
	router.RegisterRoutes(e)
	router.RegisterAuth(e, ah, limit)
	router.RegisterStream(e, hub)
	router.RegisterParking(e, ph, router.ParkingMiddleware{
		Cache: middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
		Limit: limit,
		Auth:  middleware.Optional(cfg.AuthRequired, middleware.JWTAuth(cfg.JWTSecret)),
	})
	return e
}

// frameSize returns the configured frame size, or reads the first frame of
// src when either dimension is unset.  The returned source yields that
// frame again so the first cycle classifies it.
func frameSize(ctx context.Context, src frame.Source, width, height int) (frame.Source, int, int, error) {
	if width > 0 && height > 0 {
		return src, width, height, nil
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	f, err := src.Next(pctx)
	if err != nil {
		return src, 0, 0, fmt.Errorf("probe frame size: %w", err)
	}
	return frame.Prepend(f, src), f.Width(), f.Height(), nil
}

func codeStore(rdb *redis.Client) identity.CodeStore {
	if rdb == nil {
		return identity.NewMemoryStore()
	}
	return identity.NewRedisStore(rdb, "otp")
}

func codeSender(pub *service.Publisher) identity.Sender {
	if pub == nil {
		log.Warn().Str("component", "identity").Msg("no broker configured, verification codes are logged")
		return identity.LogSender{}
	}
	return pub
}
