package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/aggregate"
	"github.com/leghakrishifarm/solar-accounting/internal/alerts"
	"github.com/leghakrishifarm/solar-accounting/internal/bootstrap"
	"github.com/leghakrishifarm/solar-accounting/internal/cache"
	"github.com/leghakrishifarm/solar-accounting/internal/config"
	"github.com/leghakrishifarm/solar-accounting/internal/database"
	"github.com/leghakrishifarm/solar-accounting/internal/detector"
	"github.com/leghakrishifarm/solar-accounting/internal/httpapi"
	"github.com/leghakrishifarm/solar-accounting/internal/ingest"
	"github.com/leghakrishifarm/solar-accounting/internal/jobs"
	"github.com/leghakrishifarm/solar-accounting/internal/live"
	"github.com/leghakrishifarm/solar-accounting/internal/logger"
	"github.com/leghakrishifarm/solar-accounting/internal/notify"
	"github.com/leghakrishifarm/solar-accounting/internal/reports"
	"github.com/leghakrishifarm/solar-accounting/internal/repository"
	"github.com/leghakrishifarm/solar-accounting/internal/series"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "solarmon")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	rdb := cache.NewRedisClient(&cfg.Redis)
	defer rdb.Close()
	if err := cache.Ping(context.Background(), rdb); err != nil {
		// Redis 只承载实时推送，允许降级启动
		log.Warn("redis unreachable at startup", zap.Error(err))
	}

	sitesRepo := repository.NewSitesRepository(db, log)
	devicesRepo := repository.NewDevicesRepository(db, log)
	readingsRepo := repository.NewReadingsRepository(db, log)
	samplesRepo := repository.NewEnergySamplesRepository(db, log)
	daysRepo := repository.NewReadingDaysRepository(db, log)
	dayMetersRepo := repository.NewReadingDayMetersRepository(db, log)
	alertEventsRepo := repository.NewAlertEventsRepository(db, log)
	deliveriesRepo := repository.NewAlertDeliveriesRepository(db, log)

	if _, err := bootstrap.SeedIfEmpty(context.Background(), cfg.Monitoring, sitesRepo, devicesRepo, log); err != nil {
		log.Fatal("failed to seed database", zap.Error(err))
	}

	dispatcher := notify.NewDispatcher([]notify.Channel{
		notify.NewEmailChannel(cfg.SMTP, log),
		notify.NewWebhookChannel(log),
		notify.NewWhatsAppChannel(cfg.WhatsApp, log),
	}, deliveriesRepo, log)

	ingestSvc := ingest.NewService(cfg.Monitoring, devicesRepo, sitesRepo, readingsRepo, samplesRepo, log)
	seriesSvc := series.NewService(cfg.Monitoring, sitesRepo, readingsRepo, samplesRepo, dayMetersRepo, log)
	aggregateSvc := aggregate.NewService(cfg.Monitoring, sitesRepo, readingsRepo, samplesRepo, daysRepo, dayMetersRepo, log)
	alertsSvc := alerts.NewService(alertEventsRepo, deliveriesRepo, sitesRepo, devicesRepo, dispatcher, log)
	reportsSvc := reports.NewService(sitesRepo, daysRepo, dayMetersRepo, log)
	publisher := live.NewPublisher(cfg.Monitoring, sitesRepo, readingsRepo, rdb, log)

	offlineDet := detector.NewOfflineDetector(cfg.Monitoring, devicesRepo, sitesRepo, alertEventsRepo, dispatcher, log)
	zeroDet := detector.NewZeroPowerDetector(cfg.Monitoring, devicesRepo, sitesRepo, readingsRepo, alertEventsRepo, dispatcher, log)

	runner := jobs.NewRunner(log)
	runner.Add("offline-scan", cfg.Monitoring.OfflineScanIntervalSec, offlineDet.Run)
	runner.Add("zero-power-scan", cfg.Monitoring.ZeroScanIntervalSec, zeroDet.Run)
	runner.Add("daily-aggregate", cfg.Monitoring.AggregateIntervalSec, aggregateSvc.AggregateAllToday)
	runner.Add("live-tick", cfg.Monitoring.LiveTickIntervalSec, publisher.Run)

	router := httpapi.NewRouter(log)
	router.RegisterIngestRoutes(httpapi.NewIngestHandler(ingestSvc, log))
	router.RegisterChartRoutes(httpapi.NewChartsHandler(seriesSvc, publisher, log))
	router.RegisterAlertRoutes(httpapi.NewAlertsHandler(alertsSvc, log))
	router.RegisterAggRoutes(httpapi.NewAggHandler(aggregateSvc, log))
	router.RegisterReportRoutes(httpapi.NewReportsHandler(reportsSvc, log))
	router.RegisterHealthRoute(httpapi.NewHealthHandler(db, rdb, log))

	srv := httpapi.NewServer(cfg.Server.Addr, router, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("http server exited", zap.Error(err))
	}

	cancel()
	runner.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
