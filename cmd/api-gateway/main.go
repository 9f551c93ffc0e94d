package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ctp-enrollment-api/api/swagger"
	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/repository"
	"github.com/noah-isme/ctp-enrollment-api/internal/service"
	"github.com/noah-isme/ctp-enrollment-api/pkg/assets"
	"github.com/noah-isme/ctp-enrollment-api/pkg/cache"
	"github.com/noah-isme/ctp-enrollment-api/pkg/config"
	"github.com/noah-isme/ctp-enrollment-api/pkg/database"
	"github.com/noah-isme/ctp-enrollment-api/pkg/export"
	"github.com/noah-isme/ctp-enrollment-api/pkg/jobs"
	"github.com/noah-isme/ctp-enrollment-api/pkg/logger"
	"github.com/noah-isme/ctp-enrollment-api/pkg/mailer"
	"github.com/noah-isme/ctp-enrollment-api/pkg/storage"
)

// @title CTP Enrollment API
// @version 1.0.0
// @description Enrollment intake, careers, users, statistics and reports for a technical education center.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	app, err := buildApp(cfg, db, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}
	defer app.close()

	app.notifications.Start(context.Background())
	cleanup, err := app.reports.StartCleanup()
	if err != nil {
		logr.Fatal("failed to schedule report cleanup", zap.Error(err))
	}
	defer cleanup.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, app, logr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	app.notifications.Stop(10 * time.Second)
}

type application struct {
	db            *sqlx.DB
	cacheRepo     *repository.CacheRepository
	metrics       *service.MetricsService
	users         *repository.UserRepository
	auth          *service.AuthService
	userService   *service.UserService
	careers       *service.CareerService
	enrollments   *service.EnrollmentService
	dashboard     *service.DashboardService
	reports       *service.ReportService
	notifications *jobs.Queue
	assetsDir     string
}

func (a *application) close() {
	if a.cacheRepo != nil {
		_ = a.cacheRepo.Close()
	}
}

func buildApp(cfg *config.Config, db *sqlx.DB, logr *zap.Logger) (*application, error) {
	validate := dto.NewValidator()
	metrics := service.NewMetricsService()

	var cacheStore service.CacheRepository
	var cacheRepo *repository.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, statistics cache disabled", zap.Error(err))
		} else {
			cacheRepo = repository.NewCacheRepository(client, logr)
			cacheStore = cacheRepo
		}
	}
	cacheService := service.NewCacheService(cacheStore, metrics, cfg.Dashboard.CacheTTL, logr, cacheStore != nil)

	userRepo := repository.NewUserRepository(db)
	careerRepo := repository.NewCareerRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	dashboard := service.NewDashboardService(service.DashboardServiceParams{
		Repo:   enrollmentRepo,
		Cache:  cacheService,
		Logger: logr,
		Config: service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL, SeriesStart: cfg.Dashboard.SeriesStart},
	})

	store, assetsDir, err := newAssetStore(cfg.Assets)
	if err != nil {
		return nil, err
	}
	uploaderCfg := assets.UploaderConfig{KeyPrefix: cfg.Assets.OSSKeyPrefix, MaxBytes: cfg.Assets.MaxBytes, Logger: logr}
	if cfg.Assets.Normalize {
		uploaderCfg.Normalizer = assets.NewNormalizer(cfg.Assets.MaxWidth, cfg.Assets.MaxHeight, cfg.Assets.WebPQuality)
	}
	uploader := assets.NewUploader(store, uploaderCfg)

	notifier, queue := newNotifications(cfg, metrics, logr)

	enrollments := service.NewEnrollmentService(service.EnrollmentServiceParams{
		Repo:      enrollmentRepo,
		Careers:   careerRepo,
		Uploader:  uploader,
		Notifier:  notifier,
		Stats:     dashboard,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
	})

	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("report storage: %w", err)
	}
	exporter := service.NewExportService(
		enrollmentRepo,
		reportStore,
		storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL, MaxRows: cfg.Reports.MaxRows},
		logr,
		export.NewCSVExporter(true),
		export.NewPDFExporter(),
	)
	reports := service.NewReportService(service.ReportServiceParams{
		Enrollments: enrollmentRepo,
		Images:      assets.NewFetcher(15*time.Second, cfg.Assets.MaxBytes),
		Exporter:    exporter,
		Stats:       dashboard,
		Logger:      logr,
		Config:      service.ReportServiceConfig{CenterName: cfg.CenterName, CleanupCron: cfg.Reports.CleanupCron},
	})

	auth := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "ctp-enrollment-api",
	})

	return &application{
		db:            db,
		cacheRepo:     cacheRepo,
		metrics:       metrics,
		users:         userRepo,
		auth:          auth,
		userService:   service.NewUserService(userRepo, validate, logr),
		careers:       service.NewCareerService(careerRepo, dashboard, validate, logr),
		enrollments:   enrollments,
		dashboard:     dashboard,
		reports:       reports,
		notifications: queue,
		assetsDir:     assetsDir,
	}, nil
}

// newAssetStore returns the configured object store and, for the local driver, the directory to serve.
func newAssetStore(cfg config.AssetsConfig) (assets.Store, string, error) {
	switch cfg.Driver {
	case config.AssetsDriverOSS:
		store, err := assets.NewOSSStore(assets.OSSConfig{
			Endpoint:     cfg.OSSEndpoint,
			AccessKey:    cfg.OSSAccessKey,
			SecretKey:    cfg.OSSSecretKey,
			Bucket:       cfg.OSSBucket,
			PublicBase:   cfg.OSSPublicBase,
			RequestLimit: cfg.OSSRequestLimit,
		})
		return store, "", err
	case config.AssetsDriverMemory:
		return assets.NewMemoryStore(), "", nil
	default:
		fs, err := storage.NewLocalStorage(cfg.LocalDir)
		if err != nil {
			return nil, "", fmt.Errorf("asset storage: %w", err)
		}
		return assets.NewLocalStore(fs, cfg.PublicBaseURL), fs.Root(), nil
	}
}

func newNotifications(cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*service.NotificationService, *jobs.Queue) {
	var m mailer.Mailer
	if cfg.Mail.Enabled {
		client, err := mailer.NewSendGridClient(cfg.Mail.APIKey, cfg.Mail.FromAddress, cfg.Mail.FromName, logr)
		if err != nil {
			logr.Warn("mail disabled", zap.Error(err))
		} else {
			m = client
		}
	}
	svc := service.NewNotificationService(m, metrics, logr, service.NotificationConfig{
		AdminEmail: cfg.Mail.AdminEmail,
		CenterName: cfg.CenterName,
	})
	queue := jobs.NewQueue("notifications", svc.Deliver, jobs.QueueConfig{
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
		OnDrop:     svc.Dropped,
	})
	svc.UseQueue(queue)
	return svc, queue
}
