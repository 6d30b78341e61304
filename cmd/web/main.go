package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/AdamBeresnev/bracket-manager/internal/config"
	"github.com/AdamBeresnev/bracket-manager/internal/db"
	"github.com/AdamBeresnev/bracket-manager/internal/metrics"
	"github.com/AdamBeresnev/bracket-manager/internal/middleware"
	"github.com/AdamBeresnev/bracket-manager/internal/service"
	"github.com/AdamBeresnev/bracket-manager/internal/storage"
	"github.com/AdamBeresnev/bracket-manager/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	database := db.InitDB(cfg.Database.Path)
	defer database.Close()

	if err := db.RunMigrations(database.DB, cfg.Database.Migrations); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.Server.SessionLifetime
	sessionManager.Store = sqlite3store.New(database.DB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uploader, fileDir, err := newUploader(ctx, cfg.Storage)
	if err != nil {
		log.Fatal("Failed to set up file storage:", err)
	}

	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	quota := service.NewQuotaService(store.NewUsageStore(database), cfg.Quota.MonthlyUploads, cfg.Quota.MonthlySaves, m)
	saves := service.NewSaveService(store.NewSavedBracketStore(database), quota, cfg.Server.SiteURL, m)

	router := newRouter(&deps{
		sessionManager: sessionManager,
		brackets:       service.NewBracketService(store.NewWorkspaceStore(database), saves, m),
		uploads:        service.NewUploadService(uploader, quota, cfg.Uploads.MaxFileSize, cfg.Uploads.AllowedTypes, m),
		saves:          saves,
		limiter:        middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst),
		allowedOrigins: cfg.Server.AllowedOrigins,
		fileDir:        fileDir,
		registry:       registry,
	})

	srv := &http.Server{Addr: cfg.Server.Address, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "address", cfg.Server.Address, "site", cfg.Server.SiteURL, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}

// newUploader returns the configured file store. For the disk driver it also returns the
// directory to serve under /files.
func newUploader(ctx context.Context, cfg config.StorageConfig) (storage.FileUploader, string, error) {
	if cfg.Driver == config.DriverS3 {
		u, err := storage.NewS3Uploader(ctx, storage.S3UploaderConfig{
			Endpoint:        cfg.Endpoint,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			BucketName:      cfg.Bucket,
			PublicBaseURL:   cfg.PublicBaseURL,
			UsePathStyle:    cfg.UsePathStyle,
		})
		return u, "", err
	}

	u, err := storage.NewDiskUploader(cfg.Dir, cfg.PublicBaseURL)
	if err != nil {
		return nil, "", err
	}
	return u, u.Root(), nil
}
