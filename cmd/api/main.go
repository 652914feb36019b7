package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"greybackend/config"
	"greybackend/internal/api"
	"greybackend/internal/asset"
	"greybackend/internal/credential"
	"greybackend/internal/mailer"
	"greybackend/internal/repository"
	"greybackend/internal/transport"
	"greybackend/pkg/db"
	"greybackend/pkg/logger"
	"greybackend/pkg/mq"
	"greybackend/pkg/otel"
	redisclient "greybackend/pkg/redis"
	"greybackend/pkg/util"

	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logg.Sync()

	ctx := context.Background()

	shutdownTracing, err := otel.Init(ctx, cfg.Tracing, logg)
	if err != nil {
		logg.Fatal("tracing initialization failed", zap.Error(err))
	}

	// Audit store
	audit, closeAudit, err := openAudit(ctx, cfg.Audit, logg)
	if err != nil {
		logg.Fatal("audit store initialization failed", zap.Error(err))
	}
	defer closeAudit()

	// Redis backs the credential store (when selected) and send deduplication
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redisclient.Open(ctx, cfg.Redis)
		switch {
		case err == nil:
			defer rdb.Close()
		case cfg.Mail.CredentialStore == "redis":
			logg.Fatal("redis required by the credential store", zap.Error(err))
		default:
			logg.Warn("redis unavailable, send deduplication disabled", zap.Error(err))
		}
	}

	// Credential manager
	credStore, err := credential.OpenStore(cfg.Mail, rdb)
	if err != nil {
		logg.Fatal("credential store initialization failed", zap.Error(err))
	}
	factory, err := transport.FromConfig(cfg.Mail)
	if err != nil {
		logg.Fatal("mail transport initialization failed", zap.Error(err))
	}
	exchanger := credential.OAuth2Exchanger{RedirectURL: cfg.Mail.RedirectURL}
	credManager := credential.NewManager(credStore, exchanger, factory, logg)

	// Delivery events are optional
	var events mailer.EventPublisher
	if cfg.MQ.Enabled {
		publisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
		if err != nil {
			logg.Warn("delivery events disabled, publisher init failed", zap.Error(err))
		} else {
			defer publisher.Close()
			events = publisher
		}
	}

	dispatcher := mailer.NewDispatcher(credManager, audit, mailer.Options{
		SenderName:    cfg.Mail.SenderName,
		DefaultSender: cfg.Mail.DefaultSender,
		MockDelay:     cfg.Mail.MockDelay,
		ErrorCap:      cfg.Mail.ErrorCap,
		Events:        events,
	}, logg)

	// Asset upload
	assetStore, err := asset.NewCloudinaryStore(cfg.Cloudinary)
	if err != nil {
		logg.Fatal("asset store initialization failed", zap.Error(err))
	}
	uploader := asset.NewClient(assetStore, net.DefaultResolver, asset.Options{
		DefaultFolder: cfg.Cloudinary.DefaultFolder,
		MaxRetries:    cfg.Upload.MaxRetries,
		BaseDelay:     cfg.Upload.BaseDelay,
		Policy: asset.Policy{
			MaxWidth:  cfg.Cloudinary.MaxWidth,
			MaxHeight: cfg.Cloudinary.MaxHeight,
			Quality:   cfg.Cloudinary.Quality,
		},
	}, logg)
	coordinator := asset.NewCoordinator(uploader, cfg.Cloudinary.BatchFolder, cfg.Upload.Compensate, logg)

	var deduper api.Deduper
	if rdb != nil {
		deduper = util.NewDeduper(rdb, 24*time.Hour, logg)
	}

	router := api.NewRouter(
		api.NewUploadHandler(uploader, coordinator, logg),
		api.NewEmailHandler(dispatcher, credManager, deduper, logg),
		api.RouterConfig{JWTSecret: cfg.JWT.Secret, MaxBodyBytes: cfg.Server.MaxBodyBytes, Logger: logg},
	)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logg.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logg.Error("tracer shutdown error", zap.Error(err))
	}
	logg.Info("shutdown complete")
}

// openAudit opens the delivery log named by cfg.Driver and ensures its table.
func openAudit(ctx context.Context, cfg config.AuditConfig, logg *zap.Logger) (mailer.AuditLog, func(), error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := db.NewConnection(ctx, cfg, logg)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewDeliveryLogRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil
	case "mysql", "sqlite":
		store, err := repository.OpenSQLDeliveryLogStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit driver %q", cfg.Driver)
	}
}
