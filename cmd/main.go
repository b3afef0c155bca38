package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	httpctx "github.com/dtroode/heirkeeper-server/internal/api/http/context"
	"github.com/dtroode/heirkeeper-server/internal/api/http/handler"
	"github.com/dtroode/heirkeeper-server/internal/api/http/middleware"
	"github.com/dtroode/heirkeeper-server/internal/api/http/router"
	"github.com/dtroode/heirkeeper-server/internal/config"
	"github.com/dtroode/heirkeeper-server/internal/envelope"
	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
	"github.com/dtroode/heirkeeper-server/internal/notify"
	"github.com/dtroode/heirkeeper-server/internal/repository/postgres"
	"github.com/dtroode/heirkeeper-server/internal/server"
	"github.com/dtroode/heirkeeper-server/internal/service"
	storage "github.com/dtroode/heirkeeper-server/internal/storage/minio"
	"github.com/dtroode/heirkeeper-server/internal/token"
	"github.com/dtroode/heirkeeper-server/internal/worker"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	sealer, err := envelope.NewSealer([]byte(cfg.Envelope.Secret))
	if err != nil {
		logger.Fatal("failed to initialize envelope sealer", "error", err)
	}

	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatal("failed to create minio client", "error", err)
	}
	storageClient, err := storage.NewClient(ctx, minioClient, cfg.Storage.Bucket)
	if err != nil {
		logger.Fatal("failed to initialize storage client", "error", err)
	}

	clock := service.SystemClock{}
	notifier := notify.NewLogNotifier(logger, cfg.Notify.RevealCodes)
	tokenManager := token.NewJWT(cfg.JWT.Secret)
	ctxMgr := httpctx.NewManager()

	vaultService := service.NewVault(db, sealer, clock, logger)
	unlockService := service.NewUnlock(db, clock, logger)
	assetService := service.NewAsset(db, storageClient, clock, logger)
	heirKeysService := service.NewHeirKeys(db, sealer, clock, logger)
	verificationService := service.NewVerification(db, notifier, clock, logger)
	claimService := service.NewClaim(db, sealer, storageClient, clock, logger)
	auditProcessor := service.NewAuditProcessor(db, clock, logger)
	livenessService := service.NewLiveness(db, notifier, clock, service.LivenessConfig{
		GracePeriod:         cfg.Liveness.GracePeriod,
		GraceAfterIntervals: cfg.Liveness.GraceAfterIntervals,
	}, logger)

	health := handler.NewHealth(db, logger)
	r := router.New(
		handler.NewOwner(vaultService, unlockService, assetService, ctxMgr, logger),
		handler.NewHeir(heirKeysService, verificationService, claimService, ctxMgr, logger),
		handler.NewAdmin(auditProcessor, ctxMgr, logger),
		health,
		middleware.NewAuthenticate(tokenManager, ctxMgr, logger),
		cfg.HTTP.TrustProxyHeaders,
		logger,
	)

	httpServer := registerHTTPServer(r.Register(), cfg.HTTP)

	var sl model.SecurityLayer

	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var scheduler *worker.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = worker.NewScheduler(logger,
			worker.LivenessJob(livenessService, cfg.Scheduler.LivenessInterval, logger),
			worker.OutboxJob(auditProcessor, cfg.Scheduler.OutboxInterval, cfg.Scheduler.OutboxBatchSize, logger),
		)
		if err := scheduler.Start(ctx); err != nil {
			logger.Fatal("failed to start scheduler", "error", err)
		}
	} else {
		logger.Info("background jobs disabled")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		err := s.Start(sl)
		if err != nil {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}(httpServer)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")
	health.SetReady(false)

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

func registerHTTPServer(h http.Handler, cfg config.HTTP) *server.HTTPServer {
	return server.NewHTTPServer(h, fmt.Sprintf(":%s", cfg.Port), cfg.ReadTimeout, cfg.WriteTimeout)
}
