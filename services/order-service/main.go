package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	awspkg "github.com/storefront-platform/backend/pkg/aws"
	apperrors "github.com/storefront-platform/backend/services/common/errors"
	"github.com/storefront-platform/backend/services/common/logger"
	commonmw "github.com/storefront-platform/backend/services/common/middleware"
	"github.com/storefront-platform/backend/services/order-service/config"
	"github.com/storefront-platform/backend/services/order-service/controllers"
	"github.com/storefront-platform/backend/services/order-service/database"
	"github.com/storefront-platform/backend/services/order-service/middleware"
	"github.com/storefront-platform/backend/services/order-service/repository"
	"github.com/storefront-platform/backend/services/order-service/routes"
	"github.com/storefront-platform/backend/services/order-service/services"
	"github.com/storefront-platform/backend/services/order-service/verifier"
)

const serviceName = "order-service"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Initialize(os.Getenv("APP_ENV")).Fatal("config load failed", zap.Error(err))
	}

	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		logger.Initialize(cfg.Env).Fatal("failed to load AWS config", zap.Error(err))
	}

	cwLogs, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, serviceName)
	var log *zap.Logger
	if err != nil || !cwLogs.IsEnabled() {
		log = logger.Initialize(cfg.Env)
	} else {
		log = logger.InitializeWithWriter(cfg.Env, cwLogs)
	}
	defer log.Sync()
	if err != nil {
		log.Warn("CloudWatch Logs unavailable, logging to stdout only", zap.Error(err))
	}

	db, err := database.Connect(cfg.DSN(), log)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer database.Close(db)

	storeRepo := repository.NewGormStoreRepository(db)
	userRepo := repository.NewGormUserRepository(db)
	orderRepo := repository.NewGormOrderRepository(db)
	metrics := awspkg.NewMetricsClient(awsCfg)

	dashboard := services.NewDashboardService(services.Deps{
		Stores:    storeRepo,
		Users:     userRepo,
		Orders:    orderRepo,
		Publisher: awspkg.NewSNSClient(awsCfg),
		Metrics:   metrics,
		TopicArn:  cfg.OrderSNSTopicARN,
		Logger:    log,
	})
	v := verifier.New(storeRepo, userRepo, log)

	if cfg.CheckoutQueueURL != "" {
		consumer := services.NewCheckoutConsumer(storeRepo, orderRepo, metrics, log)
		go consumer.Start(ctx, awspkg.NewSQSConsumer(awsCfg, cfg.CheckoutQueueURL, log))
	} else {
		log.Warn("CHECKOUT_QUEUE_URL not set, checkout consumer disabled")
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(commonmw.RequestID())
	r.Use(commonmw.RequestLogger(log))
	r.Use(commonmw.MetricsMiddleware(metrics, serviceName))
	r.Use(commonmw.CORS(cfg.CORSOrigins))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.Timeout(30 * time.Second))
	r.Use(apperrors.ErrorMiddleware(log))
	commonmw.RejectUnknownMethods(r)

	signed := func(target middleware.TargetFunc) gin.HandlerFunc {
		return middleware.RequireSignature(v, target, metrics, log)
	}
	writeLimiter := commonmw.NewRateLimiter(rate.Every(time.Minute/30), 10, 10*time.Minute)
	routes.RegisterOrderRoutes(r, controllers.NewDashboardController(dashboard), signed, commonmw.RateLimit(writeLimiter))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info("order service listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down gracefully")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	log.Info("server shutdown complete")
}
