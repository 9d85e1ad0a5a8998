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
	"github.com/storefront-platform/backend/pkg/dynamodb"
	"github.com/storefront-platform/backend/services/cart-service/catalog"
	"github.com/storefront-platform/backend/services/cart-service/config"
	"github.com/storefront-platform/backend/services/cart-service/controllers"
	"github.com/storefront-platform/backend/services/cart-service/database"
	"github.com/storefront-platform/backend/services/cart-service/routes"
	"github.com/storefront-platform/backend/services/cart-service/services"
	"github.com/storefront-platform/backend/services/common/auth"
	apperrors "github.com/storefront-platform/backend/services/common/errors"
	"github.com/storefront-platform/backend/services/common/logger"
	"github.com/storefront-platform/backend/services/common/middleware"
)

const serviceName = "cart-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Initialize(os.Getenv("APP_ENV")).Fatal("config load failed", zap.Error(err))
	}

	ctx := context.Background()
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

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	storage := database.NewRedisCartStorage(redisClient, cfg.CartTTL)
	products := catalog.NewDynamoCatalog(dynamodb.NewClientFromConfig(awsCfg), cfg.ProductsTable)
	metrics := awspkg.NewMetricsClient(awsCfg)

	cartService := services.NewCartService(services.Deps{
		Storage:     storage,
		Catalog:     products,
		Idempotency: storage,
		Publisher:   awspkg.NewSNSClient(awsCfg),
		Metrics:     metrics,
		TopicArn:    cfg.CheckoutSNSTopicARN,
		Logger:      log,
	})
	cartController := controllers.NewCartController(cartService)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.MetricsMiddleware(metrics, serviceName))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(apperrors.ErrorMiddleware(log))
	middleware.RejectUnknownMethods(r)

	checkoutLimiter := middleware.NewRateLimiter(rate.Every(time.Minute/20), 5, 10*time.Minute)
	routes.RegisterCartRoutes(r, cartController, auth.NewTokenValidator(cfg.JWTSecret), middleware.RateLimit(checkoutLimiter))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info("cart service listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	log.Info("server shutdown complete")
}
