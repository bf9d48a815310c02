// CRMService 主程序
// 功能：客户、商品目录与订单管理，下单时原子扣减库存
// 架构：DDD 分层 + gin REST + GORM + Kafka 领域事件
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/crm/internal/crm/application"
	"github.com/wyfcoding/crm/internal/crm/domain"
	"github.com/wyfcoding/crm/internal/crm/infrastructure/messaging"
	"github.com/wyfcoding/crm/internal/crm/infrastructure/persistence/mysql"
	httphandler "github.com/wyfcoding/crm/internal/crm/interfaces/http"
	"github.com/wyfcoding/crm/pkg/cache"
	"github.com/wyfcoding/crm/pkg/config"
	"github.com/wyfcoding/crm/pkg/db"
	"github.com/wyfcoding/crm/pkg/logger"
	"github.com/wyfcoding/crm/pkg/metrics"
	"github.com/wyfcoding/crm/pkg/middleware"
	"github.com/wyfcoding/crm/pkg/mq"
	"github.com/wyfcoding/crm/pkg/ratelimit"
)

const defaultConfigPath = "configs/crm/config.toml"

func main() {
	if err := run(); err != nil {
		logger.Error(context.Background(), "CRMService exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. 加载配置
	configPath := defaultConfigPath
	if p := os.Getenv("CRM_CONFIG"); p != "" {
		configPath = p
	}
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return err
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting CRMService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		return err
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		if err := mysql.AutoMigrate(database.DB); err != nil {
			return err
		}
		logger.Info(ctx, "Database schema migrated")
	}

	// 4. 初始化指标
	m, err := metrics.New(cfg.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// 5. 初始化事件发布者，未配置 Kafka 时仅记录日志
	var publisher domain.EventPublisher = messaging.NewLogPublisher()
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			TopicPrefix:  cfg.Kafka.TopicPrefix,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			return err
		}
		defer producer.Close()
		publisher = messaging.NewKafkaPublisher(producer)
		logger.Info(ctx, "Kafka producer initialized", "brokers", cfg.Kafka.Brokers)
	}

	// 6. 初始化应用服务
	svc := application.NewCRMService(
		mysql.NewCustomerRepository(database.DB),
		mysql.NewProductRepository(database.DB),
		mysql.NewOrderRepository(database.DB),
		mysql.NewTxManager(database.DB),
		application.Options{
			DuplicateItemPolicy: application.DuplicateItemPolicy(cfg.CRM.DuplicateItemPolicy),
			RestockIncrement:    cfg.CRM.RestockIncrement,
			Publisher:           publisher,
			Metrics:             m,
		},
	)

	// 7. 初始化限流器
	var limiter ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return err
		}
		defer closeRedis(ctx, rdb)
		limiter = ratelimit.NewRedisRateLimiter(rdb)
	}

	// 8. 启动 HTTP 服务器
	httpServer := createHTTPServer(cfg, svc, m, limiter)
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 9. 优雅关停
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info(ctx, "Shutting down CRMService", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}

	logger.Info(ctx, "CRMService stopped")
	return nil
}

func closeRedis(ctx context.Context, rdb *redis.Client) {
	if err := rdb.Close(); err != nil {
		logger.Error(ctx, "Failed to close Redis client", "error", err)
	}
}

// createHTTPServer 创建 HTTP 服务器，limiter 为 nil 时不启用限流
func createHTTPServer(cfg *config.Config, svc *application.CRMService, m *metrics.Metrics, limiter ratelimit.RateLimiter) *http.Server {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinLoggingMiddleware(m))
	router.Use(middleware.GinCORSMiddleware())
	if limiter != nil {
		router.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))
	}

	httphandler.NewCRMHandler(svc).RegisterRoutes(&router.RouterGroup)

	// 健康检查
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().UTC(),
		})
	})
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}
