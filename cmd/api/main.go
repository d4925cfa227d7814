package main

import (
	"Chatline/internal/api/config"
	"Chatline/internal/pkg/cron"
	"Chatline/internal/pkg/database"
	"Chatline/internal/pkg/es"
	"Chatline/internal/pkg/logger"
	"Chatline/internal/pkg/minio"
	"Chatline/internal/pkg/mongo"
	"Chatline/internal/pkg/redis"
	"Chatline/internal/pkg/security"
	"Chatline/internal/wire"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 加载配置
	if err := config.LoadConfig(); err != nil {
		log.Error("Fatal error: failed to load configuration", "err", err)
		panic(err)
	}
	cfg := config.Cfg

	// 初始化日志
	logger.InitLogger(cfg.Logstash)
	gin.SetMode(cfg.Server.Mode)
	security.Configure(cfg.JWT)

	// 数据库连接
	dbCfg := cfg.DB
	db, err := database.NewGormDB(&dbCfg)
	if err != nil {
		log.Error("Fatal error: failed to create database connection", "err", err)
		panic(err)
	}

	// Redis 连接，未配置时跳过缓存
	if cfg.Redis.Addr != "" {
		if err = redis.InitRedis(cfg.Redis); err != nil {
			log.Error("Fatal error: failed to create redis connection", "err", err)
			panic(err)
		}
	}

	// Mongo 连接
	mongoDB, err := mongo.InitMongo(cfg.Mongo)
	if err != nil {
		log.Error("Fatal error: failed to create mongo connection", "err", err)
		panic(err)
	}

	// MinIO 连接
	if err = minio.Init(cfg.MinIO); err != nil {
		log.Error("Fatal error: failed to initialize MinIO", "err", err)
		panic(err)
	}

	// ElasticSearch 连接
	if cfg.Elastic.Enable {
		if err = es.InitClient(cfg.Elastic); err != nil {
			log.Error("Fatal error: failed to initialize ElasticSearch", "err", err)
			panic(err)
		}
	}

	// 依赖注入
	app, err := wire.BuildApplication(db, mongoDB, cfg)
	if err != nil {
		log.Error("Fatal error: failed to create application", "err", err)
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// 定时任务
	if err = cron.InitCron(app.CronMgr); err != nil {
		log.Error("Fatal error: failed to start cron jobs", "err", err)
		panic(err)
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Cron Jobs stopping...")
		app.CronMgr.Stop()
		return nil
	})

	// Kafka 消费者
	if app.KafkaManager != nil {
		g.Go(func() error {
			log.Info("Kafka Consumers starting...")
			return app.KafkaManager.Start(ctx)
		})
	}

	// 限流条目清理
	g.Go(func() error {
		return app.RateLimiter.Run(ctx)
	})

	// HTTP 服务器
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.Info("HTTP Server starting...", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 优雅退出
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-ctx.Done():
		case sig := <-quit:
			log.Info("Received signal, shutting down...", "signal", sig)
			cancel()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP Server shutdown failed", "err", err)
		}
		return nil
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("App exited with error", "err", err)
	}

	if app.KafkaProducer != nil {
		if err = app.KafkaProducer.Close(); err != nil {
			log.Error("Kafka producer close failed", "err", err)
		}
	}
	if err = database.Close(db); err != nil {
		log.Error("Database close failed", "err", err)
	}
	if err = redis.Close(); err != nil {
		log.Error("Redis close failed", "err", err)
	}
	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer disconnectCancel()
	if err = mongoDB.Client().Disconnect(disconnectCtx); err != nil {
		log.Error("Mongo disconnect failed", "err", err)
	}
	log.Info("App exited successfully.")
}
