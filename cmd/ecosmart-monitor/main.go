package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecosmart-monitor/internal/cache"
	"ecosmart-monitor/internal/config"
	"ecosmart-monitor/internal/database"
	"ecosmart-monitor/internal/evaluator"
	"ecosmart-monitor/internal/generator"
	"ecosmart-monitor/internal/logger"
	"ecosmart-monitor/internal/notifier"
	"ecosmart-monitor/internal/repository"
	"ecosmart-monitor/internal/scheduler"
	"ecosmart-monitor/internal/server"
	"ecosmart-monitor/internal/service"
	"ecosmart-monitor/internal/stats"
	"ecosmart-monitor/internal/weather"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Redis is optional. Without it the latest-reading queries go straight
	// to the database.
	var rtCache service.RealtimeCache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unavailable, realtime cache disabled", zap.Error(err))
	} else {
		rtCache = cache.NewRealtimeCache(cache.NewRedisKVStore(redisClient), &cfg.Monitor, log)
	}
	pingCancel()

	// Repositories
	plots := repository.NewPlotRepository(db, log)
	users := repository.NewUserRepository(db, log)
	readings := repository.NewReadingRepository(db, log)
	rules := repository.NewRuleRepository(db, log)
	events := repository.NewAlertEventRepository(db, log)

	// MQTT alert publishing is optional, enabled by MQTT_BROKER.
	var publisher evaluator.AlertPublisher
	if cfg.MQTT.Broker != "" {
		mqttPublisher, err := notifier.NewAlertPublisher(&cfg.MQTT, log)
		if err != nil {
			log.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		defer mqttPublisher.Close()
		publisher = mqttPublisher
	}

	// Core components
	weatherClient := weather.NewClient(&cfg.Weather, log)
	gen := generator.New(plots, weatherClient, log)
	statEngine := stats.NewEngine(readings, log,
		cfg.Monitor.StatsWindow, cfg.Monitor.AnomalyMinSamples, cfg.Monitor.AnomalyThreshold)
	dispatcher := notifier.NewSMTPDispatcher(&cfg.SMTP, log)
	alertEvaluator := evaluator.New(plots, rules, events, users,
		dispatcher, publisher, log, cfg.Monitor.AlertCooldown)

	pipeline := service.NewReadingPipeline(readings, rtCache, log)
	sched := scheduler.New(gen, pipeline, alertEvaluator, plots, log,
		cfg.Monitor.GenerationInterval)

	monitor := service.NewMonitor(sched, pipeline, readings, rtCache,
		statEngine, alertEvaluator, plots, rules, events, log)
	defer monitor.Close()

	srv := server.New(monitor, log, cfg.HTTP.Addr)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErrChan:
		log.Fatal("HTTP server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down HTTP server cleanly", zap.Error(err))
	}

	log.Info("Monitor service stopped")
}
