package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/common/logger"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/config"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "tagdata")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting tagdata service",
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("namespace", cfg.Tag.Namespace),
		zap.Int("workers", cfg.Tag.Workers),
	)

	// 创建服务
	tagService, err := service.NewTagDataService(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create tagdata service", zap.Error(err))
	}

	// 启动服务
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tagService.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start tagdata service", zap.Error(err))
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := tagService.Stop(shutdownCtx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
