package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/common/database"
	mqttcommon "github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/common/mqtt"
	rediscommon "github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/common/redis"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/common/retry"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/api"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/config"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/consumer"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/metrics"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/pipeline"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/publisher"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/reassembly"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/repository"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/topic"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// TagDataService 标签数据服务
type TagDataService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqttcommon.Client
	consumer   *consumer.MQTTConsumer
	processor  *pipeline.Processor
	httpServer *api.Server

	cancelSweep context.CancelFunc
	sweepDone   sync.WaitGroup
}

// NewTagDataService 创建标签数据服务
func NewTagDataService(cfg *config.Config, logger *zap.Logger) (*TagDataService, error) {
	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := repository.NewTagDataRepository(db, cfg.Database.Driver, logger)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		database.Close(db)
		return nil, err
	}

	// Redis 可选，未配置时不发布读数流
	var redisClient *redis.Client
	var readingPublisher pipeline.ReadingPublisher
	if cfg.Redis.Enabled() {
		redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
			rediscommon.Close(redisClient)
			database.Close(db)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		readingPublisher = publisher.NewReadingStreamPublisher(redisClient, cfg.Tag.ReadingStream, cfg.Tag.StreamMaxLen, logger)
	}

	// 初始化MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		if redisClient != nil {
			rediscommon.Close(redisClient)
		}
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	decoder := topic.NewDecoder(cfg.Tag.Namespace)
	router := reassembly.NewRouter(reassembly.NewBuffer())
	processor := pipeline.NewProcessor(
		decoder,
		router,
		repo,
		readingPublisher,
		retryConfig(cfg),
		m,
		logger,
	)

	handle := func(ctx context.Context, topicName string, payload []byte, receivedAt time.Time) {
		processor.Process(ctx, topicName, payload, receivedAt)
	}
	dispatcher := consumer.NewDispatcher(decoder, cfg.Tag.Workers, cfg.Tag.QueueSize, handle, logger)
	mqttConsumer := consumer.NewMQTTConsumer(mqttClient, decoder, dispatcher, cfg.MQTT.QoS, logger)

	s := &TagDataService{
		config:     cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		mqttClient: mqttClient,
		consumer:   mqttConsumer,
		processor:  processor,
	}

	if cfg.HTTP.Addr != "" {
		handler := api.NewHandler(s, repo, logger)
		s.httpServer = api.NewServer(cfg.HTTP.Addr, api.NewRouter(handler, registry), logger)
	}

	return s, nil
}

func retryConfig(cfg *config.Config) retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.Persist.MaxAttempts
	rc.InitialDelay = cfg.Persist.InitialBackoff
	rc.MaxDelay = cfg.Persist.MaxBackoff
	return rc
}

// Start 启动服务
func (s *TagDataService) Start(ctx context.Context) error {
	s.logger.Info("Starting tag data service components")

	if s.httpServer != nil {
		s.httpServer.Start()
	}

	// 启动MQTT消费者
	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MQTT consumer: %w", err)
	}

	if s.config.Tag.SequenceTTL > 0 {
		sweepCtx, cancel := context.WithCancel(ctx)
		s.cancelSweep = cancel
		s.sweepDone.Add(1)
		go func() {
			defer s.sweepDone.Done()
			runSweeper(sweepCtx, s.config.Tag.SweepInterval, s.config.Tag.SequenceTTL, s.processor.EvictStale)
		}()
	}

	s.logger.Info("Tag data service started successfully",
		zap.String("topic", topic.NewDecoder(s.config.Tag.Namespace).Subscription()),
		zap.String("db_driver", s.config.Database.Driver),
		zap.Bool("stream_enabled", s.redis != nil),
	)
	return nil
}

// runSweeper 周期性清理超时序列，直到 ctx 取消
func runSweeper(ctx context.Context, interval, ttl time.Duration, evict func(time.Duration) int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evict(ttl)
		}
	}
}

// Stop 停止服务
func (s *TagDataService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping tag data service")

	// 先停止 Consumer，排空已接收的事件
	if s.consumer != nil {
		if err := s.consumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping consumer", zap.Error(err))
		}
	}

	if s.cancelSweep != nil {
		s.cancelSweep()
		s.sweepDone.Wait()
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("Error stopping HTTP server", zap.Error(err))
		}
	}

	// 断开MQTT
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	// 关闭Redis
	if s.redis != nil {
		rediscommon.Close(s.redis)
	}

	// 关闭数据库
	if s.db != nil {
		database.Close(s.db)
	}

	s.logger.Info("Tag data service stopped")
	return nil
}

// MQTTConnected 健康检查用
func (s *TagDataService) MQTTConnected() bool {
	return s.mqttClient != nil && s.mqttClient.IsConnected()
}

// ActiveSequences 当前未完成的序列数
func (s *TagDataService) ActiveSequences() int {
	return s.processor.ActiveSequences()
}
