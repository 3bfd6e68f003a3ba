package publisher

import (
	"context"
	"fmt"

	rediscommon "github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/common/redis"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReadingStreamPublisher 将已提交的读数发布到 Redis Streams
type ReadingStreamPublisher struct {
	redisClient *redis.Client
	stream      string
	maxLen      int64
	logger      *zap.Logger
}

// NewReadingStreamPublisher 创建读数发布器
func NewReadingStreamPublisher(redisClient *redis.Client, stream string, maxLen int64, logger *zap.Logger) *ReadingStreamPublisher {
	return &ReadingStreamPublisher{
		redisClient: redisClient,
		stream:      stream,
		maxLen:      maxLen,
		logger:      logger,
	}
}

// Publish 发布一条读数
func (p *ReadingStreamPublisher) Publish(ctx context.Context, reading models.Reading) error {
	readingID := uuid.NewString()

	data := map[string]interface{}{
		"reading_id":  readingID,
		"submit_time": reading.SubmitTime,
		"gateway":     reading.Gateway,
		"tag_mac":     reading.TagMAC,
		"rssi":        reading.RSSI,
		"volt":        reading.Volt,
		"tmr":         reading.Timer,
		"xcnt":        reading.TransmitCount,
	}

	streamID, err := rediscommon.PublishJSONToStream(ctx, p.redisClient, p.stream, p.maxLen, data)
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}

	p.logger.Debug("Published tag reading to Redis Streams",
		zap.String("reading_id", readingID),
		zap.String("stream", p.stream),
		zap.String("stream_id", streamID),
	)

	return nil
}
