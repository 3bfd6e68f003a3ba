package consumer

import (
	"context"
	"fmt"

	mqttcommon "github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/common/mqtt"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/topic"

	"go.uber.org/zap"
)

// Subscriber MQTT 订阅接口（由 mqttcommon.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTConsumer MQTT消息消费者
type MQTTConsumer struct {
	subscriber Subscriber
	decoder    *topic.Decoder
	dispatcher *Dispatcher
	qos        byte
	logger     *zap.Logger

	ctx context.Context
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	subscriber Subscriber,
	decoder *topic.Decoder,
	dispatcher *Dispatcher,
	qos byte,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		subscriber: subscriber,
		decoder:    decoder,
		dispatcher: dispatcher,
		qos:        qos,
		logger:     logger,
		ctx:        context.Background(),
	}
}

// Start 启动 worker 并订阅标签主题
func (c *MQTTConsumer) Start(ctx context.Context) error {
	c.ctx = ctx
	c.dispatcher.Start()

	subscription := c.decoder.Subscription()
	if err := c.subscriber.Subscribe(subscription, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to tag topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", subscription),
		zap.Int("workers", c.dispatcher.Workers()),
	)

	return nil
}

// Stop 取消订阅并等待已接收的事件处理完
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.subscriber.Unsubscribe(c.decoder.Subscription()); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.dispatcher.Stop()

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理MQTT消息
func (c *MQTTConsumer) handleMessage(topicName string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topicName),
		zap.Int("payload_size", len(payload)),
	)

	buf := make([]byte, len(payload))
	copy(buf, payload)

	if err := c.dispatcher.Submit(c.ctx, topicName, buf); err != nil {
		return fmt.Errorf("failed to dispatch message: %w", err)
	}
	return nil
}
