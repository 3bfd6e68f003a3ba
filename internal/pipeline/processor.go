package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/common/retry"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/metrics"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/models"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/reassembly"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/topic"

	"go.uber.org/zap"
)

// ReadingStore 读数持久化
type ReadingStore interface {
	Insert(ctx context.Context, reading models.Reading) error
}

// ReadingPublisher 已提交读数的下游发布
type ReadingPublisher interface {
	Publish(ctx context.Context, reading models.Reading) error
}

// Result 单个事件的处理结果
type Result struct {
	Outcome reassembly.Outcome
	Reading *models.Reading // 仅在读数成功提交后非空
	Err     error           // 已在管道内处理，仅供调用方观察
}

// Processor 一个事件走完 解码 -> 路由 -> 组装 -> 持久化
// 同一实体的事件必须串行调用 Process
type Processor struct {
	decoder   *topic.Decoder
	router    *reassembly.Router
	store     ReadingStore
	publisher ReadingPublisher // 可为 nil
	retryCfg  retry.Config
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewProcessor 创建处理器
func NewProcessor(
	decoder *topic.Decoder,
	router *reassembly.Router,
	store ReadingStore,
	publisher ReadingPublisher,
	retryCfg retry.Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		decoder:   decoder,
		router:    router,
		store:     store,
		publisher: publisher,
		retryCfg:  retryCfg,
		metrics:   m,
		logger:    logger,
	}
}

// Process 处理一条 MQTT 消息，错误不会向外传播
// receivedAt 为消息到达时间，作为读数的 submitTime
func (p *Processor) Process(ctx context.Context, topicName string, payload []byte, receivedAt time.Time) Result {
	t, err := p.decoder.Decode(topicName)
	if err != nil {
		p.logger.Debug("Dropping message with malformed topic", zap.String("topic", topicName))
		p.metrics.FragmentsDropped.WithLabelValues(metrics.ReasonDecode).Inc()
		return Result{Outcome: reassembly.OutcomeDropped, Err: err}
	}

	fragment := models.Fragment{
		Key:        models.EntityKey{Source: t.Source, Tag: t.Entity},
		Attribute:  models.ParseAttribute(t.Attribute),
		Name:       t.Attribute,
		RawValue:   strings.TrimSpace(string(payload)),
		ObservedAt: receivedAt.Unix(),
	}
	p.metrics.FragmentsReceived.WithLabelValues(fragment.Attribute.String()).Inc()

	decision, err := p.router.Route(fragment)
	p.metrics.ActiveSequences.Set(float64(p.router.Buffer().Len()))
	if err != nil {
		p.logRouteError(fragment, err)
		return Result{Outcome: decision.Outcome, Err: err}
	}

	switch decision.Outcome {
	case reassembly.OutcomeRestarted:
		p.metrics.SequencesRestarted.Inc()
		p.logger.Info("Restarted tag sequence on repeated mac",
			zap.String("entity", fragment.Key.String()),
		)
		return Result{Outcome: decision.Outcome}
	case reassembly.OutcomeCompleted:
		// 继续组装
	default:
		return Result{Outcome: decision.Outcome}
	}

	reading, err := reassembly.Assemble(decision.Fragments)
	if err != nil {
		p.metrics.FragmentsDropped.WithLabelValues(metrics.ReasonMalformed).Inc()
		p.logger.Warn("Dropping malformed tag sequence",
			zap.String("entity", fragment.Key.String()),
			zap.Int("fragments", len(decision.Fragments)),
			zap.Error(err),
		)
		return Result{Outcome: reassembly.OutcomeDropped, Err: err}
	}
	p.metrics.ReadingsAssembled.Inc()

	if err := p.persist(ctx, reading); err != nil {
		return Result{Outcome: reassembly.OutcomeDropped, Err: err}
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, reading); err != nil {
			p.metrics.PublishFailures.Inc()
			p.logger.Warn("Failed to publish tag reading",
				zap.String("entity", reading.Key().String()),
				zap.Error(err),
			)
		}
	}

	return Result{Outcome: reassembly.OutcomeCompleted, Reading: &reading}
}

// persist 有界重试写入；耗尽后丢弃读数并记录足够的恢复信息
func (p *Processor) persist(ctx context.Context, reading models.Reading) error {
	start := time.Now()
	defer func() {
		p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
	}()

	err := retry.Do(ctx, p.retryCfg, func() error {
		return p.store.Insert(ctx, reading)
	}, func(attempt int, delay time.Duration, err error) {
		p.metrics.PersistRetries.Inc()
		p.logger.Warn("Retrying tag reading insert",
			zap.String("entity", reading.Key().String()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
	})
	if err != nil {
		p.metrics.PersistFailures.Inc()
		p.metrics.FragmentsDropped.WithLabelValues(metrics.ReasonPersist).Inc()
		p.logger.Error("Dropping tag reading after persistence retries",
			zap.String("gateway", reading.Gateway),
			zap.String("tag_mac", reading.TagMAC),
			zap.Int64("submit_time", reading.SubmitTime),
			zap.Int64("rssi", reading.RSSI),
			zap.Int64("volt", reading.Volt),
			zap.Int64("tmr", reading.Timer),
			zap.Int64("xcnt", reading.TransmitCount),
			zap.Error(err),
		)
		return err
	}

	p.metrics.ReadingsPersisted.Inc()
	p.logger.Info("Stored tag reading",
		zap.String("gateway", reading.Gateway),
		zap.String("tag_mac", reading.TagMAC),
		zap.Int64("submit_time", reading.SubmitTime),
	)
	return nil
}

func (p *Processor) logRouteError(f models.Fragment, err error) {
	switch {
	case errors.Is(err, reassembly.ErrSequenceState):
		p.metrics.FragmentsDropped.WithLabelValues(metrics.ReasonInactive).Inc()
		p.logger.Warn("Dropping fragment outside of a sequence",
			zap.String("entity", f.Key.String()),
			zap.String("attribute", f.Name),
			zap.Error(err),
		)
	default:
		p.metrics.FragmentsDropped.WithLabelValues(metrics.ReasonUnrecognized).Inc()
		p.logger.Debug("Dropping fragment with unrecognized attribute",
			zap.String("entity", f.Key.String()),
			zap.String("attribute", f.Name),
		)
	}
}

// EvictStale 清理超时序列
func (p *Processor) EvictStale(ttl time.Duration) int {
	evicted := p.router.Buffer().EvictStale(ttl)
	for _, key := range evicted {
		p.logger.Warn("Evicted stale tag sequence",
			zap.String("entity", key.String()),
			zap.Duration("ttl", ttl),
		)
	}
	p.metrics.SequencesEvicted.Add(float64(len(evicted)))
	p.metrics.ActiveSequences.Set(float64(p.router.Buffer().Len()))
	return len(evicted)
}

// ActiveSequences 当前活跃序列数
func (p *Processor) ActiveSequences() int {
	return p.router.Buffer().Len()
}
