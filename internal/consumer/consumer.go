package consumer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"alarmtrail/internal/config"
	"alarmtrail/internal/models"
	"alarmtrail/internal/mqtt"
	"alarmtrail/internal/parser"
)

// EventApplier 将解析后的事件落库
type EventApplier interface {
	Apply(ctx context.Context, evt *models.AlarmEvent) error
}

// Subscriber MQTT订阅通道
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Consumer 告警事件消费者。
// 单条事件的任何失败（格式错误、落库失败）只记录日志并丢弃该条，
// 不中断后续消息的消费。
type Consumer struct {
	config  *config.MQTTConfig
	client  Subscriber
	parser  *parser.Parser
	applier EventApplier
	logger  *zap.Logger
}

// NewConsumer 创建消费者
func NewConsumer(
	cfg *config.MQTTConfig,
	client Subscriber,
	p *parser.Parser,
	applier EventApplier,
	logger *zap.Logger,
) *Consumer {
	return &Consumer{
		config:  cfg,
		client:  client,
		parser:  p,
		applier: applier,
		logger:  logger,
	}
}

// Start 启动消费者
func (c *Consumer) Start(ctx context.Context) error {
	// 订阅告警事件主题
	if err := c.client.Subscribe(c.config.Topic, c.config.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to alarm topic: %w", err)
	}

	c.logger.Info("alarm consumer started",
		zap.String("topic", c.config.Topic),
		zap.Uint8("qos", uint8(c.config.QoS)),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *Consumer) Stop(ctx context.Context) error {
	if err := c.client.Unsubscribe(c.config.Topic); err != nil {
		c.logger.Error("failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("alarm consumer stopped")
	return nil
}

// handleMessage 处理单条告警事件
func (c *Consumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("received alarm event",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	evt, err := c.parser.Parse(string(payload))
	if err != nil {
		// 格式错误的事件丢弃，不影响后续消息
		c.logger.Warn("dropping malformed alarm event",
			zap.ByteString("payload", payload),
			zap.Error(err),
		)
		return nil
	}

	if err := c.applier.Apply(context.Background(), evt); err != nil {
		c.logger.Error("failed to apply alarm event",
			zap.String("device_mac", evt.DeviceMac),
			zap.String("device_ip", evt.DeviceIp),
			zap.Int("code", evt.Code),
			zap.Error(err),
		)
		return fmt.Errorf("failed to apply alarm event: %w", err)
	}

	return nil
}
