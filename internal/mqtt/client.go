package mqtt

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"alarmtrail/internal/config"
)

// MessageHandler 消息处理函数类型
type MessageHandler func(topic string, payload []byte) error

// ConnState 受监督的连接状态
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateSubscribed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateSubscribed:
		return "SUBSCRIBED"
	default:
		return "UNKNOWN"
	}
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client MQTT客户端封装。
// 断线由 paho 自动重连（指数退避，1s 起、封顶 30s），重连成功后
// 重放全部订阅（CleanSession 下 broker 不保留订阅），不回放已消费的消息。
type Client struct {
	client mqtt.Client
	config *config.MQTTConfig
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]subscription

	state atomic.Int32
}

// NewClient 创建MQTT客户端（不连接，Connect 时才拨号）
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) *Client {
	c := &Client{
		config: cfg,
		logger: logger,
		subs:   make(map[string]subscription),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setState(StateDisconnected)
		c.logger.Warn("mqtt connection lost, auto-reconnect engaged", zap.Error(err))
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		c.setState(StateConnecting)
		c.logger.Info("mqtt reconnecting")
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.logger.Info("mqtt connected", zap.String("broker", cfg.Broker))
		c.resubscribe()
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect 拨号 broker，失败时按 ConnectRetryInterval 重试直到成功
func (c *Client) Connect() error {
	c.setState(StateConnecting)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// Subscribe 订阅主题并登记，重连后自动重放
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if err := c.subscribe(topic, qos, handler); err != nil {
		return err
	}

	c.setState(StateSubscribed)
	return nil
}

func (c *Client) subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			// 记录错误，但不中断处理
			c.logger.Error("mqtt message handler failed",
				zap.String("topic", msg.Topic()),
				zap.Error(err))
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}
	return nil
}

// resubscribe 重连后重放登记过的订阅
func (c *Client) resubscribe() {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	for topic, sub := range subs {
		if err := c.subscribe(topic, sub.qos, sub.handler); err != nil {
			c.logger.Error("mqtt resubscribe failed", zap.String("topic", topic), zap.Error(err))
			continue
		}
		c.logger.Info("mqtt subscription re-established", zap.String("topic", topic))
	}
	c.setState(StateSubscribed)
}

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(topics ...string) error {
	c.mu.Lock()
	for _, topic := range topics {
		delete(c.subs, topic)
	}
	c.mu.Unlock()

	token := c.client.Unsubscribe(topics...)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", token.Error())
	}

	return nil
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.client.Disconnect(250) // 250ms等待时间
	c.setState(StateDisconnected)
}

// State 当前连接状态
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Client) setState(s ConnState) {
	c.state.Store(int32(s))
}
