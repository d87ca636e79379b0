package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"alarmtrail/internal/config"
	"alarmtrail/internal/models"
	"alarmtrail/internal/mqtt"
	"alarmtrail/internal/parser"
)

type fakeSubscriber struct {
	topic        string
	qos          byte
	handler      mqtt.MessageHandler
	unsubscribed []string
	subscribeErr error
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.topic = topic
	f.qos = qos
	f.handler = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.unsubscribed = append(f.unsubscribed, topics...)
	return nil
}

type fakeApplier struct {
	events []*models.AlarmEvent
	err    error
}

func (f *fakeApplier) Apply(_ context.Context, evt *models.AlarmEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, evt)
	return nil
}

func newTestConsumer(t *testing.T, sub *fakeSubscriber, applier *fakeApplier) *Consumer {
	t.Helper()

	loc, err := parser.FixedOffset("+00:00")
	require.NoError(t, err)

	cfg := &config.MQTTConfig{Topic: "devices/alarm/events", QoS: 1}
	return NewConsumer(cfg, sub, parser.NewParser(loc), applier, zap.NewNop())
}

func TestStart_SubscribesAndBlocksUntilCancel(t *testing.T) {
	sub := &fakeSubscriber{}
	c := newTestConsumer(t, sub, &fakeApplier{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx)
	}()

	// 等待订阅生效后再取消
	assert.Eventually(t, func() bool { return sub.handler != nil }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "devices/alarm/events", sub.topic)
	assert.Equal(t, byte(1), sub.qos)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after context cancellation")
	}
}

func TestStart_SubscribeFailure(t *testing.T) {
	sub := &fakeSubscriber{subscribeErr: errors.New("broker unavailable")}
	c := newTestConsumer(t, sub, &fakeApplier{})

	err := c.Start(context.Background())
	assert.ErrorContains(t, err, "failed to subscribe to alarm topic")
}

func TestStop_Unsubscribes(t *testing.T) {
	sub := &fakeSubscriber{}
	c := newTestConsumer(t, sub, &fakeApplier{})

	err := c.Stop(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"devices/alarm/events"}, sub.unsubscribed)
}

func TestHandleMessage_AppliesParsedEvent(t *testing.T) {
	applier := &fakeApplier{}
	c := newTestConsumer(t, &fakeSubscriber{}, applier)

	err := c.handleMessage("devices/alarm/events", []byte("2024-01-01 10:00:00 AA:BB:CC:DD:EE:FF 192.168.1.10 1 3 7"))
	assert.NoError(t, err)

	require.Len(t, applier.events, 1)
	evt := applier.events[0]
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", evt.DeviceMac)
	assert.Equal(t, "192.168.1.10", evt.DeviceIp)
	assert.Equal(t, models.TransitionRaise, evt.Transition)
	assert.Equal(t, 3, evt.Code)
}

func TestHandleMessage_MalformedDropped(t *testing.T) {
	applier := &fakeApplier{}
	c := newTestConsumer(t, &fakeSubscriber{}, applier)

	// 字段不足：丢弃但不报错，消费继续
	err := c.handleMessage("devices/alarm/events", []byte("not an alarm event"))
	assert.NoError(t, err)
	assert.Empty(t, applier.events)
}

func TestHandleMessage_ApplyFailure(t *testing.T) {
	applier := &fakeApplier{err: errors.New("database is down")}
	c := newTestConsumer(t, &fakeSubscriber{}, applier)

	err := c.handleMessage("devices/alarm/events", []byte("2024-01-01 10:00:00 AA:BB:CC:DD:EE:FF 192.168.1.10 0 2 8"))
	assert.ErrorContains(t, err, "failed to apply alarm event")
	assert.Empty(t, applier.events)
}
