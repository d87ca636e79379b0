package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRegistry struct {
	serials   map[string]string
	upsertErr error
	lookupErr error
}

func (f *fakeRegistry) Upsert(_ context.Context, deviceMac, serial string) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if f.serials == nil {
		f.serials = make(map[string]string)
	}
	f.serials[deviceMac] = serial
	return nil
}

func (f *fakeRegistry) Lookup(_ context.Context, deviceMac string) (string, error) {
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	return f.serials[deviceMac], nil
}

type fakeBackfiller struct {
	updated int64
	err     error
	calls   int
}

func (f *fakeBackfiller) BackfillSerial(_ context.Context, _, _ string) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.updated, nil
}

type fakeInvalidator struct {
	macs []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, deviceMac string) {
	f.macs = append(f.macs, deviceMac)
}

func TestRegisterSerial_Success(t *testing.T) {
	registry := &fakeRegistry{}
	backfiller := &fakeBackfiller{updated: 3}
	invalidator := &fakeInvalidator{}
	svc := NewRegistryService(registry, backfiller, invalidator, zap.NewNop())

	updated, err := svc.RegisterSerial(context.Background(), "AA:BB:CC:DD:EE:FF", "SN-001")

	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)
	assert.Equal(t, "SN-001", registry.serials["AA:BB:CC:DD:EE:FF"])
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:FF"}, invalidator.macs)
}

func TestRegisterSerial_Idempotent(t *testing.T) {
	registry := &fakeRegistry{}
	backfiller := &fakeBackfiller{updated: 3}
	svc := NewRegistryService(registry, backfiller, &fakeInvalidator{}, zap.NewNop())

	_, err := svc.RegisterSerial(context.Background(), "AA:BB:CC:DD:EE:FF", "SN-001")
	require.NoError(t, err)

	// 再次注册同样成功，回填数反映匹配的记录数而不是新增数
	updated, err := svc.RegisterSerial(context.Background(), "AA:BB:CC:DD:EE:FF", "SN-001")
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)
	assert.Equal(t, 2, backfiller.calls)
}

func TestRegisterSerial_UpsertFailure(t *testing.T) {
	registry := &fakeRegistry{upsertErr: errors.New("database is down")}
	backfiller := &fakeBackfiller{}
	svc := NewRegistryService(registry, backfiller, &fakeInvalidator{}, zap.NewNop())

	_, err := svc.RegisterSerial(context.Background(), "AA:BB:CC:DD:EE:FF", "SN-001")
	assert.ErrorContains(t, err, "failed to register serial")
	assert.Equal(t, 0, backfiller.calls)
}

func TestRegisterSerial_BackfillFailureDoesNotFailRegistration(t *testing.T) {
	registry := &fakeRegistry{}
	backfiller := &fakeBackfiller{err: errors.New("database is down")}
	svc := NewRegistryService(registry, backfiller, &fakeInvalidator{}, zap.NewNop())

	updated, err := svc.RegisterSerial(context.Background(), "AA:BB:CC:DD:EE:FF", "SN-001")

	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)
	assert.Equal(t, "SN-001", registry.serials["AA:BB:CC:DD:EE:FF"])
}

func TestRegisterSerial_NilCache(t *testing.T) {
	svc := NewRegistryService(&fakeRegistry{}, &fakeBackfiller{}, nil, zap.NewNop())

	_, err := svc.RegisterSerial(context.Background(), "AA:BB:CC:DD:EE:FF", "SN-001")
	assert.NoError(t, err)
}

func TestGetSerial(t *testing.T) {
	registry := &fakeRegistry{serials: map[string]string{"AA:BB:CC:DD:EE:FF": "SN-001"}}
	svc := NewRegistryService(registry, &fakeBackfiller{}, nil, zap.NewNop())

	serial, err := svc.GetSerial(context.Background(), "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.Equal(t, "SN-001", serial)

	// 未登记设备返回空串而不是错误
	serial, err = svc.GetSerial(context.Background(), "11:22:33:44:55:66")
	require.NoError(t, err)
	assert.Empty(t, serial)
}
