package models

import (
	"time"
)

// Transition 事件迁移类型（报文 flag 字段：0=clear，1=raise）
type Transition int

const (
	TransitionClear Transition = 0
	TransitionRaise Transition = 1
)

// String 日志用
func (t Transition) String() string {
	switch t {
	case TransitionClear:
		return "CLEAR"
	case TransitionRaise:
		return "RAISE"
	default:
		return "UNKNOWN"
	}
}

// AlarmEvent 单条报警消息的解析结果（瞬态，不落库）
type AlarmEvent struct {
	OccurredAt time.Time  `json:"occurred_at"`
	DeviceMac  string     `json:"device_mac"`
	DeviceIp   string     `json:"device_ip"`
	Transition Transition `json:"transition"`
	Code       int        `json:"code"` // 0 表示无报警
}

// RecordState 记录状态：OPEN 进行中（无 stopped_at），CLOSED 已结束。
// 状态机只允许 OPEN → CLOSED，不允许重新打开。
type RecordState string

const (
	RecordOpen   RecordState = "OPEN"
	RecordClosed RecordState = "CLOSED"
)

// AlarmRecord 报警记录（对应 alarm_records 表）
type AlarmRecord struct {
	ID        string     `json:"id" db:"id"`
	StartedAt time.Time  `json:"started_at" db:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty" db:"stopped_at"`
	DeviceMac string     `json:"device_mac" db:"device_mac"`
	DeviceIp  string     `json:"device_ip" db:"device_ip"`
	Code      int        `json:"code" db:"code"` // 原始整数码，描述仅在展示层解析
	Active    bool       `json:"active" db:"active"`
	Serial    *string    `json:"serial,omitempty" db:"serial"` // 设备登记表的反规范化副本
}

// State stopped_at 未设置视为 OPEN
func (r *AlarmRecord) State() RecordState {
	if r.StoppedAt == nil {
		return RecordOpen
	}
	return RecordClosed
}

// DeviceRegistration 设备登记（对应 device_registry 表）
type DeviceRegistration struct {
	DeviceMac string    `json:"device_mac" db:"device_mac"`
	Serial    string    `json:"serial" db:"serial"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
