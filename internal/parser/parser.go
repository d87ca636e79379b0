package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"alarmtrail/internal/models"
)

// ErrMalformedEvent 无法解析的报警报文。报文只丢弃并记日志，通道不支持重投。
var ErrMalformedEvent = errors.New("malformed alarm event")

// 报文字段固定顺序：<date> <time> <mac> <ip> <flag> <code> <counter>
// 末尾 counter 字段设备自增用，这里不解析；多余的尾部字段忽略。
const minFields = 7

const timeLayout = "2006-01-02 15:04:05"

// FixedOffset 解析 "+08:00" / "-05:30" 形式的固定时区偏移。
// 报文里的时间不带时区，统一按部署配置的偏移解释。
func FixedOffset(offset string) (*time.Location, error) {
	if offset == "" {
		return time.UTC, nil
	}
	if len(offset) != 6 || (offset[0] != '+' && offset[0] != '-') || offset[3] != ':' {
		return nil, fmt.Errorf("invalid zone offset %q, want +HH:MM or -HH:MM", offset)
	}
	hh, err := strconv.Atoi(offset[1:3])
	if err != nil || hh > 23 {
		return nil, fmt.Errorf("invalid zone offset hours in %q", offset)
	}
	mm, err := strconv.Atoi(offset[4:6])
	if err != nil || mm > 59 {
		return nil, fmt.Errorf("invalid zone offset minutes in %q", offset)
	}
	secs := hh*3600 + mm*60
	if offset[0] == '-' {
		secs = -secs
	}
	return time.FixedZone(offset, secs), nil
}

// Parser 报警报文解析器。纯转换，无状态，不触存储。
type Parser struct {
	loc *time.Location
}

// NewParser loc 为事件时间戳的固定时区
func NewParser(loc *time.Location) *Parser {
	return &Parser{loc: loc}
}

// Parse 把一行报文解析为 AlarmEvent
func (p *Parser) Parse(raw string) (*models.AlarmEvent, error) {
	fields := strings.Fields(raw)
	if len(fields) < minFields {
		return nil, fmt.Errorf("%w: got %d fields, want %d", ErrMalformedEvent, len(fields), minFields)
	}

	occurredAt, err := time.ParseInLocation(timeLayout, fields[0]+" "+fields[1], p.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp %q: %v", ErrMalformedEvent, fields[0]+" "+fields[1], err)
	}

	flag, err := strconv.Atoi(fields[4])
	if err != nil {
		return nil, fmt.Errorf("%w: bad transition flag %q: %v", ErrMalformedEvent, fields[4], err)
	}
	if flag != 0 && flag != 1 {
		return nil, fmt.Errorf("%w: transition flag %d out of range", ErrMalformedEvent, flag)
	}

	code, err := strconv.Atoi(fields[5])
	if err != nil {
		return nil, fmt.Errorf("%w: bad status code %q: %v", ErrMalformedEvent, fields[5], err)
	}
	if code < 0 {
		return nil, fmt.Errorf("%w: negative status code %d", ErrMalformedEvent, code)
	}

	return &models.AlarmEvent{
		OccurredAt: occurredAt,
		DeviceMac:  fields[2],
		DeviceIp:   fields[3],
		Transition: models.Transition(flag),
		Code:       code,
	}, nil
}
