package models

import "fmt"

// StatusTable 报警码 → 可读描述的静态查询表。
// 启动时构造一次、按依赖注入传递，不做全局变量；库里只存原始整数码。
type StatusTable struct {
	codes map[int]string
}

// DefaultStatusCodes 设备固件上报的标准报警码
func DefaultStatusCodes() map[int]string {
	return map[int]string{
		0: "normal",
		1: "mains power failure",
		2: "battery low",
		3: "high temperature",
		4: "fan failure",
		5: "enclosure opened",
		6: "signal weak",
		7: "storage full",
	}
}

// NewStatusTable 拷贝给定映射构造查询表，构造后不可变
func NewStatusTable(codes map[int]string) *StatusTable {
	m := make(map[int]string, len(codes))
	for k, v := range codes {
		m[k] = v
	}
	return &StatusTable{codes: m}
}

// Describe 返回报警码的可读描述；未知码返回 unknown(N)，不报错
func (t *StatusTable) Describe(code int) string {
	if d, ok := t.codes[code]; ok {
		return d
	}
	return fmt.Sprintf("unknown(%d)", code)
}
