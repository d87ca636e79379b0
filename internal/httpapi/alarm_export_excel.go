package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// AlarmExportHeader 告警记录导出表头
var AlarmExportHeader = []string{
	"Record ID",
	"Started At",
	"Stopped At",
	"Device MAC",
	"Device IP",
	"Code",
	"Description",
	"State",
	"Serial",
}

// GenerateAlarmExport 生成告警记录导出 Excel 文件
// data: 告警记录视图列表，为空时只生成表头
func GenerateAlarmExport(data []map[string]any) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	sheetName := "Alarm Records"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	// 设置表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 写入表头
	for col, header := range AlarmExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	// 设置列宽
	columnWidths := []float64{
		38, // Record ID
		20, // Started At
		20, // Stopped At
		20, // Device MAC
		16, // Device IP
		8,  // Code
		24, // Description
		10, // State
		20, // Serial
	}
	for i := 0; i < len(AlarmExportHeader); i++ {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if i < len(columnWidths) && columnWidths[i] > 0 {
			if err := f.SetColWidth(sheetName, col, col, columnWidths[i]); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}

	// 写入数据
	for rowIdx, item := range data {
		row := rowIdx + 2 // 从第2行开始（第1行是表头）
		colIdx := 0

		for _, header := range AlarmExportHeader {
			colIdx++
			var value any

			switch header {
			case "Record ID":
				value = getStringValue(item, "id")
			case "Started At":
				value = getTimeValue(item, "started_at")
			case "Stopped At":
				value = getTimeValue(item, "stopped_at")
			case "Device MAC":
				value = getStringValue(item, "device_mac")
			case "Device IP":
				value = getStringValue(item, "device_ip")
			case "Code":
				value = item["code"]
			case "Description":
				value = getStringValue(item, "description")
			case "State":
				value = getStringValue(item, "state")
			case "Serial":
				value = getStringValue(item, "serial")
			}

			if value != nil && value != "" {
				if err := setCellValue(f, sheetName, colIdx, row, value); err != nil {
					f.Close()
					return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, colIdx, err)
				}
			}
		}
	}

	// 冻结表头
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return buf.Bytes(), nil
}

// setCellValue 设置单元格值
func setCellValue(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

// getStringValue 从 map 中获取字符串值
func getStringValue(item map[string]any, key string) string {
	if val, ok := item[key].(string); ok && val != "" {
		return val
	}
	return ""
}

// getTimeValue 从 map 中获取时间值并格式化为字符串
func getTimeValue(item map[string]any, key string) string {
	if val, ok := item[key].(string); ok && val != "" {
		return val
	}
	if val, ok := item[key].(time.Time); ok {
		return val.Format("2006-01-02 15:04:05")
	}
	return ""
}
