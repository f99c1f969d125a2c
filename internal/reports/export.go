package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Work Items"

// ExportXLSX returns an XLSX workbook (as bytes) with one row per matching work item,
// newest first.
func (s *Service) ExportXLSX(ctx context.Context, q Query) ([]byte, error) {
	start := time.Now()

	views, err := s.items(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query work items: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if index, _ := f.GetSheetIndex(exportSheet); index == -1 {
		if _, err := f.NewSheet(exportSheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(exportSheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"Job ID",
		"Customer",
		"Sub Job",
		"Description",
		"Process",
		"Status",
		"Employee Code",
		"Updated At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}

	row := 2
	for _, v := range views {
		write := func(col int, val any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(exportSheet, cell, val)
		}
		actor := ""
		if v.EmployeeCode != nil {
			actor = *v.EmployeeCode
		}
		write(1, v.JobID)
		write(2, v.CustomerName)
		write(3, v.SubJobID)
		write(4, truncate(v.SubJobDescription, 140))
		write(5, v.ProcessName)
		write(6, string(v.Status))
		write(7, actor)
		write(8, v.UpdatedAt.UTC().Format("2006-01-02 15:04"))
		row++
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 14)
	_ = f.SetColWidth(exportSheet, "B", "B", 28)
	_ = f.SetColWidth(exportSheet, "C", "C", 10)
	_ = f.SetColWidth(exportSheet, "D", "D", 48)
	_ = f.SetColWidth(exportSheet, "E", "E", 20)
	_ = f.SetColWidth(exportSheet, "F", "G", 14)
	_ = f.SetColWidth(exportSheet, "H", "H", 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"status", q.Status,
		"rows", len(views),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
