package stats

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Visit Trends"

// writeTrendWorkbook renders the series into an xlsx workbook: one row per
// day plus a bar chart over the full range.
func writeTrendWorkbook(path string, series []VisitCount) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetCellValue(sheetName, "A1", "Date"); err != nil {
		f.Close()
		return err
	}
	if err := f.SetCellValue(sheetName, "B1", "Visits"); err != nil {
		f.Close()
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", "B1", headerStyle); err != nil {
		f.Close()
		return fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(sheetName, "A", "A", 14); err != nil {
		f.Close()
		return err
	}

	for i, point := range series {
		row := i + 2
		if err := f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), point.Date); err != nil {
			f.Close()
			return err
		}
		if err := f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), point.Count); err != nil {
			f.Close()
			return err
		}
	}

	if len(series) > 0 {
		lastRow := len(series) + 1
		chart := &excelize.Chart{
			Type: excelize.Col,
			Series: []excelize.ChartSeries{
				{
					Name:       fmt.Sprintf("'%s'!$B$1", sheetName),
					Categories: fmt.Sprintf("'%s'!$A$2:$A$%d", sheetName, lastRow),
					Values:     fmt.Sprintf("'%s'!$B$2:$B$%d", sheetName, lastRow),
				},
			},
			Title: []excelize.RichTextRun{
				{Text: "Daily Visits"},
			},
		}
		if err := f.AddChart(sheetName, "D2", chart); err != nil {
			f.Close()
			return fmt.Errorf("failed to add chart: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
