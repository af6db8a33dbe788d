package export

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"timesheet/internal/model"
	"timesheet/internal/report"
)

// XLSXContentType is the media type served with workbook downloads.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// XLSXFilename is the suggested download name for workbook exports.
const XLSXFilename = "activity_report.xlsx"

const sheetName = "Report"

// XLSX renders the report as a single-sheet workbook. The header row is bold
// and centered; hours are written as numbers rounded to two decimals and
// dates as native date cells. Detailed sheets carry a Funds Source column
// between Activity Name and Hours.
func XLSX(rep model.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return nil, err
	}

	headers := xlsxHeaders(rep.Type)
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, err
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle); err != nil {
		return nil, err
	}

	if rep.Type == model.ReportDetailed {
		for i, row := range rep.DetailRows {
			rowNum := i + 2
			dateCell := fmt.Sprintf("A%d", rowNum)
			if err := f.SetCellValue(sheetName, dateCell, row.Entry.Date); err != nil {
				return nil, err
			}
			if err := f.SetCellStyle(sheetName, dateCell, dateCell, dateStyle); err != nil {
				return nil, err
			}

			values := []any{
				report.Clock(row.Entry.Start),
				report.Clock(row.Entry.End),
				row.Entry.Activity.Code,
				row.Entry.Activity.Name,
				fundsSourceName(row.Entry),
				round2(row.Hours),
				row.Entry.Description,
			}
			if err := setRow(f, rowNum, 2, values); err != nil {
				return nil, err
			}
		}
	} else {
		for i, row := range rep.SummaryRows {
			values := []any{
				row.ActivityCode,
				row.ActivityName,
				row.FundsSourceName,
				round2(row.TotalHours),
				row.Entries,
			}
			if err := setRow(f, i+2, 1, values); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func xlsxHeaders(typ model.ReportType) []string {
	if typ == model.ReportDetailed {
		return []string{"Date", "Start Time", "End Time", "Activity Code", "Activity Name", "Funds Source", "Hours", "Description"}
	}
	return []string{"Activity Code", "Activity Name", "Funds Source", "Total Hours", "Entries"}
}

func setRow(f *excelize.File, row, startCol int, values []any) error {
	for i, value := range values {
		cell, err := excelize.CoordinatesToCellName(startCol+i, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, value); err != nil {
			return err
		}
	}
	return nil
}

func fundsSourceName(entry model.TimeEntry) string {
	if entry.FundsSource == nil {
		return ""
	}
	return entry.FundsSource.Name
}

func round2(hours float64) float64 {
	return math.Round(hours*100) / 100
}
