// Package export renders a generated report as a downloadable PDF or XLSX
// byte stream, and reads activity catalogues back out of XLSX uploads. Both
// encoders take their numbers straight from the report, so exports match the
// page bit for bit.
package export

import (
	"bytes"
	"strconv"

	"github.com/go-pdf/fpdf"

	"timesheet/internal/model"
	"timesheet/internal/report"
)

// PDFContentType is the media type served with PDF downloads.
const PDFContentType = "application/pdf"

// PDFFilename is the suggested download name for PDF exports.
const PDFFilename = "activity_report.pdf"

// PDF renders the report as a paginated document: title, period line and a
// bordered table. Detailed reports use landscape pages to fit seven columns.
func PDF(rep model.Report) ([]byte, error) {
	orientation := "P"
	if rep.Type == model.ReportDetailed {
		orientation = "L"
	}

	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, rep.Title, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 8, rep.PeriodDetail, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	headers, widths := pdfLayout(rep.Type)

	pdf.SetFont("Helvetica", "B", 10)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, cells := range pdfRows(rep) {
		for i, cell := range cells {
			pdf.CellFormat(widths[i], 7, cell, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "Total hours: "+report.FormatHours(rep.TotalHours), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Entries: "+strconv.Itoa(rep.TotalEntries), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Average hours per entry: "+report.FormatHours(rep.AverageHours), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pdfLayout(typ model.ReportType) ([]string, []float64) {
	if typ == model.ReportDetailed {
		return []string{"Date", "Start Time", "End Time", "Activity Code", "Activity Name", "Hours", "Description"},
			[]float64{26, 24, 24, 30, 60, 20, 83}
	}
	return []string{"Activity Code", "Activity Name", "Funds Source", "Total Hours", "Entries"},
		[]float64{30, 65, 50, 25, 20}
}

func pdfRows(rep model.Report) [][]string {
	if rep.Type == model.ReportDetailed {
		rows := make([][]string, 0, len(rep.DetailRows))
		for _, row := range rep.DetailRows {
			rows = append(rows, []string{
				row.Entry.Date.Format("2006-01-02"),
				report.Clock(row.Entry.Start),
				report.Clock(row.Entry.End),
				row.Entry.Activity.Code,
				row.Entry.Activity.Name,
				report.FormatHours(row.Hours),
				row.Entry.Description,
			})
		}
		return rows
	}

	rows := make([][]string, 0, len(rep.SummaryRows))
	for _, row := range rep.SummaryRows {
		rows = append(rows, []string{
			row.ActivityCode,
			row.ActivityName,
			row.FundsSourceName,
			report.FormatHours(row.TotalHours),
			strconv.Itoa(row.Entries),
		})
	}
	return rows
}
