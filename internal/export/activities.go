package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"timesheet/internal/model"
)

// ReadActivities reads an activity catalogue from the active sheet of an XLSX
// upload. Row 1 is treated as a header; each following row maps column A to
// the activity code and column B to its name. Rows with a blank code are
// skipped.
func ReadActivities(r io.Reader) ([]model.Activity, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	activities := make([]model.Activity, 0)
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		code := strings.TrimSpace(row[0])
		if code == "" {
			continue
		}
		name := ""
		if len(row) > 1 {
			name = strings.TrimSpace(row[1])
		}
		activities = append(activities, model.Activity{Code: code, Name: name})
	}
	return activities, nil
}
