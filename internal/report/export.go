package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	dailySheet  = "Daily"
	personSheet = "Persons"
)

// ExportAttendance renders an attendance report as an xlsx workbook with one sheet per summary.
// It returns the workbook and a suggested file name.
func ExportAttendance(rep AttendanceReport) (*bytes.Buffer, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(dailySheet)
	if err != nil {
		return nil, "", fmt.Errorf("create sheet -> %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, "", fmt.Errorf("delete default sheet -> %w", err)
	}
	if _, err := f.NewSheet(personSheet); err != nil {
		return nil, "", fmt.Errorf("create sheet -> %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, "", fmt.Errorf("create style -> %w", err)
	}

	daily := [][]any{{"Date", "Total scans", "Successful", "Failed", "Entries", "Exits"}}
	for _, d := range rep.DailySummary {
		daily = append(daily, []any{d.Date, d.TotalScans, d.Successful, d.Failed, d.Entries, d.Exits})
	}
	persons := [][]any{{"ID", "Surname", "Given name", "Type", "Total scans", "Successful", "Entries", "First scan", "Last scan"}}
	for _, p := range rep.PersonSummary {
		persons = append(persons, []any{
			p.ID, p.Surname, p.GivenName, p.Type, p.TotalScans, p.SuccessfulScans, p.Entries,
			p.FirstScan.Format("2006-01-02 15:04:05"), p.LastScan.Format("2006-01-02 15:04:05"),
		})
	}

	for sheet, rows := range map[string][][]any{dailySheet: daily, personSheet: persons} {
		for i, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return nil, "", fmt.Errorf("write %s row %d -> %w", sheet, i+1, err)
			}
		}
		last, _ := excelize.ColumnNumberToName(len(rows[0]))
		_ = f.SetCellStyle(sheet, "A1", last+"1", headerStyle)
		_ = f.SetColWidth(sheet, "A", last, 16)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("write workbook -> %w", err)
	}
	return buf, fmt.Sprintf("attendance_%s_%s.xlsx", rep.StartDate, rep.EndDate), nil
}
