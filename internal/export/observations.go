// Package export writes observation record lists as spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"tomobs/internal/models"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

const (
	observationsSheet = "Observations"
	infoSheet         = "Info"
	timeLayout        = "2006-01-02 15:04:05"
)

var headers = []string{"ID", "Target", "Facility", "Observation ID", "Status", "URL", "Created", "Modified"}

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (f Format) Filename() string {
	return "observations." + string(f)
}

// URLFunc returns the facility link of a record, or "" when it has none.
type URLFunc func(record models.ObservationRecord) string

// Observations writes records to w in the given format.
func Observations(w io.Writer, format Format, records []models.ObservationRecord, urlFor URLFunc) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, records, urlFor)
	case FormatXLSX:
		return writeXLSX(w, records, urlFor)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

func row(record models.ObservationRecord, urlFor URLFunc) []string {
	target := ""
	if record.Target != nil {
		target = record.Target.Name
	}
	url := ""
	if urlFor != nil {
		url = urlFor(record)
	}
	return []string{
		strconv.FormatUint(uint64(record.ID), 10),
		target,
		record.Facility,
		record.ObservationID,
		record.Status,
		url,
		record.CreatedAt.UTC().Format(timeLayout),
		record.UpdatedAt.UTC().Format(timeLayout),
	}
}

func writeCSV(w io.Writer, records []models.ObservationRecord, urlFor URLFunc) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	for _, record := range records {
		if err := cw.Write(row(record, urlFor)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, records []models.ObservationRecord, urlFor URLFunc) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", observationsSheet); err != nil {
		return err
	}

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(observationsSheet, cell, header)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		f.SetCellStyle(observationsSheet, "A1", "H1", headerStyle)
	}

	for rowIdx, record := range records {
		rowNum := rowIdx + 2
		values := row(record, urlFor)

		f.SetCellValue(observationsSheet, fmt.Sprintf("A%d", rowNum), record.ID)
		for col := 1; col < len(values); col++ {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
			f.SetCellValue(observationsSheet, cell, values[col])
		}
		if values[5] != "" {
			cell := fmt.Sprintf("F%d", rowNum)
			f.SetCellHyperLink(observationsSheet, cell, values[5], "External")
		}
	}

	for i := 1; i <= len(headers); i++ {
		colName, _ := excelize.ColumnNumberToName(i)
		f.SetColWidth(observationsSheet, colName, colName, 20)
	}

	if err := writeInfoSheet(f, records); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

// writeInfoSheet adds the generation time and per-status counts.
func writeInfoSheet(f *excelize.File, records []models.ObservationRecord) error {
	if _, err := f.NewSheet(infoSheet); err != nil {
		return err
	}

	f.SetCellValue(infoSheet, "A1", "Report Generated")
	f.SetCellValue(infoSheet, "B1", time.Now().UTC().Format(timeLayout))
	f.SetCellValue(infoSheet, "A2", "Total Records")
	f.SetCellValue(infoSheet, "B2", len(records))

	counts := make(map[string]int)
	for _, r := range records {
		status := r.Status
		if status == "" {
			status = "(none)"
		}
		counts[status]++
	}
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	rowNum := 4
	f.SetCellValue(infoSheet, fmt.Sprintf("A%d", rowNum), "Status")
	f.SetCellValue(infoSheet, fmt.Sprintf("B%d", rowNum), "Records")
	for _, status := range statuses {
		rowNum++
		f.SetCellValue(infoSheet, fmt.Sprintf("A%d", rowNum), status)
		f.SetCellValue(infoSheet, fmt.Sprintf("B%d", rowNum), counts[status])
	}
	return nil
}
