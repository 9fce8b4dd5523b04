package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// TimetableRow is one scheduled lesson in the flat CSV export.
type TimetableRow struct {
	Class   string
	Subject string
	Teacher string
	Room    string
	Day     string
	Period  int
}

var csvHeader = []string{"Class", "Subject", "Teacher", "Room", "Day", "Period"}

// CSVExporter renders the flat assignment list, one record per lesson.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV bytes with a fixed header row. Periods are 1-based in
// the output.
func (e *CSVExporter) Render(rows []TimetableRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Class,
			row.Subject,
			row.Teacher,
			row.Room,
			row.Day,
			strconv.Itoa(row.Period + 1),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
