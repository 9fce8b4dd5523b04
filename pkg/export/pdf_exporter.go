package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// GridCell is one occupied slot in a weekly grid.
type GridCell struct {
	Subject string
	Teacher string
	Room    string
}

// ClassGrid is the weekly timetable of a single class: [day][period] -> cell.
type ClassGrid struct {
	ClassName string
	Days      []string
	Periods   int
	Cells     map[int]map[int]GridCell
}

// PDFExporter renders weekly timetable grids, one page per class.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a landscape PDF with one timetable page per class grid.
func (e *PDFExporter) Render(title string, grids []ClassGrid) ([]byte, error) {
	if len(grids) == 0 {
		return nil, fmt.Errorf("pdf requires at least one class grid")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)

	for _, grid := range grids {
		if len(grid.Days) == 0 || grid.Periods <= 0 {
			return nil, fmt.Errorf("grid for %s has no days or periods", grid.ClassName)
		}
		e.renderPage(pdf, title, grid)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) renderPage(pdf *gofpdf.Fpdf, title string, grid ClassGrid) {
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, title, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, grid.ClassName, "", 1, "C", false, 0, "")
	pdf.Ln(3)

	const periodColWidth = 18.0
	cellWidth := (277.0 - periodColWidth) / float64(len(grid.Days))
	const cellHeight = 16.0

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(periodColWidth, 8, "Period", "1", 0, "C", false, 0, "")
	for _, day := range grid.Days {
		pdf.CellFormat(cellWidth, 8, day, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	for p := 0; p < grid.Periods; p++ {
		x, y := pdf.GetXY()
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(periodColWidth, cellHeight, fmt.Sprintf("%d", p+1), "1", 0, "C", false, 0, "")

		pdf.SetFont("Arial", "", 7)
		for d := range grid.Days {
			cx := x + periodColWidth + float64(d)*cellWidth
			pdf.SetXY(cx, y)
			cell, ok := lookupCell(grid.Cells, d, p)
			if !ok {
				pdf.CellFormat(cellWidth, cellHeight, "", "1", 0, "", false, 0, "")
				continue
			}
			pdf.MultiCell(cellWidth, cellHeight/3, fmt.Sprintf("%s\n%s\n%s", cell.Subject, cell.Teacher, cell.Room), "1", "C", false)
		}
		pdf.SetXY(x, y+cellHeight)
	}
}

func lookupCell(cells map[int]map[int]GridCell, day, period int) (GridCell, bool) {
	if cells == nil {
		return GridCell{}, false
	}
	row, ok := cells[day]
	if !ok {
		return GridCell{}, false
	}
	cell, ok := row[period]
	return cell, ok
}
