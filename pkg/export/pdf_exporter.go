package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth = 277.0
	pdfRowHeight = 7.0
)

// PDFExporter renders datasets into a landscape tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with the dataset title, notes and table.
// Highlighted rows are shaded.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate("pdf"); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, data.Title, "", 1, "L", false, 0, "")
	}
	if len(data.Notes) > 0 {
		pdf.SetFont("Arial", "", 9)
		for _, note := range data.Notes {
			pdf.CellFormat(0, 5, note, "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)
	}

	widths := columnWidths(data)
	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(225, 235, 245)
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	pdf.SetFillColor(250, 220, 215)
	for i, row := range data.Rows {
		if pdf.GetY()+pdfRowHeight > pageHeight-bottom {
			pdf.AddPage()
			header()
			pdf.SetFillColor(250, 220, 215)
		}
		fill := data.Highlight[i]
		for j, value := range row {
			pdf.CellFormat(widths[j], pdfRowHeight, value, "1", 0, "", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths shares the page width proportionally to the longest cell of
// each column, with a floor so short columns stay readable.
func columnWidths(data Dataset) []float64 {
	weights := make([]float64, len(data.Headers))
	for i, h := range data.Headers {
		weights[i] = float64(len(h))
	}
	for _, row := range data.Rows {
		for i, value := range row {
			if l := float64(len(value)); l > weights[i] {
				weights[i] = l
			}
		}
	}
	var total float64
	for i := range weights {
		if weights[i] < 6 {
			weights[i] = 6
		}
		total += weights[i]
	}
	widths := make([]float64, len(weights))
	for i, w := range weights {
		widths[i] = pdfPageWidth * w / total
	}
	return widths
}
