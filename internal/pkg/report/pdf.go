// Package report renders operator-facing reference documents.
package report

import (
	"bytes"
	"sort"
	"strconv"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfContentType = "application/pdf"
	reportTitle    = "Error Codes Reference"
)

// CodeEntry is one row of the error-codes reference sheet.
type CodeEntry struct {
	Code       string
	Type       string
	Blocking   string
	HTTPStatus int
}

// ErrorCodesPDF renders the registered error codes as a PDF reference
// sheet for operators.
func ErrorCodesPDF(entries []CodeEntry) ([]byte, error) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Code < entries[j].Code })

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, reportTitle)
	pdf.Ln(14)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(80, 8, "Code", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, "Type", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, "Blocking", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 8, "HTTP", "1", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, e := range entries {
		pdf.CellFormat(80, 7, e.Code, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, e.Type, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, e.Blocking, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, strconv.Itoa(e.HTTPStatus), "1", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentType returns the MIME type of the rendered report.
func ContentType() string {
	return pdfContentType
}
