package table

import (
	"io"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders t as a bordered grid on landscape A4 pages, repeating the
// header on each page. Core fonts only cover cp1252, so values are
// translated and unmappable runes are dropped by gofpdf.
func WritePDF(w io.Writer, t Table) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(false, 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := pdf.GetPageSize()
	left, _, right, bottom := pdf.GetMargins()
	colW := (pageW - left - right) / float64(len(Columns))
	const rowH = 7.0

	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range Columns {
			pdf.CellFormat(colW, rowH, c, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}

	pdf.AddPage()
	header()
	for _, row := range t.Rows {
		if pdf.GetY()+rowH > pageH-bottom {
			pdf.AddPage()
			header()
		}
		for _, c := range row {
			pdf.CellFormat(colW, rowH, fit(pdf, tr(c.Value), colW-2), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf.Output(w)
}

// fit truncates s with an ellipsis so it fits within width. s is already
// cp1252, one byte per glyph.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}
