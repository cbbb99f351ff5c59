package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets and Markdown narratives into PDF documents.
// When a UTF-8 capable TTF font is configured it is registered so CJK report
// text renders correctly; otherwise the built-in Arial core font is used.
type PDFExporter struct {
	fontPath string
	fontName string
}

// NewPDFExporter constructs a PDF exporter. fontPath may be empty.
func NewPDFExporter(fontPath string) *PDFExporter {
	return &PDFExporter{fontPath: fontPath, fontName: "Arial"}
}

func (e *PDFExporter) newDocument() (*gofpdf.Fpdf, string) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	font := e.fontName
	if e.fontPath != "" {
		pdf.AddUTF8Font("report", "", e.fontPath)
		pdf.AddUTF8Font("report", "B", e.fontPath)
		font = "report"
	}
	pdf.AddPage()
	return pdf, font
}

// RenderTable creates a PDF document with an optional title and table body.
func (e *PDFExporter) RenderTable(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf, font := e.newDocument()

	if title != "" {
		pdf.SetFont(font, "B", 14)
		pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont(font, "B", 10)
	colWidth := 190.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(font, "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			value := row[header]
			pdf.CellFormat(colWidth, 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderMarkdown lays out a Markdown narrative as a flowing PDF document.
// Only the subset emitted by the report generator is understood: headings,
// bullet items, and paragraphs. Unknown markup degrades to plain text.
func (e *PDFExporter) RenderMarkdown(markdown, title string) ([]byte, error) {
	pdf, font := e.newDocument()

	if title != "" {
		pdf.SetFont(font, "B", 16)
		pdf.MultiCell(0, 9, title, "", "C", false)
		pdf.Ln(4)
	}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			pdf.Ln(3)
		case strings.HasPrefix(trimmed, "### "):
			pdf.SetFont(font, "B", 11)
			pdf.MultiCell(0, 7, strings.TrimPrefix(trimmed, "### "), "", "", false)
		case strings.HasPrefix(trimmed, "## "):
			pdf.SetFont(font, "B", 12)
			pdf.MultiCell(0, 7, strings.TrimPrefix(trimmed, "## "), "", "", false)
		case strings.HasPrefix(trimmed, "# "):
			pdf.SetFont(font, "B", 14)
			pdf.MultiCell(0, 8, strings.TrimPrefix(trimmed, "# "), "", "", false)
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			pdf.SetFont(font, "", 10)
			pdf.MultiCell(0, 6, "  • "+trimmed[2:], "", "", false)
		default:
			pdf.SetFont(font, "", 10)
			pdf.MultiCell(0, 6, stripEmphasis(trimmed), "", "", false)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func stripEmphasis(line string) string {
	line = strings.ReplaceAll(line, "**", "")
	return strings.ReplaceAll(line, "__", "")
}
