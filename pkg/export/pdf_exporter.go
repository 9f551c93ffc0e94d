package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Sheet describes a single-record document such as an enrollment form.
type Sheet struct {
	Title    string
	Subtitle string
	Sections []SheetSection
	Images   []SheetImage
	Footer   string
}

// SheetSection is a titled block of label/value pairs.
type SheetSection struct {
	Heading string
	Fields  []SheetField
}

// SheetField is one labelled value.
type SheetField struct {
	Label string
	Value string
}

// SheetImage is an embedded picture. Type is "JPG" or "PNG".
type SheetImage struct {
	Label string
	Type  string
	Data  []byte
}

// PDFExporter renders datasets and sheets into PDF documents.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a landscape PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(title)), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	colWidth := 277.0 / float64(len(data.Headers))
	writeHeader := func() {
		pdf.SetFont("Arial", "B", 8)
		pdf.SetFillColor(230, 230, 230)
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, tr(header), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 7)
	}
	writeHeader()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range data.Rows {
		if pdf.GetY()+6 > pageHeight-bottom {
			pdf.AddPage()
			writeHeader()
		}
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 6, tr(truncate(row[header], 40)), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderSheet lays out a portrait form with sections followed by an image grid.
func (e *PDFExporter) RenderSheet(sheet Sheet) ([]byte, error) {
	if len(sheet.Sections) == 0 {
		return nil, fmt.Errorf("sheet requires at least one section")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 15)
	pdf.CellFormat(0, 9, tr(sheet.Title), "", 1, "C", false, 0, "")
	if sheet.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(sheet.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	for _, section := range sheet.Sections {
		pdf.SetFont("Arial", "B", 11)
		pdf.SetFillColor(220, 230, 241)
		pdf.CellFormat(0, 7, tr(section.Heading), "", 1, "L", true, 0, "")
		pdf.Ln(1)
		for _, field := range section.Fields {
			pdf.SetFont("Arial", "B", 9)
			pdf.CellFormat(55, 6, tr(field.Label+":"), "", 0, "L", false, 0, "")
			pdf.SetFont("Arial", "", 9)
			pdf.MultiCell(0, 6, tr(valueOrDash(field.Value)), "", "L", false)
		}
		pdf.Ln(3)
	}

	if len(sheet.Images) > 0 {
		if err := e.renderImages(pdf, tr, sheet.Images); err != nil {
			return nil, err
		}
	}

	if sheet.Footer != "" {
		pdf.Ln(4)
		pdf.SetFont("Arial", "I", 8)
		pdf.MultiCell(0, 5, tr(sheet.Footer), "", "C", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render sheet: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) renderImages(pdf *gofpdf.Fpdf, tr func(string) string, images []SheetImage) error {
	const (
		cellW = 85.0
		cellH = 55.0
		gap   = 10.0
	)
	left, _, _, _ := pdf.GetMargins()
	_, pageHeight := pdf.GetPageSize()

	for i, img := range images {
		col := i % 2
		if col == 0 && pdf.GetY()+cellH+8 > pageHeight-15 {
			pdf.AddPage()
		}
		x := left + float64(col)*(cellW+gap)
		y := pdf.GetY()

		name := fmt.Sprintf("img-%d", i)
		opts := gofpdf.ImageOptions{ImageType: img.Type, ReadDpi: false}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("register image %s: %w", img.Label, err)
		}
		pdf.SetFont("Arial", "B", 8)
		pdf.SetXY(x, y)
		pdf.CellFormat(cellW, 5, tr(img.Label), "", 0, "L", false, 0, "")
		pdf.ImageOptions(name, x, y+6, cellW, 0, false, opts, 0, "")
		if col == 1 || i == len(images)-1 {
			pdf.SetXY(left, y+cellH+8)
		}
	}
	return pdf.Error()
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
