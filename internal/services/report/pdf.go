package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/stockgrader/internal/common"
)

const (
	pageWidth     = 190.0
	pageHeight    = 297.0
	pageMargin    = 10.0
	bodyFontSize  = 10.0
	tableFontSize = 9.0
	lineHeight    = 5.0
)

// convertMarkdownToPDF renders markdown onto A4 pages.
// Korean text needs a UTF-8 font; without report.font_path the core Arial
// font is used and unsupported characters are replaced.
func convertMarkdownToPDF(markdown, title string, config *common.ReportConfig, logger arbor.ILogger) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)

	family := "Arial"
	translate := pdf.UnicodeTranslatorFromDescriptor("")
	if config != nil && config.FontPath != "" {
		family = config.FontFamily
		if family == "" {
			family = "NanumGothic"
		}
		for _, style := range []string{"", "B", "I", "BI"} {
			pdf.AddUTF8Font(family, style, config.FontPath)
		}
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("failed to load PDF font %s: %w", config.FontPath, err)
		}
		translate = func(s string) string { return s }
	}

	pdf.SetTitle(title+" 종합 분석 리포트", true)
	pdf.SetCreator("StockGrader "+common.GetVersion(), true)
	pdf.AddPage()
	pdf.SetFont(family, "", bodyFontSize)

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	r := &pdfRenderer{
		pdf:       pdf,
		source:    source,
		family:    family,
		translate: translate,
		size:      bodyFontSize,
	}
	if err := ast.Walk(doc, r.walk); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		logger.Error().Err(err).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	family    string
	translate func(string) string
	size      float64
	bold      bool
	italic    bool
	listLevel int
	ordinal   []int
}

func (r *pdfRenderer) applyFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(r.family, style, r.size)
}

func (r *pdfRenderer) write(s string) {
	r.pdf.Write(lineHeight, r.translate(s))
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		r.heading(node, entering)
	case *ast.Paragraph:
		if !entering && r.listLevel == 0 {
			r.pdf.Ln(lineHeight + 2)
		}
	case *ast.Text:
		if entering {
			r.write(string(node.Segment.Value(r.source)))
			if node.SoftLineBreak() {
				r.write(" ")
			}
			if node.HardLineBreak() {
				r.pdf.Ln(lineHeight)
			}
		}
	case *ast.String:
		if entering {
			r.write(string(node.Value))
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.applyFont()
	case *ast.Link:
		if entering {
			r.link(node)
			return ast.WalkSkipChildren, nil
		}
	case *ast.List:
		r.list(node, entering)
	case *ast.ListItem:
		if entering {
			r.listItem()
		}
	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(pageMargin, r.pdf.GetY(), pageMargin+pageWidth, r.pdf.GetY())
			r.pdf.Ln(2)
		}
	case *extast.Table:
		if entering {
			r.renderTable(r.tableRows(node))
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) heading(n *ast.Heading, entering bool) {
	if !entering {
		r.pdf.Ln(lineHeight + 3)
		r.applyFont()
		return
	}

	size := 11.0
	switch n.Level {
	case 1:
		size = 16
	case 2:
		size = 13
	}
	r.pdf.Ln(3)
	r.pdf.SetFont(r.family, "B", size)
}

func (r *pdfRenderer) link(n *ast.Link) {
	label := string(n.Text(r.source))
	if label == "" {
		label = string(n.Destination)
	}
	r.pdf.SetTextColor(30, 80, 160)
	r.pdf.WriteLinkString(lineHeight, r.translate(label), string(n.Destination))
	r.pdf.SetTextColor(0, 0, 0)
}

func (r *pdfRenderer) list(n *ast.List, entering bool) {
	if entering {
		r.listLevel++
		start := 0
		if n.IsOrdered() {
			start = n.Start
		}
		r.ordinal = append(r.ordinal, start)
		return
	}

	r.listLevel--
	r.ordinal = r.ordinal[:len(r.ordinal)-1]
	r.pdf.Ln(lineHeight)
	if r.listLevel == 0 {
		r.pdf.Ln(2)
	}
}

func (r *pdfRenderer) listItem() {
	if r.pdf.GetX() > pageMargin+0.5 {
		r.pdf.Ln(lineHeight)
	}
	r.pdf.SetX(pageMargin + float64(r.listLevel)*5)

	level := len(r.ordinal) - 1
	if level >= 0 && r.ordinal[level] > 0 {
		r.write(fmt.Sprintf("%d. ", r.ordinal[level]))
		r.ordinal[level]++
		return
	}
	r.write("- ")
}

func (r *pdfRenderer) tableRows(n *extast.Table) [][]string {
	var rows [][]string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.(type) {
		case *extast.TableHeader, *extast.TableRow:
			var row []string
			for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
				row = append(row, string(cell.Text(r.source)))
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func (r *pdfRenderer) renderTable(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}
	cols := len(rows[0])
	widths := r.columnWidths(rows, cols)

	r.pdf.Ln(1)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		r.pdf.SetFont(r.family, style, tableFontSize)

		lines := make([][]string, cols)
		height := 1
		for j := 0; j < cols && j < len(row); j++ {
			lines[j] = r.wrap(row[j], widths[j]-2)
			if len(lines[j]) > height {
				height = len(lines[j])
			}
		}
		rowHeight := float64(height)*(lineHeight-1) + 2

		y := r.pdf.GetY()
		if y+rowHeight > pageHeight-pageMargin {
			r.pdf.AddPage()
			y = r.pdf.GetY()
		}

		x := pageMargin
		for j := 0; j < cols; j++ {
			if i == 0 {
				r.pdf.SetFillColor(235, 235, 235)
				r.pdf.Rect(x, y, widths[j], rowHeight, "FD")
			} else {
				r.pdf.Rect(x, y, widths[j], rowHeight, "D")
			}
			for k, line := range lines[j] {
				r.pdf.SetXY(x+1, y+1+float64(k)*(lineHeight-1))
				r.pdf.CellFormat(widths[j]-2, lineHeight-1, line, "", 0, "L", false, 0, "")
			}
			x += widths[j]
		}
		r.pdf.SetXY(pageMargin, y+rowHeight)
	}

	r.pdf.SetFillColor(255, 255, 255)
	r.pdf.Ln(3)
	r.applyFont()
}

// columnWidths sizes columns by content, then scales them to the page width
func (r *pdfRenderer) columnWidths(rows [][]string, cols int) []float64 {
	widths := make([]float64, cols)
	r.pdf.SetFont(r.family, "B", tableFontSize)
	for _, row := range rows {
		for j := 0; j < cols && j < len(row); j++ {
			w := r.pdf.GetStringWidth(r.translate(row[j])) + 4
			if w > widths[j] {
				widths[j] = w
			}
		}
	}

	total := 0.0
	for j := range widths {
		if widths[j] < 15 {
			widths[j] = 15
		}
		total += widths[j]
	}
	scale := pageWidth / total
	for j := range widths {
		widths[j] *= scale
	}
	return widths
}

// wrap splits text into translated lines that fit width at the current font
func (r *pdfRenderer) wrap(s string, width float64) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current := ""
	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if current != "" && r.pdf.GetStringWidth(r.translate(candidate)) > width {
			lines = append(lines, r.translate(current))
			current = word
			continue
		}
		current = candidate
	}
	return append(lines, r.translate(current))
}
