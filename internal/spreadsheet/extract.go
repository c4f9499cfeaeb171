package spreadsheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"bizlens/internal/chunking"
)

// ExtractPages reads an XLSX workbook and renders every sheet as
// token-bounded text pages: the sheet's header row is repeated atop each
// section so no section loses its column labels. Page numbers are assigned
// sequentially across sheets in workbook order.
func ExtractPages(r io.Reader, p Packer) ([]chunking.Page, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	var pages []chunking.Page
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", sheetName, err)
		}

		header, dataRows := splitHeader(rows)
		sections := p.Pack(dataRows)
		for _, sec := range sections {
			pages = append(pages, chunking.Page{
				PageNumber: len(pages) + 1,
				Text:       renderSection(sheetName, header, sec),
			})
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return pages, nil
}

// splitHeader renders rows as tab-joined lines, treating the first
// non-blank row as the header.
func splitHeader(rows [][]string) (header string, dataRows []string) {
	for _, row := range rows {
		line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
		if header == "" && strings.TrimSpace(line) != "" {
			header = line
			continue
		}
		dataRows = append(dataRows, line)
	}
	return header, dataRows
}

func renderSection(sheetName, header string, sec Section) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Sheet: %s\n", sheetName)
	if header != "" {
		sb.WriteString(header)
		sb.WriteString("\n")
	}
	if sec.Placeholder {
		sb.WriteString("(no data rows)")
		return sb.String()
	}
	sb.WriteString(strings.Join(sec.Rows, "\n"))
	return sb.String()
}
