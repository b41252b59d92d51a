package loader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/xuri/excelize/v2"

	"docqa/internal/domain"
)

const missingCell = "NaN"

var errEmptySheet = errors.New("first sheet has no data rows")

// loadSpreadsheet renders the first sheet of a workbook as one aligned text
// table: the first row is the header, each data row is prefixed with its
// 0-based index and missing cells read NaN.
func loadSpreadsheet(path, source string) ([]domain.TextUnit, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errEmptySheet
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	content, err := renderSheet(rows)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheets[0], err)
	}
	return []domain.TextUnit{{
		Content:  content,
		Metadata: domain.Metadata{Source: source, Kind: domain.KindExcelBlob},
	}}, nil
}

func renderSheet(rows [][]string) (string, error) {
	if len(rows) < 2 {
		return "", errEmptySheet
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}

	header := make([]string, width+1)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(rows[0]) {
			name = strings.TrimSpace(rows[0][i])
		}
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		header[i+1] = name
	}

	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for i, r := range rows[1:] {
		line := make([]string, width+1)
		line[0] = strconv.Itoa(i)
		for j := 0; j < width; j++ {
			v := missingCell
			if j < len(r) && strings.TrimSpace(r[j]) != "" {
				v = r[j]
			}
			line[j+1] = v
		}
		table.Append(line)
	}
	table.Render()

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n"), nil
}
