package filters

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"pubsub2inbox/internal/common/errors"
)

// htmlTableToXLSX converts every <table> of an HTML document into a worksheet
// and returns the workbook base64 encoded. Blank input yields "".
func (l *Library) htmlTableToXLSX(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return "", l.fail("html_table_to_xlsx", errors.ValidationError(fmt.Sprintf("failed to parse HTML: %v", err)))
	}

	tables := findAll(doc, atom.Table)
	if len(tables) == 0 {
		return "", l.fail("html_table_to_xlsx", errors.ValidationError("no <table> element found"))
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, table := range tables {
		sheet := fmt.Sprintf("Sheet%d", i+1)
		if i > 0 {
			if _, err := f.NewSheet(sheet); err != nil {
				return "", l.fail("html_table_to_xlsx", errors.InternalError("failed to add worksheet", err))
			}
		}
		if err := writeTable(f, sheet, table); err != nil {
			return "", l.fail("html_table_to_xlsx", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", l.fail("html_table_to_xlsx", errors.InternalError("failed to write workbook", err))
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func writeTable(f *excelize.File, sheet string, table *html.Node) error {
	// cells covered by a rowspan from an earlier row, keyed by "row:col"
	occupied := make(map[string]bool)

	for rowIdx, tr := range rowsOf(table) {
		row := rowIdx + 1
		col := 1
		for _, cell := range childElements(tr, atom.Td, atom.Th) {
			for occupied[fmt.Sprintf("%d:%d", row, col)] {
				col++
			}

			name, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return errors.InternalError("invalid cell coordinates", err)
			}
			if err := f.SetCellValue(sheet, name, cellValue(textContent(cell))); err != nil {
				return errors.InternalError("failed to set cell value", err)
			}

			colspan := spanAttr(cell, "colspan")
			rowspan := spanAttr(cell, "rowspan")
			for r := 0; r < rowspan; r++ {
				for c := 0; c < colspan; c++ {
					if r > 0 || c > 0 {
						occupied[fmt.Sprintf("%d:%d", row+r, col+c)] = true
					}
				}
			}
			col += colspan
		}
	}
	return nil
}

// rowsOf returns the rows of a table, looking through thead/tbody/tfoot but
// not into nested tables
func rowsOf(table *html.Node) []*html.Node {
	var rows []*html.Node
	for c := table.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Tr:
			rows = append(rows, c)
		case atom.Thead, atom.Tbody, atom.Tfoot:
			rows = append(rows, childElements(c, atom.Tr)...)
		}
	}
	return rows
}

func childElements(n *html.Node, atoms ...atom.Atom) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		for _, a := range atoms {
			if c.DataAtom == a {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.DataAtom == a {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch {
		case node.Type == html.TextNode:
			b.WriteString(node.Data)
		case node.Type == html.ElementNode && node.DataAtom == atom.Br:
			b.WriteString("\n")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func spanAttr(n *html.Node, key string) int {
	for _, attr := range n.Attr {
		if attr.Key == key {
			if v, err := strconv.Atoi(strings.TrimSpace(attr.Val)); err == nil && v > 0 {
				return v
			}
		}
	}
	return 1
}

// cellValue stores numeric text as a number so spreadsheet formulas work
func cellValue(text string) interface{} {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil && !strings.ContainsAny(text, "xXnN") {
		return f
	}
	return text
}
