package markdown

import (
	"html"
	"regexp"
	"strings"
)

type align string

const (
	alignLeft   align = "left"
	alignCenter align = "center"
	alignRight  align = "right"
)

var alignCellRe = regexp.MustCompile(`^:?-+:?$`)

// renderTables finds a header row, an alignment row and at least one body
// row, all pipe-delimited. Anything short of that is left alone.
func renderTables(d *doc) {
	lines := strings.Split(d.text, "\n")
	out := make([]string, 0, len(lines))

	for i := 0; i < len(lines); {
		header, ok := pipeCells(lines[i])
		if !ok || i+2 >= len(lines) {
			out = append(out, lines[i])
			i++
			continue
		}
		aligns, ok := parseAlignRow(lines[i+1], len(header))
		if !ok {
			out = append(out, lines[i])
			i++
			continue
		}

		var body [][]string
		j := i + 2
		for ; j < len(lines); j++ {
			cells, ok := pipeCells(lines[j])
			if !ok {
				break
			}
			body = append(body, cells)
		}
		if len(body) == 0 {
			out = append(out, lines[i])
			i++
			continue
		}

		out = append(out, buildTable(header, aligns, body))
		i = j
	}
	d.text = strings.Join(out, "\n")
}

func pipeCells(line string) ([]string, bool) {
	t := strings.TrimSpace(line)
	if len(t) < 2 || !strings.HasPrefix(t, "|") || !strings.HasSuffix(t, "|") {
		return nil, false
	}
	parts := strings.Split(t[1:len(t)-1], "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, true
}

func parseAlignRow(line string, cols int) ([]align, bool) {
	cells, ok := pipeCells(line)
	if !ok || len(cells) != cols {
		return nil, false
	}
	out := make([]align, len(cells))
	for i, c := range cells {
		if !alignCellRe.MatchString(c) {
			return nil, false
		}
		left, right := strings.HasPrefix(c, ":"), strings.HasSuffix(c, ":")
		switch {
		case left && right:
			out[i] = alignCenter
		case right:
			out[i] = alignRight
		default:
			out[i] = alignLeft
		}
	}
	return out, true
}

// buildTable emits the table on a single line so the newline rules of the
// inline stage cannot break it apart.
func buildTable(header []string, aligns []align, body [][]string) string {
	var b strings.Builder
	b.WriteString(`<table class="md-table"><thead><tr>`)
	for i, h := range header {
		b.WriteString(`<th style="text-align:` + string(aligns[i]) + `">`)
		b.WriteString(escapeCell(h))
		b.WriteString(`</th>`)
	}
	b.WriteString(`</tr></thead><tbody>`)
	for _, row := range body {
		b.WriteString(`<tr>`)
		// Short rows are padded; cells past the header keep their content
		// and align left.
		for i := range max(len(header), len(row)) {
			cell, a := "", alignLeft
			if i < len(row) {
				cell = row[i]
			}
			if i < len(aligns) {
				a = aligns[i]
			}
			b.WriteString(`<td style="text-align:` + string(a) + `">`)
			b.WriteString(escapeCell(cell))
			b.WriteString(`</td>`)
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}

// escapeCell escapes a cell exactly once. The document was escaped when code
// was protected; undoing that first keeps cells from being double-escaped.
func escapeCell(c string) string {
	return html.EscapeString(html.UnescapeString(c))
}
