package history

import (
	"strings"

	"github.com/dennisdiepolder/xferlink/internal/types"
)

// Older campaign records embed their history as an inline markup table with
// a fixed column layout:
//
//	timestamp | first name | last name | extension | event kind | hangup cause
//
// Rows that do not match the expected column count are skipped, not fatal.
const markupColumns = 6

// ParseMarkupTable extracts one event per table row. Anything that is not a
// well-formed row is ignored.
func ParseMarkupTable(s string) []types.HistoryEvent {
	var events []types.HistoryEvent

	for _, row := range tableRows(s) {
		cells := rowCells(row)
		if len(cells) != markupColumns {
			continue
		}

		ts, ok := parseInt(cells[0])
		if !ok {
			continue
		}
		kind := mapKind(cells[4])
		if kind == "" {
			continue
		}

		events = append(events, types.HistoryEvent{
			Kind:       kind,
			Extension:  cells[3],
			Timestamp:  NormalizeTimestamp(ts),
			PersonName: strings.TrimSpace(cells[1] + " " + cells[2]),
		})
	}

	if events == nil {
		return []types.HistoryEvent{}
	}
	return sortByTime(events)
}

// tableRows returns the inner content of every <tr> element.
func tableRows(s string) []string {
	var rows []string
	lower := strings.ToLower(s)
	pos := 0
	for {
		start := strings.Index(lower[pos:], "<tr")
		if start < 0 {
			break
		}
		start += pos
		open := strings.Index(lower[start:], ">")
		if open < 0 {
			break
		}
		open += start + 1
		end := strings.Index(lower[open:], "</tr>")
		if end < 0 {
			break
		}
		end += open
		rows = append(rows, s[open:end])
		pos = end + len("</tr>")
	}
	return rows
}

// rowCells returns the trimmed text content of every <td> element in a row.
func rowCells(row string) []string {
	var cells []string
	lower := strings.ToLower(row)
	pos := 0
	for {
		start := strings.Index(lower[pos:], "<td")
		if start < 0 {
			break
		}
		start += pos
		open := strings.Index(lower[start:], ">")
		if open < 0 {
			break
		}
		open += start + 1
		end := strings.Index(lower[open:], "</td>")
		if end < 0 {
			break
		}
		end += open
		cells = append(cells, strings.TrimSpace(stripTags(row[open:end])))
		pos = end + len("</td>")
	}
	return cells
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int64(r-'0')
	}
	return n, true
}
