package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/driftwatch-project/driftwatch/pkg/structdiff"
)

// ShortRowError reports a row with fewer cells than configured columns.
// Assigning cells by position without this check would silently attach
// values to the wrong columns.
type ShortRowError struct {
	Table string
	Row   int
	Want  int
	Got   int
}

func (e *ShortRowError) Error() string {
	return fmt.Sprintf("table %q row %d has %d cells, want at least %d", e.Table, e.Row, e.Got, e.Want)
}

// extractTable builds one mapping per row, columns assigned by cell
// position. Extra cells beyond the configured columns are ignored; missing
// cells are an error.
func extractTable(doc *goquery.Document, t Table) (*structdiff.Sequence, error) {
	cellSel := t.Cells
	if cellSel == "" {
		cellSel = "td"
	}

	rows := structdiff.NewSequence()
	var rowErr error
	doc.Find(t.Rows).EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.Find(cellSel)
		if cells.Length() < len(t.Columns) {
			rowErr = &ShortRowError{Table: t.Key, Row: i, Want: len(t.Columns), Got: cells.Length()}
			return false
		}
		entry := structdiff.NewMapping()
		for col, name := range t.Columns {
			entry.Set(name, scalar(cells.Eq(col).Text()))
		}
		rows.Items = append(rows.Items, entry)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return rows, nil
}
