package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

// Canonical column names of the disclosure table.
const (
	ColNo          = "No"
	ColIssuer      = "Nama Emiten"
	ColShareholder = "Nama Pemegang Saham"
	ColNationality = "Kebangsaan"
)

// datePattern matches the report-date token embedded in the ownership
// header cells, e.g. "15-DEC-2025".
var datePattern = regexp.MustCompile(`(\d{1,2}-[A-Z]{3}-\d{4})`)

// droppedColumns are carried in the document but excluded from the output
// dataset.
var droppedColumns = map[string]bool{
	"Alamat":            true,
	"Alamat (Lanjutan)": true,
	"Domisili":          true,
}

// fillDownColumns are forward-filled within a table region.
var fillDownColumns = map[string]bool{
	ColNo:          true,
	ColIssuer:      true,
	ColShareholder: true,
	ColNationality: true,
}

// groupingColumns must never be blank in the output; a row whose grouping
// cell is blank with no prior value in the region is dropped.
var groupingColumns = map[string]bool{
	ColIssuer:      true,
	ColShareholder: true,
}

// Column describes one schema slot.
type Column struct {
	Name     string
	FillDown bool
	Grouping bool
	Drop     bool
}

// Schema is the active header mapping for a table region. It is derived
// from the first header row of the region and replaced whenever a later
// region carries a different header.
type Schema struct {
	Columns []Column

	// headerCells holds the cleaned source header cells, pre-expansion,
	// used to recognize repeated header rows in the data stream.
	headerCells []string
}

// Width is the cell count a data row must reconcile to.
func (s *Schema) Width() int { return len(s.Columns) }

// OutputColumns lists the names retained in the dataset, in order.
func (s *Schema) OutputColumns() []string {
	var out []string
	for _, c := range s.Columns {
		if !c.Drop {
			out = append(out, c.Name)
		}
	}
	return out
}

// DeriveSchema builds the column mapping from a raw header row. A header
// cell carrying a report date stands for the three ownership columns of
// that snapshot; the blank cells the merged header spans are consumed by
// the expansion. Blank cells not owned by a date expansion keep a
// positional name and are dropped from the output.
func DeriveSchema(cells []string) (*Schema, error) {
	cleaned := make([]string, len(cells))
	for i, c := range cells {
		cleaned[i] = cleanHeaderCell(c)
	}

	s := &Schema{headerCells: cleaned}
	i := 0
	for i < len(cleaned) {
		h := cleaned[i]
		if m := datePattern.FindString(strings.ToUpper(h)); m != "" {
			for _, suffix := range [...]string{
				"Jumlah Saham",
				"Saham Gabungan Per Investor",
				"Persentase Kepemilikan Per Investor (%)",
			} {
				s.Columns = append(s.Columns, Column{
					Name: fmt.Sprintf("Kepemilikan Per %s - %s", m, suffix),
				})
			}
			// A merged date header spans up to two blank cells.
			consumed := 1
			for consumed < 3 && i+consumed < len(cleaned) && cleaned[i+consumed] == "" {
				consumed++
			}
			i += consumed
			continue
		}
		name := h
		if name == "" {
			name = fmt.Sprintf("Unnamed %d", i)
		}
		s.Columns = append(s.Columns, Column{
			Name:     name,
			FillDown: fillDownColumns[name],
			Grouping: groupingColumns[name],
			Drop:     h == "" || droppedColumns[name],
		})
		i++
	}
	if len(s.Columns) < 2 {
		return nil, fmt.Errorf("header row yields %d columns", len(s.Columns))
	}
	return s, nil
}

// cleanHeaderCell normalizes a header cell for comparison. The extractor
// joins same-cell glyph runs with single spaces, so collapsing runs of
// whitespace is the only repair a header cell needs.
func cleanHeaderCell(raw string) string {
	return collapseSpaces(raw)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
