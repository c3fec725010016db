// Package normalize repairs the tabular artifacts of the extracted
// disclosure rows: repeated page headers, blank continuation rows, and
// blank grouping cells left by multi-line records.
package normalize

import (
	"strings"

	"go.uber.org/zap"

	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
)

// Config controls normalization.
type Config struct {
	// HeaderLeadCell identifies header rows: a row whose first cell equals
	// this value (case-insensitive) establishes or repeats the header.
	HeaderLeadCell string
}

// Normalizer implements etl.Normalizer.
type Normalizer struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a Normalizer.
func New(cfg Config, logger *zap.Logger) *Normalizer {
	if cfg.HeaderLeadCell == "" {
		cfg.HeaderLeadCell = ColNo
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{cfg: cfg, logger: logger}
}

// regionState is the per-table-region normalization memory: the fill-down
// values seen so far. It resets at every region boundary and is passed
// explicitly, never kept in package state.
type regionState struct {
	lastSeen map[int]string
}

func newRegionState() *regionState {
	return &regionState{lastSeen: make(map[int]string)}
}

// Normalize cleans rows in order. The first header row defines the active
// mapping; later occurrences of the same header are dropped, a changed
// header replaces the mapping. Fill-down state resets at each page
// boundary and each header row.
func (n *Normalizer) Normalize(rows []etl.RawRow) (*etl.Table, error) {
	var (
		schema  *Schema
		state   = newRegionState()
		table   *etl.Table
		curPage = -1
	)

	for _, row := range rows {
		if row.Page != curPage {
			curPage = row.Page
			state = newRegionState()
		}

		if n.isHeaderRow(row.Cells) {
			derived, err := DeriveSchema(row.Cells)
			if err != nil {
				n.logger.Warn("unusable header row",
					zap.Int("page", row.Page), zap.Int("row", row.Index), zap.Error(err))
				continue
			}
			if table != nil && len(derived.OutputColumns()) != len(table.Columns) {
				return nil, &etl.SchemaMismatchError{
					Page: row.Page, Row: row.Index,
					Want: len(table.Columns), Got: len(derived.OutputColumns()),
				}
			}
			schema = derived
			state = newRegionState()
			if table == nil {
				table = &etl.Table{Columns: schema.OutputColumns()}
			}
			continue
		}
		if schema == nil {
			// Preamble before the first header (titles, page furniture).
			continue
		}

		cells, err := reconcileWidth(row, schema.Width())
		if err != nil {
			return nil, err
		}
		for i, c := range cells {
			cells[i] = scrubCell(c)
		}

		if allBlank(cells) {
			continue
		}
		if matchesHeader(cells, schema) {
			continue
		}

		keep := true
		for i, col := range schema.Columns {
			if !col.FillDown || cells[i] != "" {
				continue
			}
			prev, ok := state.lastSeen[i]
			if !ok && col.Grouping {
				// Blank grouping cell at the top of a region has
				// nothing to inherit; drop rather than emit a null
				// group.
				keep = false
				break
			}
			cells[i] = prev
		}
		if !keep {
			// A dropped row must leave no fill-down trace; its cells
			// never reached the output and must not seed later rows.
			n.logger.Debug("dropping headless continuation row",
				zap.Int("page", row.Page), zap.Int("row", row.Index))
			continue
		}
		for i, col := range schema.Columns {
			if col.FillDown && cells[i] != "" {
				state.lastSeen[i] = cells[i]
			}
		}

		table.Rows = append(table.Rows, project(cells, schema))
	}

	if table == nil {
		return &etl.Table{}, nil
	}
	return table, nil
}

func (n *Normalizer) isHeaderRow(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	return strings.EqualFold(cleanHeaderCell(cells[0]), n.cfg.HeaderLeadCell)
}

// reconcileWidth aligns a row to the schema width. Trailing blanks are
// trimmed or padded freely; surplus non-blank cells mean the layout
// assumption broke upstream and must surface as a schema mismatch.
func reconcileWidth(row etl.RawRow, width int) ([]string, error) {
	cells := make([]string, len(row.Cells))
	copy(cells, row.Cells)

	for len(cells) > width && strings.TrimSpace(cells[len(cells)-1]) == "" {
		cells = cells[:len(cells)-1]
	}
	if len(cells) > width {
		return nil, &etl.SchemaMismatchError{
			Page: row.Page, Row: row.Index, Want: width, Got: len(row.Cells),
		}
	}
	for len(cells) < width {
		cells = append(cells, "")
	}
	return cells, nil
}

// scrubCell trims and collapses whitespace and strips the thousand
// separators and percent suffixes the document renders into numeric cells.
// A blank stays blank: absence of a value is meaningful output.
func scrubCell(raw string) string {
	s := collapseSpaces(strings.TrimSpace(raw))
	if strings.EqualFold(s, "none") {
		return ""
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "%", "")
	return strings.TrimSpace(s)
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// matchesHeader reports whether every non-blank cell equals the source
// header cell at its position, case-insensitively. A data row that merely
// contains header text in one cell keeps its other cells and will not
// match.
func matchesHeader(cells []string, schema *Schema) bool {
	if len(schema.headerCells) == 0 {
		return false
	}
	matched := false
	for i, c := range cells {
		if c == "" {
			continue
		}
		if i >= len(schema.headerCells) ||
			!strings.EqualFold(c, scrubCell(schema.headerCells[i])) {
			return false
		}
		matched = true
	}
	return matched
}

func project(cells []string, schema *Schema) []string {
	out := make([]string, 0, len(schema.Columns))
	for i, col := range schema.Columns {
		if col.Drop {
			continue
		}
		out = append(out, cells[i])
	}
	return out
}
