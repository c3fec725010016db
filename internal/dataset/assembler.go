// Package dataset assembles normalized rows into the analysis-ready
// dataset for one business date and encodes it for the sink.
package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
)

// percentageSuffix identifies the ownership-percentage snapshot columns;
// their full names carry the report date and are located dynamically.
const percentageSuffix = "Persentase Kepemilikan Per Investor (%)"

// CSVAssembler adapts the package functions to the pipeline's assembler
// dependency.
type CSVAssembler struct{}

func (CSVAssembler) Assemble(table *etl.Table, date etl.BusinessDate, expectRows bool) (*etl.Dataset, error) {
	return Assemble(table, date, expectRows)
}

func (CSVAssembler) EncodeCSV(d *etl.Dataset) ([]byte, error) { return EncodeCSV(d) }

func (CSVAssembler) Changes(d *etl.Dataset) *etl.Dataset { return Changes(d) }

// Assemble attaches the business date to the normalized table, preserving
// input order. When expectRows is set a zero-row table is rejected with
// ErrEmptyDataset; the orchestrator, not this package, decides whether an
// empty day means "not published" or an error.
func Assemble(table *etl.Table, date etl.BusinessDate, expectRows bool) (*etl.Dataset, error) {
	if table == nil {
		table = &etl.Table{}
	}
	if expectRows && len(table.Rows) == 0 {
		return nil, fmt.Errorf("no rows for %s: %w", date, etl.ErrEmptyDataset)
	}
	return &etl.Dataset{
		Date:    date,
		Columns: table.Columns,
		Rows:    table.Rows,
	}, nil
}

// EncodeCSV renders the dataset as a CSV document with a header record.
func EncodeCSV(d *etl.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(d.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for i, row := range d.Rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Changes filters the dataset down to rows whose ownership percentage
// moved between the two most recent snapshots. The result shares the
// parent's schema and date; an absent snapshot pair yields an empty
// changes set rather than an error.
func Changes(d *etl.Dataset) *etl.Dataset {
	out := &etl.Dataset{Date: d.Date, Columns: d.Columns}
	var pctIdx []int
	for i, col := range d.Columns {
		if strings.HasSuffix(col, percentageSuffix) {
			pctIdx = append(pctIdx, i)
		}
	}
	if len(pctIdx) < 2 {
		return out
	}
	prev, curr := pctIdx[len(pctIdx)-2], pctIdx[len(pctIdx)-1]
	for _, row := range d.Rows {
		if parsePct(row[prev]) != parsePct(row[curr]) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// parsePct treats unparseable or blank cells as zero, matching how the
// document leaves unchanged holdings blank.
func parsePct(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
