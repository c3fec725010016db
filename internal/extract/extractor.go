// Package extract turns the IDX disclosure PDF page stream into raw table
// rows. Column boundaries are inferred per page from glyph positions, not
// fixed coordinates, because page count and layout vary run to run.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
)

// Config controls extraction behavior.
type Config struct {
	// SkipCoverPage drops the first page; the disclosure document opens
	// with a cover sheet that carries no table.
	SkipCoverPage bool
}

// Extractor implements etl.Extractor on top of the pdf reader.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

// New builds an Extractor.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract parses the document and returns one RawRow per physical table
// line, tagged with its page and in-page index. Repeated page headers pass
// through as ordinary rows; only the normalizer has the full-row context to
// tell a repeated header from data that happens to match header text.
// A document that parses but contains no rows yields an empty slice.
func (e *Extractor) Extract(doc []byte) ([]etl.RawRow, error) {
	reader, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, &etl.MalformedDocumentError{Err: err}
	}

	var rows []etl.RawRow
	first := 1
	if e.cfg.SkipCoverPage {
		first = 2
	}
	for num := first; num <= reader.NumPage(); num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}
		pageRows, err := e.extractPage(page, num)
		if err != nil {
			e.logger.Warn("skipping unreadable page",
				zap.Int("page", num), zap.Error(err))
			continue
		}
		rows = append(rows, pageRows...)
	}
	return rows, nil
}

// extractPage recovers from parser panics so one broken page never sinks
// the whole document.
func (e *Extractor) extractPage(page pdf.Page, num int) (rows []etl.RawRow, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("page content: %v", r)
		}
	}()

	content := page.Content()
	lines := buildChunks(content.Text)
	if len(lines) == 0 {
		return nil, nil
	}
	layout := inferLayout(lines)
	if layout.width() < 2 {
		// A single text band is prose, not a table region.
		return nil, nil
	}

	index := 0
	for _, line := range lines {
		cells := make([]string, layout.width())
		for _, c := range line {
			col := layout.columnFor(c.mid())
			if cells[col] != "" {
				cells[col] += " "
			}
			cells[col] += strings.TrimSpace(c.text)
		}
		rows = append(rows, etl.RawRow{Page: num, Index: index, Cells: cells})
		index++
	}
	return rows, nil
}
