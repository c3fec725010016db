package extract

import (
	"sort"

	"github.com/ledongthuc/pdf"
)

// Geometry tolerances, in PDF points. Glyph runs closer than chunkGap are
// joined into one text chunk; chunk intervals closer than bandSlack are
// merged into one column band; baselines within lineTol belong to one row.
const (
	chunkGap  = 1.2
	bandSlack = 4.5
	lineTol   = 2.0
)

// chunk is a horizontally contiguous run of glyphs on one baseline.
type chunk struct {
	x0, x1 float64
	y      float64
	text   string
}

func (c chunk) mid() float64 { return (c.x0 + c.x1) / 2 }

// band is a vertical stripe of the page occupied by one table column.
type band struct {
	lo, hi float64
}

// columnLayout is the inferred column map for a single page. It is computed
// once per page and threaded explicitly into row assignment, never rebuilt
// per row.
type columnLayout struct {
	bands []band
}

func (l columnLayout) width() int { return len(l.bands) }

// columnFor returns the index of the band containing x, or the nearest band
// when x falls in a gutter. Cells without explicit column markers are
// assigned to the nearest inferred column.
func (l columnLayout) columnFor(x float64) int {
	best, bestDist := 0, -1.0
	for i, b := range l.bands {
		if x >= b.lo && x <= b.hi {
			return i
		}
		d := b.lo - x
		if x > b.hi {
			d = x - b.hi
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// buildChunks groups raw glyph fragments into baseline-ordered text chunks.
// Output lines run top of page to bottom, chunks left to right.
func buildChunks(texts []pdf.Text) [][]chunk {
	if len(texts) == 0 {
		return nil
	}
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if diff := sorted[i].Y - sorted[j].Y; diff > lineTol || diff < -lineTol {
			return sorted[i].Y > sorted[j].Y // PDF origin is bottom-left
		}
		return sorted[i].X < sorted[j].X
	})

	var lines [][]chunk
	var line []chunk
	var cur *chunk
	lineY := sorted[0].Y

	flushChunk := func() {
		if cur != nil {
			line = append(line, *cur)
			cur = nil
		}
	}
	flushLine := func() {
		flushChunk()
		if len(line) > 0 {
			lines = append(lines, line)
			line = nil
		}
	}

	for _, t := range sorted {
		if lineY-t.Y > lineTol {
			flushLine()
			lineY = t.Y
		}
		if cur != nil && t.X-cur.x1 <= chunkGap {
			cur.text += t.S
			if end := t.X + t.W; end > cur.x1 {
				cur.x1 = end
			}
			continue
		}
		flushChunk()
		cur = &chunk{x0: t.X, x1: t.X + t.W, y: t.Y, text: t.S}
	}
	flushLine()
	return lines
}

// inferLayout merges the x-intervals covered by all chunks on a page into
// column bands. Gaps wider than bandSlack between merged intervals are the
// column gutters; the bands between them are the columns.
func inferLayout(lines [][]chunk) columnLayout {
	var intervals []band
	for _, line := range lines {
		for _, c := range line {
			intervals = append(intervals, band{lo: c.x0, hi: c.x1})
		}
	}
	if len(intervals) == 0 {
		return columnLayout{}
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].lo < intervals[j].lo })

	merged := []band{intervals[0]}
	for _, iv := range intervals[1:] {
		last := &merged[len(merged)-1]
		if iv.lo <= last.hi+bandSlack {
			if iv.hi > last.hi {
				last.hi = iv.hi
			}
			continue
		}
		merged = append(merged, iv)
	}
	return columnLayout{bands: merged}
}
