// Package etl defines the core types and pipeline orchestration for the
// IDX shareholder-disclosure ETL.
package etl

import (
	"fmt"
	"time"
)

// BusinessDate is a single exchange calendar date. It is comparable and
// therefore usable as a map key in backfill outcome aggregation.
type BusinessDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf truncates an instant to its calendar date. The instant must
// already be in the exchange's local time zone.
func DateOf(t time.Time) BusinessDate {
	y, m, d := t.Date()
	return BusinessDate{Year: y, Month: m, Day: d}
}

// NewBusinessDate builds a date from its components.
func NewBusinessDate(year int, month time.Month, day int) BusinessDate {
	return BusinessDate{Year: year, Month: month, Day: day}
}

// ParseBusinessDate accepts YYYY-MM-DD or YYYYMMDD.
func ParseBusinessDate(s string) (BusinessDate, error) {
	layout := "20060102"
	if len(s) == len("2006-01-02") {
		layout = "2006-01-02"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return BusinessDate{}, fmt.Errorf("parse business date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the date.
func (d BusinessDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date shifted by n calendar days.
func (d BusinessDate) AddDays(n int) BusinessDate {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// After reports whether d is after other.
func (d BusinessDate) After(other BusinessDate) bool {
	return d.Time().After(other.Time())
}

// Weekday returns the day of week.
func (d BusinessDate) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// String renders the ISO form, e.g. "2025-12-17".
func (d BusinessDate) String() string {
	return d.Time().Format("2006-01-02")
}

// Compact renders the IDX announcement-API form, e.g. "20251217".
func (d BusinessDate) Compact() string {
	return d.Time().Format("20060102")
}

// Partition renders the hive partition segment, e.g. "dt=2025-12-17".
// Re-runs for the same date land on the same partition and overwrite it.
func (d BusinessDate) Partition() string {
	return "dt=" + d.String()
}

// IsZero reports whether the date is unset.
func (d BusinessDate) IsZero() bool {
	return d == BusinessDate{}
}

// Document is the raw disclosure attachment fetched for a business date.
type Document struct {
	Bytes       []byte
	Filename    string
	Title       string
	AnnouncedAt time.Time
}

// RawRow is one physical table line as extracted from the document,
// before any cleaning. Cell counts vary page to page.
type RawRow struct {
	Page  int
	Index int
	Cells []string
}

// Table is the normalized row set sharing one column schema.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Dataset is an assembled, immutable row set for one business date.
type Dataset struct {
	Date    BusinessDate
	Columns []string
	Rows    [][]string
}

// Stage identifies a pipeline phase for failure attribution.
type Stage string

// Pipeline stages in execution order.
const (
	StageFetching    Stage = "fetching"
	StageExtracting  Stage = "extracting"
	StageNormalizing Stage = "normalizing"
	StageAssembling  Stage = "assembling"
	StageWriting     Stage = "writing"
)

// OutcomeKind classifies the terminal state of a run.
type OutcomeKind string

// Run outcome kinds.
const (
	OutcomeSuccess      OutcomeKind = "success"
	OutcomeNotPublished OutcomeKind = "not_published"
	OutcomeFailed       OutcomeKind = "failed"
)

// RunOutcome is the immutable result of one orchestrator pass.
type RunOutcome struct {
	RunID     string
	Date      BusinessDate
	Kind      OutcomeKind
	Rows      int
	Partition string
	Stage     Stage

	// ErrKind is the machine-readable failure classification from
	// ErrorKind; Err carries the human-readable message. Both are empty
	// unless Kind is OutcomeFailed.
	ErrKind string
	Err     string
}

// Succeeded reports whether the run produced and persisted a dataset.
func (o RunOutcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}
