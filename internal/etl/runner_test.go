package etl

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	// errs are returned in order; once exhausted the fetcher succeeds.
	errs []error
	doc  Document
}

func (f *fakeFetcher) Fetch(_ context.Context, _ BusinessDate) (Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return Document{}, err
	}
	return f.doc, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeExtractor struct {
	rows []RawRow
	err  error
}

func (f *fakeExtractor) Extract(_ []byte) ([]RawRow, error) {
	return f.rows, f.err
}

type fakeNormalizer struct {
	table *Table
	err   error
}

func (f *fakeNormalizer) Normalize(_ []RawRow) (*Table, error) {
	return f.table, f.err
}

// fakeAssembler mirrors the real assembler's empty-table contract so the
// runner's zero-row branches are exercised realistically.
type fakeAssembler struct{}

func (fakeAssembler) Assemble(table *Table, date BusinessDate, expectRows bool) (*Dataset, error) {
	if expectRows && len(table.Rows) == 0 {
		return nil, fmt.Errorf("no rows for %s: %w", date, ErrEmptyDataset)
	}
	return &Dataset{Date: date, Columns: table.Columns, Rows: table.Rows}, nil
}

func (fakeAssembler) EncodeCSV(d *Dataset) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(d.Columns); err != nil {
		return nil, err
	}
	if err := w.WriteAll(d.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (fakeAssembler) Changes(d *Dataset) *Dataset {
	// Every other row "changed"; good enough for wiring assertions.
	out := &Dataset{Date: d.Date, Columns: d.Columns}
	for i, row := range d.Rows {
		if i%2 == 0 {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

type fakeSink struct {
	mu      sync.Mutex
	objects map[string][]byte
	failKey string
}

func newFakeSink() *fakeSink {
	return &fakeSink{objects: map[string][]byte{}}
}

func (s *fakeSink) Save(_ context.Context, objectName, _ string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failKey != "" && strings.Contains(objectName, s.failKey) {
		return errors.New("sink unavailable")
	}
	s.objects[objectName] = append([]byte(nil), data...)
	return nil
}

func (s *fakeSink) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

type recordingHistory struct {
	mu       sync.Mutex
	outcomes []RunOutcome
}

func (h *recordingHistory) RecordRun(_ context.Context, outcome RunOutcome) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcomes = append(h.outcomes, outcome)
	return nil
}

func (h *recordingHistory) Close() error { return nil }

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []RunOutcome
}

func (n *recordingNotifier) Publish(_ context.Context, outcome RunOutcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, outcome)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type sequentialIDs struct {
	mu   sync.Mutex
	next int
}

func (g *sequentialIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("run-%04d", g.next), nil
}

func testTable() *Table {
	return &Table{
		Columns: []string{"No", "Nama Emiten", "Jumlah Saham"},
		Rows: [][]string{
			{"1", "AALI", "1000"},
			{"1", "AALI", "2000"},
			{"2", "BBCA", "500"},
		},
	}
}

func testRunnerConfig() Config {
	return Config{
		DatasetPrefix: "datasets/full",
		ChangesPrefix: "datasets/changes",
		RawPrefix:     "raw",
		WriteChanges:  true,
		Workers:       1,
	}
}

func newTestRunner(cfg Config, fetcher Fetcher, sink SinkWriter, hist HistoryStore, notif Notifier) *Runner {
	return NewRunner(cfg, Deps{
		Fetcher:    fetcher,
		Extractor:  &fakeExtractor{rows: []RawRow{{Page: 2, Index: 0, Cells: []string{"x"}}}},
		Normalizer: &fakeNormalizer{table: testTable()},
		Assembler:  fakeAssembler{},
		Sink:       sink,
		History:    hist,
		Notifier:   notif,
		Retry:      NewRetryPolicy(3, time.Millisecond, 2*time.Millisecond),
		Clock:      fixedClock{now: time.Unix(1000, 0)},
		IDs:        &sequentialIDs{},
	})
}

func TestRunner_FullRunWritesDatasetAndChanges(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	hist := &recordingHistory{}
	notif := &recordingNotifier{}
	fetcher := &fakeFetcher{doc: Document{Bytes: []byte("%PDF"), Filename: "laporan_lamp.pdf"}}
	runner := newTestRunner(testRunnerConfig(), fetcher, sink, hist, notif)

	date := NewBusinessDate(2025, time.December, 17)
	outcome := runner.Run(context.Background(), date, PhaseFull)

	require.Equal(t, OutcomeSuccess, outcome.Kind)
	require.Equal(t, 3, outcome.Rows)
	require.Equal(t, "dt=2025-12-17", outcome.Partition)
	require.NotEmpty(t, outcome.RunID)

	keys := sink.keys()
	require.Contains(t, keys, "datasets/full/dt=2025-12-17/20251217.csv")
	require.Contains(t, keys, "datasets/changes/dt=2025-12-17/20251217.csv")
	require.Contains(t, keys, "raw/dt=2025-12-17/20251217_laporan_lamp.pdf")

	require.Len(t, hist.outcomes, 1)
	require.Len(t, notif.outcomes, 1)
	require.Equal(t, outcome, hist.outcomes[0])
}

func TestRunner_RerunSameDateOverwritesPartition(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	fetcher := &fakeFetcher{doc: Document{Bytes: []byte("%PDF")}}
	runner := newTestRunner(testRunnerConfig(), fetcher, sink, nil, nil)

	date := NewBusinessDate(2025, time.December, 17)
	first := runner.Run(context.Background(), date, PhaseFull)
	second := runner.Run(context.Background(), date, PhaseFull)

	require.Equal(t, OutcomeSuccess, first.Kind)
	require.Equal(t, OutcomeSuccess, second.Kind)
	require.Equal(t, first.Partition, second.Partition)
	require.NotEqual(t, first.RunID, second.RunID)
}

func TestRunner_NotPublishedIsNotAFailure(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	fetcher := &fakeFetcher{errs: []error{ErrNotPublished}}
	runner := newTestRunner(testRunnerConfig(), fetcher, sink, nil, nil)

	outcome := runner.Run(context.Background(), NewBusinessDate(2025, time.December, 25), PhaseFull)

	require.Equal(t, OutcomeNotPublished, outcome.Kind)
	require.Empty(t, outcome.Err)
	require.Empty(t, sink.keys())
	require.Equal(t, 1, fetcher.callCount())
}

func TestRunner_TransientFetchIsRetried(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	fetcher := &fakeFetcher{
		errs: []error{
			&TransientError{Op: "list", Err: errors.New("status 503")},
			&TransientError{Op: "list", Err: errors.New("status 429")},
		},
		doc: Document{Bytes: []byte("%PDF")},
	}
	runner := newTestRunner(testRunnerConfig(), fetcher, sink, nil, nil)

	outcome := runner.Run(context.Background(), NewBusinessDate(2025, time.December, 17), PhaseFull)

	require.Equal(t, OutcomeSuccess, outcome.Kind)
	require.Equal(t, 3, fetcher.callCount())
}

func TestRunner_PermanentFetchFailsWithoutRetry(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	fetcher := &fakeFetcher{
		errs: []error{&PermanentError{Op: "download", Err: errors.New("status 404")}},
		doc:  Document{Bytes: []byte("%PDF")},
	}
	runner := newTestRunner(testRunnerConfig(), fetcher, sink, nil, nil)

	outcome := runner.Run(context.Background(), NewBusinessDate(2025, time.December, 17), PhaseFull)

	require.Equal(t, OutcomeFailed, outcome.Kind)
	require.Equal(t, StageFetching, outcome.Stage)
	require.Equal(t, "permanent", outcome.ErrKind)
	require.Contains(t, outcome.Err, "404")
	require.Equal(t, 1, fetcher.callCount())
	require.Empty(t, sink.keys())
}

func TestRunner_ZeroRowsMeansNotPublishedWhenRowsOptional(t *testing.T) {
	t.Parallel()

	cfg := testRunnerConfig()
	sink := newFakeSink()
	runner := NewRunner(cfg, Deps{
		Fetcher:    &fakeFetcher{doc: Document{Bytes: []byte("%PDF")}},
		Extractor:  &fakeExtractor{},
		Normalizer: &fakeNormalizer{table: &Table{Columns: []string{"No"}}},
		Assembler:  fakeAssembler{},
		Sink:       sink,
		Retry:      NewRetryPolicy(1, time.Millisecond, time.Millisecond),
	})

	outcome := runner.Run(context.Background(), NewBusinessDate(2025, time.December, 17), PhaseFull)

	require.Equal(t, OutcomeNotPublished, outcome.Kind)
	// The fetched PDF is still archived; only the dataset objects are
	// withheld on a zero-row day.
	require.Equal(t, []string{"raw/dt=2025-12-17/20251217_disclosure.pdf"}, sink.keys())
}

func TestRunner_ZeroRowsFailsWhenRowsExpected(t *testing.T) {
	t.Parallel()

	cfg := testRunnerConfig()
	cfg.ExpectRows = true
	runner := NewRunner(cfg, Deps{
		Fetcher:    &fakeFetcher{doc: Document{Bytes: []byte("%PDF")}},
		Extractor:  &fakeExtractor{},
		Normalizer: &fakeNormalizer{table: &Table{Columns: []string{"No"}}},
		Assembler:  fakeAssembler{},
		Sink:       newFakeSink(),
		Retry:      NewRetryPolicy(1, time.Millisecond, time.Millisecond),
	})

	outcome := runner.Run(context.Background(), NewBusinessDate(2025, time.December, 17), PhaseFull)

	require.Equal(t, OutcomeFailed, outcome.Kind)
	require.Equal(t, StageAssembling, outcome.Stage)
	require.Equal(t, "empty_dataset", outcome.ErrKind)
	require.Contains(t, outcome.Err, "empty dataset")
}

func TestRunner_SinkFailureSurfacesAtWritingStage(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	sink.failKey = "datasets/full"
	fetcher := &fakeFetcher{doc: Document{Bytes: []byte("%PDF")}}
	runner := newTestRunner(testRunnerConfig(), fetcher, sink, nil, nil)

	outcome := runner.Run(context.Background(), NewBusinessDate(2025, time.December, 17), PhaseFull)

	require.Equal(t, OutcomeFailed, outcome.Kind)
	require.Equal(t, StageWriting, outcome.Stage)
}

func TestRunner_FetchPhaseStoresRawOnly(t *testing.T) {
	t.Parallel()

	cfg := testRunnerConfig()
	cfg.DownloadDir = t.TempDir()
	sink := newFakeSink()
	fetcher := &fakeFetcher{doc: Document{Bytes: []byte("%PDF"), Filename: "laporan_lamp.pdf"}}
	runner := newTestRunner(cfg, fetcher, sink, nil, nil)

	date := NewBusinessDate(2025, time.December, 17)
	outcome := runner.Run(context.Background(), date, PhaseFetch)

	require.Equal(t, OutcomeSuccess, outcome.Kind)
	require.Zero(t, outcome.Rows)
	require.Equal(t, []string{"raw/dt=2025-12-17/20251217_laporan_lamp.pdf"}, sink.keys())

	local := filepath.Join(cfg.DownloadDir, "20251217_laporan_lamp.pdf")
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF"), data)
}

func TestRunner_ParsePhaseReadsLocalDocument(t *testing.T) {
	t.Parallel()

	cfg := testRunnerConfig()
	cfg.RawPrefix = ""
	cfg.DownloadDir = t.TempDir()
	local := filepath.Join(cfg.DownloadDir, "20251217_laporan_lamp.pdf")
	require.NoError(t, os.WriteFile(local, []byte("%PDF"), 0o644))

	sink := newFakeSink()
	fetcher := &fakeFetcher{errs: []error{errors.New("network must not be touched")}}
	runner := newTestRunner(cfg, fetcher, sink, nil, nil)

	outcome := runner.Run(context.Background(), NewBusinessDate(2025, time.December, 17), PhaseParse)

	require.Equal(t, OutcomeSuccess, outcome.Kind)
	require.Equal(t, 0, fetcher.callCount())
	require.Contains(t, sink.keys(), "datasets/full/dt=2025-12-17/20251217.csv")
}

func TestRunner_ParsePhaseMissingFileIsNotPublished(t *testing.T) {
	t.Parallel()

	cfg := testRunnerConfig()
	cfg.DownloadDir = t.TempDir()
	runner := newTestRunner(cfg, &fakeFetcher{}, newFakeSink(), nil, nil)

	outcome := runner.Run(context.Background(), NewBusinessDate(2025, time.December, 17), PhaseParse)

	require.Equal(t, OutcomeNotPublished, outcome.Kind)
}

func TestParsePhaseFlag(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"full", "fetch", "parse"} {
		phase, err := ParsePhase(valid)
		require.NoError(t, err)
		require.Equal(t, Phase(valid), phase)
	}
	_, err := ParsePhase("bogus")
	require.Error(t, err)
}
