package etl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/adiwardana/idx-shareholder-etl/internal/metrics"
)

// Phase selects how much of the pipeline a run executes. Fetch and parse
// phases exist so a backfill can be split into a polite, serial download
// pass and a fast, parallel parsing pass over the local copies.
type Phase string

const (
	PhaseFull  Phase = "full"
	PhaseFetch Phase = "fetch"
	PhaseParse Phase = "parse"
)

// ParsePhase validates a phase flag value.
func ParsePhase(s string) (Phase, error) {
	switch Phase(s) {
	case PhaseFull, PhaseFetch, PhaseParse:
		return Phase(s), nil
	}
	return "", fmt.Errorf("unknown phase %q (want full, fetch, or parse)", s)
}

// Assembler builds the final dataset from a normalized table and encodes
// it for the sink.
type Assembler interface {
	Assemble(table *Table, date BusinessDate, expectRows bool) (*Dataset, error)
	EncodeCSV(d *Dataset) ([]byte, error)
	Changes(d *Dataset) *Dataset
}

// Deps bundles the collaborators a Runner needs. Every field is an
// interface so tests can substitute fakes.
type Deps struct {
	Fetcher    Fetcher
	Extractor  Extractor
	Normalizer Normalizer
	Assembler  Assembler
	Sink       SinkWriter
	Notifier   Notifier
	History    HistoryStore
	Retry      RetryPolicy
	Clock      Clock
	IDs        IDGenerator
	Logger     *zap.Logger
}

// Runner executes the pipeline for one business date: fetch, extract,
// normalize, assemble, write. A run never partially publishes; the
// dataset object is written only after every prior stage succeeded.
type Runner struct {
	cfg  Config
	deps Deps
}

// NewRunner wires a Runner.
func NewRunner(cfg Config, deps Deps) *Runner {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Retry == nil {
		deps.Retry = NewRetryPolicy(cfg.RetryAttempts, cfg.RetryBaseDelay, cfg.RetryMaxDelay)
	}
	return &Runner{cfg: cfg, deps: deps}
}

// Run executes a phase for one business date and always returns a
// terminal outcome; errors are folded into the outcome rather than
// returned, so concurrent callers get a uniform result shape.
func (r *Runner) Run(ctx context.Context, date BusinessDate, phase Phase) RunOutcome {
	start := r.now()
	runID := r.newRunID()
	logger := r.deps.Logger.With(
		zap.String("run_id", runID),
		zap.String("date", date.String()),
		zap.String("phase", string(phase)),
	)
	logger.Info("Starting pipeline run")

	var outcome RunOutcome
	switch phase {
	case PhaseFetch:
		outcome = r.runFetchOnly(ctx, runID, date, logger)
	case PhaseParse:
		outcome = r.runParseOnly(ctx, runID, date, logger)
	default:
		outcome = r.runFull(ctx, runID, date, logger)
	}

	elapsed := r.now().Sub(start)
	metrics.ObserveRun(string(outcome.Kind), elapsed)
	if outcome.Kind == OutcomeFailed {
		metrics.ObserveFailure(outcome.ErrKind)
	}
	r.record(ctx, outcome, logger)

	switch outcome.Kind {
	case OutcomeSuccess:
		logger.Info("Pipeline run succeeded",
			zap.Int("rows", outcome.Rows),
			zap.String("partition", outcome.Partition),
			zap.Duration("elapsed", elapsed))
	case OutcomeNotPublished:
		logger.Info("No disclosure published for date", zap.Duration("elapsed", elapsed))
	default:
		logger.Error("Pipeline run failed",
			zap.String("stage", string(outcome.Stage)),
			zap.String("error_kind", outcome.ErrKind),
			zap.String("error", outcome.Err),
			zap.Duration("elapsed", elapsed))
	}
	return outcome
}

func (r *Runner) runFull(ctx context.Context, runID string, date BusinessDate, logger *zap.Logger) RunOutcome {
	doc, err := r.fetchWithRetry(ctx, date, logger)
	if err != nil {
		if errors.Is(err, ErrNotPublished) {
			return r.notPublished(runID, date)
		}
		return r.failed(runID, date, StageFetching, err)
	}

	if r.cfg.RawPrefix != "" {
		if err := r.archiveRaw(ctx, date, doc); err != nil {
			// Raw archival is best effort; the dataset is the product.
			logger.Warn("Failed to archive raw document", zap.Error(err))
		}
	}

	return r.process(ctx, runID, date, doc.Bytes, logger)
}

// runFetchOnly downloads the disclosure and stores the raw PDF both in
// the sink (under the raw prefix) and in the local download directory
// for a later parse pass.
func (r *Runner) runFetchOnly(ctx context.Context, runID string, date BusinessDate, logger *zap.Logger) RunOutcome {
	doc, err := r.fetchWithRetry(ctx, date, logger)
	if err != nil {
		if errors.Is(err, ErrNotPublished) {
			return r.notPublished(runID, date)
		}
		return r.failed(runID, date, StageFetching, err)
	}

	if r.cfg.RawPrefix != "" {
		if err := r.archiveRaw(ctx, date, doc); err != nil {
			return r.failed(runID, date, StageWriting, err)
		}
	}
	if r.cfg.DownloadDir != "" {
		if err := r.saveLocal(date, doc); err != nil {
			return r.failed(runID, date, StageWriting, err)
		}
	}

	return RunOutcome{
		RunID:     runID,
		Date:      date,
		Kind:      OutcomeSuccess,
		Partition: date.Partition(),
		Stage:     StageWriting,
	}
}

// runParseOnly processes a previously downloaded PDF from the local
// download directory. A missing file is reported as not published, the
// same signal a live fetch would have produced.
func (r *Runner) runParseOnly(ctx context.Context, runID string, date BusinessDate, logger *zap.Logger) RunOutcome {
	pattern := filepath.Join(r.cfg.DownloadDir, date.Compact()+"_*.pdf")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return r.failed(runID, date, StageFetching, fmt.Errorf("glob %s: %w", pattern, err))
	}
	if len(matches) == 0 {
		return r.notPublished(runID, date)
	}

	raw, err := os.ReadFile(matches[0])
	if err != nil {
		return r.failed(runID, date, StageFetching, fmt.Errorf("read %s: %w", matches[0], err))
	}
	return r.process(ctx, runID, date, raw, logger)
}

// process runs the document through extract, normalize, assemble, and
// write, producing the terminal outcome.
func (r *Runner) process(ctx context.Context, runID string, date BusinessDate, raw []byte, logger *zap.Logger) RunOutcome {
	rows, err := r.deps.Extractor.Extract(raw)
	if err != nil {
		return r.failed(runID, date, StageExtracting, err)
	}

	table, err := r.deps.Normalizer.Normalize(rows)
	if err != nil {
		return r.failed(runID, date, StageNormalizing, err)
	}

	ds, err := r.deps.Assembler.Assemble(table, date, r.cfg.ExpectRows)
	if err != nil {
		return r.failed(runID, date, StageAssembling, err)
	}
	if len(ds.Rows) == 0 {
		// A published document with an empty table is treated the same
		// as no publication at all when rows are not mandated.
		logger.Warn("Document parsed to zero rows")
		return r.notPublished(runID, date)
	}

	encoded, err := r.deps.Assembler.EncodeCSV(ds)
	if err != nil {
		return r.failed(runID, date, StageAssembling, err)
	}

	objectName := datasetObject(r.cfg.DatasetPrefix, date)
	if err := r.deps.Sink.Save(ctx, objectName, "text/csv", encoded); err != nil {
		return r.failed(runID, date, StageWriting, err)
	}

	if r.cfg.WriteChanges {
		changes := r.deps.Assembler.Changes(ds)
		encodedChanges, err := r.deps.Assembler.EncodeCSV(changes)
		if err != nil {
			return r.failed(runID, date, StageWriting, err)
		}
		changesName := datasetObject(r.cfg.ChangesPrefix, date)
		if err := r.deps.Sink.Save(ctx, changesName, "text/csv", encodedChanges); err != nil {
			return r.failed(runID, date, StageWriting, err)
		}
		logger.Info("Wrote ownership-change subset",
			zap.Int("rows", len(changes.Rows)),
			zap.String("object", changesName))
	}

	metrics.AddRowsWritten(len(ds.Rows))
	return RunOutcome{
		RunID:     runID,
		Date:      date,
		Kind:      OutcomeSuccess,
		Rows:      len(ds.Rows),
		Partition: date.Partition(),
		Stage:     StageWriting,
	}
}

// fetchWithRetry retries transient fetch failures per the retry policy.
// Not-published and permanent errors surface immediately.
func (r *Runner) fetchWithRetry(ctx context.Context, date BusinessDate, logger *zap.Logger) (Document, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		doc, err := r.deps.Fetcher.Fetch(ctx, date)
		if err == nil {
			metrics.ObserveFetchAttempt("success")
			return doc, nil
		}
		if errors.Is(err, ErrNotPublished) {
			metrics.ObserveFetchAttempt("not_published")
			return Document{}, err
		}
		metrics.ObserveFetchAttempt("error")
		lastErr = err

		if !r.deps.Retry.ShouldRetry(err, attempt) {
			return Document{}, lastErr
		}
		backoff := r.deps.Retry.Backoff(attempt)
		logger.Warn("Fetch attempt failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Document{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Runner) archiveRaw(ctx context.Context, date BusinessDate, doc Document) error {
	name := r.cfg.RawPrefix + "/" + date.Partition() + "/" + rawFilename(date, doc)
	return r.deps.Sink.Save(ctx, name, "application/pdf", doc.Bytes)
}

func (r *Runner) saveLocal(date BusinessDate, doc Document) error {
	if err := os.MkdirAll(r.cfg.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	path := filepath.Join(r.cfg.DownloadDir, rawFilename(date, doc))
	if err := os.WriteFile(path, doc.Bytes, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// rawFilename prefixes the attachment name with the compact date so the
// parse phase can locate the file for a given date by glob.
func rawFilename(date BusinessDate, doc Document) string {
	base := doc.Filename
	if base == "" {
		base = "disclosure.pdf"
	}
	return date.Compact() + "_" + filepath.Base(base)
}

func datasetObject(prefix string, date BusinessDate) string {
	return prefix + "/" + date.Partition() + "/" + date.Compact() + ".csv"
}

func (r *Runner) notPublished(runID string, date BusinessDate) RunOutcome {
	return RunOutcome{
		RunID: runID,
		Date:  date,
		Kind:  OutcomeNotPublished,
		Stage: StageFetching,
	}
}

func (r *Runner) failed(runID string, date BusinessDate, stage Stage, err error) RunOutcome {
	return RunOutcome{
		RunID:   runID,
		Date:    date,
		Kind:    OutcomeFailed,
		Stage:   stage,
		ErrKind: ErrorKind(err),
		Err:     err.Error(),
	}
}

// record persists the outcome to history and notifies subscribers. Both
// are best effort and never change the outcome itself.
func (r *Runner) record(ctx context.Context, outcome RunOutcome, logger *zap.Logger) {
	if r.deps.History != nil {
		if err := r.deps.History.RecordRun(ctx, outcome); err != nil {
			logger.Warn("Failed to record run history", zap.Error(err))
		}
	}
	if r.deps.Notifier != nil {
		if err := r.deps.Notifier.Publish(ctx, outcome); err != nil {
			logger.Warn("Failed to publish run outcome", zap.Error(err))
		}
	}
}

func (r *Runner) now() time.Time {
	if r.deps.Clock != nil {
		return r.deps.Clock.Now()
	}
	return time.Now().UTC()
}

func (r *Runner) newRunID() string {
	if r.deps.IDs == nil {
		return "unidentified"
	}
	id, err := r.deps.IDs.NewID()
	if err != nil {
		return "unidentified"
	}
	return id
}
