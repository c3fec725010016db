package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
)

func sampleOutcome() etl.RunOutcome {
	return etl.RunOutcome{
		RunID:     "7e6c7e0a-8f49-4f41-9f5e-0a9a4d6c2b11",
		Date:      etl.NewBusinessDate(2025, time.December, 17),
		Kind:      etl.OutcomeSuccess,
		Rows:      1766,
		Partition: "dt=2025-12-17",
		Stage:     etl.StageWriting,
	}
}

func TestRecordRun_InsertsOneRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	outcome := sampleOutcome()
	mock.ExpectExec("INSERT INTO etl_runs").
		WithArgs(
			outcome.RunID,
			"2025-12-17",
			"success",
			1766,
			"dt=2025-12-17",
			"writing",
			"",
			"",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	p := NewWithDB(mock)
	require.NoError(t, p.RecordRun(context.Background(), outcome))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRun_FailedRunCarriesErrorKind(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	outcome := etl.RunOutcome{
		RunID:   "3a1f0e6a-1b2c-4d5e-8f90-6a7b8c9d0e1f",
		Date:    etl.NewBusinessDate(2025, time.December, 18),
		Kind:    etl.OutcomeFailed,
		Stage:   etl.StageFetching,
		ErrKind: "permanent",
		Err:     "permanent: download: status 404",
	}
	mock.ExpectExec("INSERT INTO etl_runs").
		WithArgs(
			outcome.RunID,
			"2025-12-18",
			"failed",
			0,
			"",
			"fetching",
			"permanent",
			outcome.Err,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	p := NewWithDB(mock)
	require.NoError(t, p.RecordRun(context.Background(), outcome))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRun_PropagatesInsertError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO etl_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	p := NewWithDB(mock)
	err = p.RecordRun(context.Background(), sampleOutcome())
	require.Error(t, err)
	require.Contains(t, err.Error(), "insert run record")
}

func TestNoOpProvider(t *testing.T) {
	t.Parallel()

	var p NoOpProvider
	require.NoError(t, p.RecordRun(context.Background(), sampleOutcome()))
	require.NoError(t, p.Close())
}
