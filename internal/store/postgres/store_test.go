package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/arxiv-harvester/internal/harvest"
)

func testPaper() harvest.Paper {
	published := time.Date(2025, time.March, 2, 9, 30, 0, 0, time.UTC)
	return harvest.Paper{
		Title:           "Scaling Laws Revisited",
		Abstract:        "We revisit scaling laws for language models.",
		Authors:         []string{"A. Researcher", "B. Scientist"},
		Published:       published,
		Updated:         published,
		ArxivID:         "2503.00001v1",
		URL:             "https://arxiv.org/pdf/2503.00001v1",
		Categories:      []string{"cs.CL", "cs.LG"},
		PrimaryCategory: "cs.CL",
	}
}

func TestMergeInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "papers")
	require.NoError(t, err)

	p := testPaper()
	mock.ExpectExec("INSERT INTO papers").
		WithArgs(
			p.ArxivID,
			p.Title,
			p.Abstract,
			[]byte(`["A. Researcher","B. Scientist"]`),
			p.Published,
			p.Updated,
			p.URL,
			[]byte(`["cs.CL","cs.LG"]`),
			p.PrimaryCategory,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	added, err := store.Merge(context.Background(), []harvest.Paper{p})
	require.NoError(t, err)
	require.Equal(t, 1, added)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeCountsOnlyNewRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "papers")
	require.NoError(t, err)

	p := testPaper()
	dup := testPaper()
	dup.ArxivID = "2503.00002v1"

	anyArgs := []interface{}{
		pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
	}
	mock.ExpectExec("INSERT INTO papers").
		WithArgs(anyArgs...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Conflict: zero rows affected.
	mock.ExpectExec("INSERT INTO papers").
		WithArgs(anyArgs...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	added, err := store.Merge(context.Background(), []harvest.Paper{p, dup})
	require.NoError(t, err)
	require.Equal(t, 1, added)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeStopsOnExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "papers")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO papers").
		WillReturnError(errors.New("connection reset"))

	added, err := store.Merge(context.Background(), []harvest.Paper{testPaper()})
	require.Error(t, err)
	require.Zero(t, added)
}

func TestMergeRejectsMissingID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "papers")
	require.NoError(t, err)

	p := testPaper()
	p.ArxivID = ""
	_, err = store.Merge(context.Background(), []harvest.Paper{p})
	require.Error(t, err)
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "papers; DROP TABLE papers")
	require.Error(t, err)
}
