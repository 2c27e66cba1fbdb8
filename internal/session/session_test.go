package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/curricheck/internal/analysis"
	"github.com/verte-zerg/curricheck/internal/apperr"
	"github.com/verte-zerg/curricheck/internal/model"
	"github.com/verte-zerg/curricheck/internal/sheet"
	"github.com/verte-zerg/curricheck/internal/sheet/sheettest"
)

func countingAnalyzer(calls *int32, pairs []model.RedundancyPair, err error) analysis.Analyzer {
	return analysis.AnalyzerFunc(func(context.Context, model.UploadedFile) ([]model.RedundancyPair, error) {
		atomic.AddInt32(calls, 1)
		return pairs, err
	})
}

func loaded(t *testing.T) *Session {
	t.Helper()
	s := New()
	require.NoError(t, s.Upload(sheettest.Courses(t), sheet.Parse))
	require.Equal(t, Loaded, s.State())
	return s
}

func TestUploadRejectsBadExtensionAndKeepsState(t *testing.T) {
	for _, start := range []*Session{New(), loaded(t)} {
		before := start.Snapshot()
		err := start.Upload(model.UploadedFile{Name: "courses.csv", Data: []byte("a,b")}, sheet.Parse)
		assert.ErrorIs(t, err, apperr.ErrValidation)
		assert.Equal(t, before, start.Snapshot())
	}
}

func TestUploadRejectsMalformedWorkbookAndKeepsState(t *testing.T) {
	s := loaded(t)
	before := s.Snapshot()
	err := s.Upload(model.UploadedFile{Name: "broken.xlsx", Data: []byte("nope")}, sheet.Parse)
	assert.ErrorIs(t, err, apperr.ErrFormat)
	assert.Equal(t, before, s.Snapshot())
}

func TestAnalyzeFromEmptyNeverCallsService(t *testing.T) {
	var calls int32
	s := New()
	err := s.Analyze(context.Background(), countingAnalyzer(&calls, nil, nil))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.Equal(t, Empty, s.State())
}

func TestAnalyzeSuccessMovesToAnalyzed(t *testing.T) {
	var calls int32
	want := []model.RedundancyPair{{First: "Math101", Second: "Math102", Similarity: 0.87}}
	s := loaded(t)
	require.NoError(t, s.Analyze(context.Background(), countingAnalyzer(&calls, want, nil)))

	snap := s.Snapshot()
	assert.Equal(t, Analyzed, snap.State)
	assert.Equal(t, want, snap.Pairs)
	assert.False(t, s.InFlight())
}

func TestAnalyzeServiceErrorRestoresPriorState(t *testing.T) {
	var calls int32
	s := loaded(t)
	err := s.Analyze(context.Background(), countingAnalyzer(&calls, nil, apperr.Service("bad file")))
	assert.ErrorIs(t, err, apperr.ErrService)
	assert.Equal(t, Loaded, s.State())

	first := []model.RedundancyPair{{First: "a", Second: "b", Similarity: 0.9}}
	require.NoError(t, s.Analyze(context.Background(), countingAnalyzer(&calls, first, nil)))
	err = s.Analyze(context.Background(), countingAnalyzer(&calls, nil, apperr.Network("down", errors.New("refused"))))
	assert.ErrorIs(t, err, apperr.ErrNetwork)

	snap := s.Snapshot()
	assert.Equal(t, Analyzed, snap.State)
	assert.Equal(t, first, snap.Pairs)
}

func TestReanalyzeReplacesResultsWholesale(t *testing.T) {
	var calls int32
	s := loaded(t)
	require.NoError(t, s.Analyze(context.Background(), countingAnalyzer(&calls, []model.RedundancyPair{
		{First: "a", Second: "b", Similarity: 0.8},
		{First: "c", Second: "d", Similarity: 0.9},
	}, nil)))
	next := []model.RedundancyPair{{First: "e", Second: "f", Similarity: 0.76}}
	require.NoError(t, s.Analyze(context.Background(), countingAnalyzer(&calls, next, nil)))
	assert.Equal(t, next, s.Snapshot().Pairs)
}

func TestClearFromAnyStateThenAnalyzeIsValidation(t *testing.T) {
	var calls int32
	analyzed := loaded(t)
	require.NoError(t, analyzed.Analyze(context.Background(), countingAnalyzer(&calls, nil, nil)))
	analyzing := loaded(t)
	_, err := analyzing.BeginAnalysis()
	require.NoError(t, err)

	for _, s := range []*Session{New(), loaded(t), analyzing, analyzed} {
		s.Clear()
		snap := s.Snapshot()
		assert.Equal(t, Empty, snap.State)
		assert.Nil(t, snap.File)
		assert.True(t, snap.Dataset.Empty())
		assert.Empty(t, snap.Pairs)
	}

	before := atomic.LoadInt32(&calls)
	s := New()
	s.Clear()
	assert.ErrorIs(t, s.Analyze(context.Background(), countingAnalyzer(&calls, nil, nil)), apperr.ErrValidation)
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestSecondAnalyzeWhileInFlightIsRejected(t *testing.T) {
	s := loaded(t)
	ticket, err := s.BeginAnalysis()
	require.NoError(t, err)

	_, err = s.BeginAnalysis()
	assert.ErrorIs(t, err, ErrAnalysisInFlight)
	assert.Equal(t, Analyzing, s.State())

	require.NoError(t, s.CompleteAnalysis(ticket, nil, nil))
	_, err = s.BeginAnalysis()
	assert.NoError(t, err)
}

func TestStaleResultAfterClearIsDiscarded(t *testing.T) {
	s := loaded(t)
	ticket, err := s.BeginAnalysis()
	require.NoError(t, err)

	s.Clear()
	err = s.CompleteAnalysis(ticket, []model.RedundancyPair{{First: "a", Second: "b", Similarity: 1}}, nil)
	assert.ErrorIs(t, err, ErrStaleResult)

	snap := s.Snapshot()
	assert.Equal(t, Empty, snap.State)
	assert.Empty(t, snap.Pairs)
	assert.False(t, s.InFlight())
}

func TestStaleResultAfterUploadIsDiscarded(t *testing.T) {
	s := loaded(t)
	ticket, err := s.BeginAnalysis()
	require.NoError(t, err)

	other := sheettest.File(t, "other.xlsx", sheettest.Sheet{Name: "Sheet1", Rows: [][]any{{"Bio"}, {"Bio101"}}})
	require.NoError(t, s.Upload(other, sheet.Parse))

	// A stale request still occupies the single network slot.
	_, err = s.BeginAnalysis()
	assert.ErrorIs(t, err, ErrAnalysisInFlight)

	err = s.CompleteAnalysis(ticket, []model.RedundancyPair{{First: "a", Second: "b", Similarity: 1}}, nil)
	assert.ErrorIs(t, err, ErrStaleResult)

	snap := s.Snapshot()
	assert.Equal(t, Loaded, snap.State)
	assert.Equal(t, "other.xlsx", snap.File.Name)
	assert.Empty(t, snap.Pairs)

	_, err = s.BeginAnalysis()
	assert.NoError(t, err)
}

func TestUploadDiscardsPreviousResults(t *testing.T) {
	var calls int32
	s := loaded(t)
	require.NoError(t, s.Analyze(context.Background(), countingAnalyzer(&calls, []model.RedundancyPair{{First: "a", Second: "b", Similarity: 0.9}}, nil)))
	require.NoError(t, s.Upload(sheettest.Courses(t), sheet.Parse))
	snap := s.Snapshot()
	assert.Equal(t, Loaded, snap.State)
	assert.Empty(t, snap.Pairs)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := loaded(t)
	snap := s.Snapshot()
	snap.Dataset.Rows[0][0] = model.TextCell("mutated")
	snap.File.Data[0] = 0
	fresh := s.Snapshot()
	assert.NotEqual(t, model.TextCell("mutated"), fresh.Dataset.Rows[0][0])
	assert.NotEqual(t, snap.File.Data, fresh.File.Data)
}
