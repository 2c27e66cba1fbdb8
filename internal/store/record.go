package store

import (
	"time"

	"github.com/verte-zerg/curricheck/internal/apperr"
	"github.com/verte-zerg/curricheck/internal/model"
)

// NewRecord describes one analysis attempt for the history log.
func NewRecord(fileName string, startedAt, endedAt time.Time, pairs []model.RedundancyPair, err error) model.AnalysisRecord {
	rec := model.AnalysisRecord{
		FileName:   fileName,
		AnalyzedAt: endedAt,
		DurationMs: endedAt.Sub(startedAt).Milliseconds(),
		Outcome:    OutcomeOK,
		Pairs:      pairs,
		PairCount:  len(pairs),
	}
	if err != nil {
		rec.Outcome = OutcomeError
		rec.Message = apperr.UserMessage(err)
		rec.Pairs = nil
		rec.PairCount = 0
	}
	return rec
}
