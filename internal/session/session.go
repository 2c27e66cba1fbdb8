// Package session holds the upload/analyze/clear workflow for one user.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/verte-zerg/curricheck/internal/analysis"
	"github.com/verte-zerg/curricheck/internal/apperr"
	"github.com/verte-zerg/curricheck/internal/model"
)

// State is a workflow position.
type State int

const (
	Empty State = iota
	Loaded
	Analyzing
	Analyzed
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Loaded:
		return "loaded"
	case Analyzing:
		return "analyzing"
	case Analyzed:
		return "analyzed"
	default:
		return "unknown"
	}
}

var (
	// ErrAnalysisInFlight is returned when analyze is requested while a request is pending.
	// Concurrent analyses are rejected, never queued.
	ErrAnalysisInFlight = errors.New("analysis already in progress")
	// ErrStaleResult marks an analysis outcome that arrived after the session moved on.
	ErrStaleResult = errors.New("analysis result is stale")
)

// ParseFunc decodes an upload into a dataset.
type ParseFunc func(model.UploadedFile) (model.TabularDataset, error)

// Ticket identifies one analysis request.
type Ticket struct {
	Generation uint64
	File       model.UploadedFile
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	State   State
	File    *model.UploadedFile
	Dataset model.TabularDataset
	Pairs   []model.RedundancyPair
}

// Session is the single in-memory SessionState plus its transition functions.
type Session struct {
	mu sync.Mutex

	state   State
	file    *model.UploadedFile
	dataset model.TabularDataset
	pairs   []model.RedundancyPair

	// generation changes on every upload or clear; tickets from older
	// generations are discarded.
	generation uint64
	inFlight   bool
	resumeTo   State
}

// New returns an empty session.
func New() *Session {
	return &Session{}
}

// State returns the current workflow state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InFlight reports whether a network request is pending, stale or not.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:   s.state,
		Dataset: s.dataset.Clone(),
		Pairs:   append([]model.RedundancyPair(nil), s.pairs...),
	}
	if s.file != nil {
		f := s.file.Clone()
		snap.File = &f
	}
	return snap
}

// Upload parses file and, on success, replaces file and dataset and drops
// any results. On failure the session is untouched.
func (s *Session) Upload(file model.UploadedFile, parse ParseFunc) error {
	ds, err := parse(file)
	if err != nil {
		return err
	}
	owned := file.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.file = &owned
	s.dataset = ds
	s.pairs = nil
	s.state = Loaded
	return nil
}

// Clear resets to Empty. A pending analysis keeps running but its result
// will be discarded.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.file = nil
	s.dataset = model.TabularDataset{}
	s.pairs = nil
	s.state = Empty
}

// BeginAnalysis moves to Analyzing and hands out a ticket for the request.
func (s *Session) BeginAnalysis() (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return Ticket{}, ErrAnalysisInFlight
	}
	if s.file == nil {
		return Ticket{}, apperr.Validation("Please upload an Excel file first.")
	}
	s.inFlight = true
	s.resumeTo = s.state
	s.state = Analyzing
	return Ticket{Generation: s.generation, File: s.file.Clone()}, nil
}

// CompleteAnalysis applies the outcome of ticket's request. Results are
// swapped in whole or not at all. A ticket from an older generation is
// dropped with ErrStaleResult and the session is left alone.
func (s *Session) CompleteAnalysis(t Ticket, pairs []model.RedundancyPair, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if t.Generation != s.generation {
		return ErrStaleResult
	}
	if s.state != Analyzing {
		return ErrStaleResult
	}
	if err != nil {
		s.state = s.resumeTo
		return err
	}
	s.pairs = append([]model.RedundancyPair(nil), pairs...)
	s.state = Analyzed
	return nil
}

// Analyze runs a whole analysis synchronously.
func (s *Session) Analyze(ctx context.Context, analyzer analysis.Analyzer) error {
	ticket, err := s.BeginAnalysis()
	if err != nil {
		return err
	}
	pairs, err := analyzer.Analyze(ctx, ticket.File)
	return s.CompleteAnalysis(ticket, pairs, err)
}
