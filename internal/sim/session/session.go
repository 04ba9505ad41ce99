// Package session owns one running game: the state, the single in-flight
// quarter settlement, and every operation the player can take.
package session

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"mentorsim.ai/internal/sim/catalogs"
	"mentorsim.ai/internal/sim/ids"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/narrative"
	"mentorsim.ai/internal/sim/rng"
	"mentorsim.ai/internal/sim/tuning"
)

var (
	ErrSettling         = errors.New("a quarter is already being settled")
	ErrNotFound         = errors.New("not found")
	ErrInvalid          = errors.New("invalid request")
	ErrSettlementFailed = errors.New("quarter settlement failed")
)

type Options struct {
	Tuning   tuning.Tuning
	Catalogs *catalogs.Catalogs
	// Narrative answers grant, student and quarter events. Nil means
	// templates only.
	Narrative *narrative.Service
	// NewID mints entity and decision ids. Nil means ids.New.
	NewID ids.Generator
	// Source returns the random stream for settling a quarter. Nil means
	// rng.ForQuarter.
	Source func(seed int64, quarterIndex int) rng.Source
	Logger *log.Logger
}

type Session struct {
	mu       sync.Mutex
	settling atomic.Bool
	state    model.State

	tu        tuning.Tuning
	cats      *catalogs.Catalogs
	narrative *narrative.Service
	newID     ids.Generator
	source    func(seed int64, quarterIndex int) rng.Source
	logger    *log.Logger
	tracer    trace.Tracer
}

func newSession(opts Options) *Session {
	s := &Session{
		tu:        opts.Tuning,
		cats:      opts.Catalogs,
		narrative: opts.Narrative,
		newID:     opts.NewID,
		source:    opts.Source,
		logger:    opts.Logger,
		tracer:    otel.Tracer("mentorsim.ai/internal/sim/session"),
	}
	if s.cats == nil {
		s.cats = &catalogs.Catalogs{}
	}
	if s.newID == nil {
		s.newID = ids.New
	}
	if s.source == nil {
		s.source = rng.ForQuarter
	}
	if s.narrative == nil {
		s.narrative = narrative.NewService(nil, s.cats.Narratives, s.tu.Effects, s.logger)
	}
	return s
}

// New starts a fresh game in year 1, quarter 1.
func New(opts Options, mentorName string, seed int64) *Session {
	s := newSession(opts)
	s.state = model.State{
		Version:  model.StateVersion,
		Seed:     seed,
		Now:      model.Quarter{Year: 1, Q: 1},
		Mentor:   model.Mentor{Name: mentorName, Stats: s.tu.Mentor.Start},
		Students: []model.Student{},
		Projects: []model.Project{},
		Papers:   []model.Paper{},
		Grants:   []model.Grant{},
		Backlog:  []model.DecisionEvent{},
		Log:      []model.LogEntry{},
	}
	return s
}

// Load resumes a persisted game. The state is repaired first; the returned
// notes describe every repair (they are also in the game log).
func Load(opts Options, st model.State) (*Session, []string) {
	s := newSession(opts)
	fixed, notes := Repair(st.Clone(), s.cats.Traits, s.tu.Effects, s.newID)
	s.state = fixed
	for _, n := range notes {
		s.logf("repair: %s", n)
	}
	return s, notes
}

// State returns a deep copy of the current state.
func (s *Session) State() model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Session) Now() model.Quarter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Now
}

// Active returns the decision waiting on the player, if any.
func (s *Session) Active() (model.DecisionEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.state.Backlog) == 0 {
		return model.DecisionEvent{}, false
	}
	return s.state.Backlog[0], true
}

func (s *Session) Settling() bool { return s.settling.Load() }

func (s *Session) Tuning() tuning.Tuning { return s.tu }

func (s *Session) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// mutate runs fn on a copy of the state and commits the copy only when fn
// succeeds, so no operation is ever partially applied.
func (s *Session) mutate(fn func(st *model.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	s.state = next
	return nil
}
