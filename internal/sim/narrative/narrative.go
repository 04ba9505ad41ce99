// Package narrative turns simulation situations into decision text. The
// external generator only ever supplies flavor: its output is validated,
// re-clamped, and replaced with a local template whenever it is unusable.
package narrative

import (
	"context"
	"encoding/json"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mentorsim.ai/internal/sim/catalogs"
	"mentorsim.ai/internal/sim/model"
)

// Category/stage tags. Fallback templates are keyed by the same tags.
const (
	TagGrantReview    = "grant.review"
	TagGrantExecution = "grant.execution"
	TagStudentPaper   = "student.paper"
	TagQuarterSchool  = "quarter.school"
	TagQuarterTeam    = "quarter.team"
	TagQuarterLeave   = "quarter.leave"
)

// KindFor maps a tag onto the decision kind it produces.
func KindFor(tag string) model.DecisionKind {
	switch tag {
	case TagGrantReview:
		return model.KindGrantReviewEvent
	case TagGrantExecution:
		return model.KindGrantExecutionEvent
	case TagStudentPaper:
		return model.KindStudentPaperEvent
	}
	return model.KindQuarterEvent
}

type TeamMember struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Type          model.StudentType `json:"type"`
	Year          int               `json:"year"`
	Diligence     int               `json:"diligence"`
	Talent        int               `json:"talent"`
	Stress        int               `json:"stress"`
	MentalState   int               `json:"mental_state"`
	PendingPapers int               `json:"pending_papers"`
	Traits        []string          `json:"traits,omitempty"`
}

func MemberOf(s model.Student) TeamMember {
	return TeamMember{
		ID: s.ID, Name: s.Name, Type: s.Type, Year: s.Year,
		Diligence: s.Diligence, Talent: s.Talent, Stress: s.Stress, MentalState: s.MentalState,
		PendingPapers: s.PendingPapers, Traits: s.Traits,
	}
}

type Aggregates struct {
	TeamSize          int     `json:"team_size"`
	ActiveGrants      int     `json:"active_grants"`
	PapersUnderReview int     `json:"papers_under_review"`
	AcceptedPapers    int     `json:"accepted_papers"`
	MeanStress        float64 `json:"mean_stress"`
	MeanMentalState   float64 `json:"mean_mental_state"`
}

// Situation is everything the generator is told about one decision.
type Situation struct {
	Tag     string            `json:"tag"`
	Now     model.Quarter     `json:"now"`
	Mentor  model.MentorStats `json:"mentor"`
	Stats   Aggregates        `json:"stats"`
	Team    []TeamMember      `json:"team"`
	Grant   *model.Grant      `json:"grant,omitempty"`
	Student *TeamMember       `json:"student,omitempty"`
}

// Request is one decision the simulation wants text for. ID and Context
// are fixed by the caller; the generator cannot change them.
type Request struct {
	ID        string
	Situation Situation
	Context   model.DecisionContext
}

// Generator is the external text service. It returns raw JSON drafts;
// nothing it returns is trusted before Decode.
type Generator interface {
	Generate(ctx context.Context, s Situation) (json.RawMessage, error)
	GenerateBatch(ctx context.Context, s []Situation) ([]json.RawMessage, error)
}

// Service resolves requests into decisions and never fails: every error
// path ends in a fallback template.
type Service struct {
	gen       Generator
	templates catalogs.NarrativeCatalog
	bounds    model.EffectBounds
	logger    *log.Logger
	tracer    trace.Tracer
}

// NewService returns a service. gen may be nil, in which case every request
// is answered from templates.
func NewService(gen Generator, templates catalogs.NarrativeCatalog, bounds model.EffectBounds, logger *log.Logger) *Service {
	return &Service{
		gen:       gen,
		templates: templates,
		bounds:    bounds,
		logger:    logger,
		tracer:    otel.Tracer("mentorsim.ai/internal/sim/narrative"),
	}
}

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Event resolves a single request.
func (s *Service) Event(ctx context.Context, req Request) model.DecisionEvent {
	ctx, span := s.tracer.Start(ctx, "narrative.Event", trace.WithAttributes(attribute.String("tag", req.Situation.Tag)))
	defer span.End()

	if s.gen == nil {
		return s.fallback(req)
	}
	raw, err := s.gen.Generate(ctx, req.Situation)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate")
		s.logf("narrative %s: generator failed, using fallback: %v", req.Situation.Tag, err)
		return s.fallback(req)
	}
	ev, err := s.build(raw, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		s.logf("narrative %s: rejected draft, using fallback: %v", req.Situation.Tag, err)
		return s.fallback(req)
	}
	return ev
}

// Quarter resolves a batch with one generator call. A failed call falls back
// for every request; a bad item falls back for that item only.
func (s *Service) Quarter(ctx context.Context, reqs []Request) []model.DecisionEvent {
	if len(reqs) == 0 {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "narrative.Quarter", trace.WithAttributes(attribute.Int("requests", len(reqs))))
	defer span.End()

	out := make([]model.DecisionEvent, len(reqs))
	var raws []json.RawMessage
	if s.gen != nil {
		sits := make([]Situation, len(reqs))
		for i, r := range reqs {
			sits[i] = r.Situation
		}
		var err error
		raws, err = s.gen.GenerateBatch(ctx, sits)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "generate")
			s.logf("narrative quarter batch: generator failed, using fallback: %v", err)
			raws = nil
		} else if len(raws) != len(reqs) {
			s.logf("narrative quarter batch: got %d drafts for %d requests, using fallback", len(raws), len(reqs))
			raws = nil
		}
	}
	for i, r := range reqs {
		if raws == nil {
			out[i] = s.fallback(r)
			continue
		}
		ev, err := s.build(raws[i], r)
		if err != nil {
			s.logf("narrative %s: rejected draft, using fallback: %v", r.Situation.Tag, err)
			ev = s.fallback(r)
		}
		out[i] = ev
	}
	return out
}

func (s *Service) build(raw json.RawMessage, req Request) (model.DecisionEvent, error) {
	d, err := Decode(raw, s.bounds)
	if err != nil {
		return model.DecisionEvent{}, err
	}
	ev := d.Event(req.ID, req.Situation.Tag, req.Context, req.Situation.Now)
	if err := ev.Validate(); err != nil {
		return model.DecisionEvent{}, err
	}
	return ev, nil
}

func (s *Service) fallback(req Request) model.DecisionEvent {
	return Fallback(s.templates, s.bounds, req.ID, req.Situation.Tag, req.Context, req.Situation.Now)
}
