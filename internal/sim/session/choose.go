package session

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mentorsim.ai/internal/sim/decisions"
	"mentorsim.ai/internal/sim/mathx"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/papers"
)

// ChooseOption resolves a queued decision: the outcome is logged, the
// mentor delta applied, the student delta broadcast to every target, the
// kind's side effect run, and the decision removed. Nothing is applied if
// any step fails.
func (s *Session) ChooseOption(ctx context.Context, decisionID, optionID string) (model.DecisionOption, error) {
	_, span := s.tracer.Start(ctx, "session.ChooseOption", trace.WithAttributes(
		attribute.String("decision", decisionID), attribute.String("option", optionID)))
	defer span.End()

	var chosen model.DecisionOption
	err := s.mutate(func(st *model.State) error {
		q := decisions.Queue(st.Backlog)
		d, ok := q.Get(decisionID)
		if !ok {
			return fmt.Errorf("%w: decision %s", ErrNotFound, decisionID)
		}
		opt, ok := d.Option(optionID)
		if !ok {
			return fmt.Errorf("%w: option %s on %s", ErrNotFound, optionID, decisionID)
		}
		if err := s.resolve(st, d, opt); err != nil {
			return err
		}
		q = decisions.Queue(st.Backlog)
		q.Remove(d.ID)
		st.Backlog = q
		chosen = opt
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "choose")
		return model.DecisionOption{}, err
	}
	return chosen, nil
}

func (s *Session) resolve(st *model.State, d model.DecisionEvent, opt model.DecisionOption) error {
	text := opt.Outcome
	if text == "" {
		text = opt.Label
	}
	st.AddLog(model.LogDecision, fmt.Sprintf("%s: %s", d.Title, text))

	if opt.Effects != nil {
		if opt.Effects.Mentor != nil {
			st.Mentor.Stats = model.ApplyMentorDelta(st.Mentor.Stats, *opt.Effects.Mentor)
		}
		if opt.Effects.Student != nil {
			for _, id := range targets(st, d) {
				if stu, ok := st.Student(id); ok {
					*stu = model.ApplyStudentDelta(*stu, *opt.Effects.Student)
				}
			}
		}
	}

	meta := opt.Meta
	switch d.Kind {
	case model.KindProjectVenue:
		return s.withPaper(st, d, func(p model.Paper) (model.Paper, error) {
			return papers.AssignVenue(p, meta.VenueTier, st.Now, s.tu.Papers)
		})
	case model.KindProjectRevision:
		return s.withPaper(st, d, func(p model.Paper) (model.Paper, error) {
			return papers.ApplyRevision(p, meta.Revision, st.Now, s.tu.Papers)
		})
	case model.KindGrantReviewEvent:
		if g, ok := st.Grant(d.Context.GrantID); ok && g.Status == model.GrantReviewing {
			if meta.ScoreDelta != nil {
				g.ScoreDelta += *meta.ScoreDelta
			}
			if meta.LuckDelta != nil {
				g.Luck += *meta.LuckDelta
			}
		}
	case model.KindGrantExecutionEvent:
		if g, ok := st.Grant(d.Context.GrantID); ok && g.Status == model.GrantActive && meta.ProgressDelta != nil {
			g.PaperProgress = mathx.MaxInt(g.PaperProgress+*meta.ProgressDelta, 0)
		}
	case model.KindQuarterEvent:
		if meta.Action == model.ActionLeave {
			if stu, ok := st.Student(d.Context.StudentID); ok {
				name := stu.Name
				dismiss(st, stu.ID)
				st.AddLog(model.LogRoster, fmt.Sprintf("%s left the team.", name))
			}
		}
	}
	return nil
}

// withPaper runs a paper transition for a paper decision. A paper that is
// gone or has already moved on makes the decision stale: it resolves with
// no side effect.
func (s *Session) withPaper(st *model.State, d model.DecisionEvent, fn func(model.Paper) (model.Paper, error)) error {
	p, ok := st.Paper(d.Context.PaperID)
	if !ok {
		return nil
	}
	next, err := fn(*p)
	switch {
	case errors.Is(err, papers.ErrWrongStatus):
		s.logf("decision %s is stale: %v", d.ID, err)
		return nil
	case err != nil:
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	*p = next
	return nil
}

// targets resolves the students a decision's student delta applies to.
// Stale ids are dropped.
func targets(st *model.State, d model.DecisionEvent) []string {
	var ids []string
	switch d.Kind {
	case model.KindProjectVenue, model.KindProjectRevision:
		if p, ok := st.Paper(d.Context.PaperID); ok && p.LeadStudentID != "" {
			ids = []string{p.LeadStudentID}
		}
	case model.KindGrantReviewEvent, model.KindGrantExecutionEvent:
		if g, ok := st.Grant(d.Context.GrantID); ok {
			ids = append(ids, g.AssignedStudentIDs...)
		}
	case model.KindStudentPaperEvent:
		ids = []string{d.Context.StudentID}
	case model.KindQuarterEvent:
		if d.Context.StudentID != "" {
			ids = []string{d.Context.StudentID}
			break
		}
		for _, stu := range st.Students {
			ids = append(ids, stu.ID)
		}
	}
	out := ids[:0:0]
	for _, id := range ids {
		if st.StudentIndex(id) >= 0 {
			out = append(out, id)
		}
	}
	return out
}
