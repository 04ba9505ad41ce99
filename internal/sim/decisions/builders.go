package decisions

import (
	"fmt"
	"strings"

	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/tuning"
)

const (
	TagVenue    = "paper.venue"
	TagRevision = "paper.revision"
)

// Venue asks which tier of venue a fresh paper goes to.
func Venue(id string, p model.Paper, now model.Quarter, venues map[model.Tier]tuning.VenueTuning) model.DecisionEvent {
	var opts []model.DecisionOption
	for _, tier := range []model.Tier{model.TierA, model.TierB, model.TierC} {
		v := venues[tier]
		label := v.Label
		if label == "" {
			label = fmt.Sprintf("Submit to a tier-%s venue", tier)
		}
		o := model.DecisionOption{
			ID:      "venue_" + strings.ToLower(string(tier)),
			Label:   label,
			Outcome: fmt.Sprintf("%q goes out to a tier-%s venue.", p.Title, tier),
			Hint:    v.Hint,
			Meta:    model.OptionMeta{VenueTier: tier},
		}
		if !v.Stress.IsZero() {
			d := v.Stress
			o.Effects = &model.Effects{Student: &d}
		}
		opts = append(opts, o)
	}
	return model.DecisionEvent{
		ID:        id,
		Kind:      model.KindProjectVenue,
		Title:     "Where to submit?",
		Prompt:    fmt.Sprintf("%q is ready. Pick a venue.", p.Title),
		Options:   opts,
		CreatedAt: now,
		Context:   paperContext(p, TagVenue),
	}
}

// Revision asks how to answer a revise-and-resubmit. Downgrading is only
// offered while a lower tier exists.
func Revision(id string, p model.Paper, now model.Quarter) model.DecisionEvent {
	kind := p.RevisionKind
	if kind == "" {
		kind = model.RevisionMinor
	}
	opts := []model.DecisionOption{{
		ID:      "revise",
		Label:   fmt.Sprintf("Do the %s revision", kind),
		Outcome: fmt.Sprintf("The team reworks %q and resubmits.", p.Title),
		Hint:    "same venue, better odds each round",
		Effects: &model.Effects{Student: &model.StudentDelta{Stress: model.Int(2)}},
		Meta:    model.OptionMeta{Revision: model.RevisionRevise},
	}}
	if lower, ok := p.Venue.Downgrade(); ok {
		opts = append(opts, model.DecisionOption{
			ID:      "downgrade",
			Label:   fmt.Sprintf("Send it to a tier-%s venue instead", lower),
			Outcome: fmt.Sprintf("%q moves to a tier-%s venue.", p.Title, lower),
			Hint:    "easier, smaller reward",
			Meta:    model.OptionMeta{Revision: model.RevisionDowngrade},
		})
	}
	opts = append(opts, model.DecisionOption{
		ID:      "withdraw",
		Label:   "Withdraw the paper",
		Outcome: fmt.Sprintf("%q is withdrawn.", p.Title),
		Effects: &model.Effects{Student: &model.StudentDelta{PendingPapers: model.Int(-1), MentalState: model.Int(-2)}},
		Meta:    model.OptionMeta{Revision: model.RevisionWithdraw},
	})
	return model.DecisionEvent{
		ID:        id,
		Kind:      model.KindProjectRevision,
		Title:     fmt.Sprintf("%s revision requested", strings.ToUpper(string(kind[:1]))+string(kind[1:])),
		Prompt:    fmt.Sprintf("Reviewers want a %s revision of %q (round %d).", kind, p.Title, p.RevisionRound+1),
		Options:   opts,
		CreatedAt: now,
		Context:   paperContext(p, TagRevision),
	}
}

func paperContext(p model.Paper, tag string) model.DecisionContext {
	return model.DecisionContext{
		ProjectID: p.ProjectID,
		PaperID:   p.ID,
		GrantID:   p.GrantID,
		StudentID: p.LeadStudentID,
		Tag:       tag,
	}
}
