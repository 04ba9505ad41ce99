// Package papers moves research output from contribution to submissions
// and through external review.
package papers

import (
	"errors"
	"fmt"

	"mentorsim.ai/internal/sim/mathx"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/rng"
	"mentorsim.ai/internal/sim/tuning"
)

var (
	ErrWrongStatus = errors.New("paper is not in the required status")
	ErrBadTier     = errors.New("invalid venue tier")
	ErrBadAction   = errors.New("invalid revision action")
)

type Verdict string

const (
	VerdictNone     Verdict = ""
	VerdictAccepted Verdict = "accepted"
	VerdictRevision Verdict = "revision"
	VerdictRejected Verdict = "rejected"
)

// Outcome is what settling one paper did. Mentor is the mentor-level delta;
// Lead is the delta for the lead student (only meaningful when the paper
// has one).
type Outcome struct {
	Verdict Verdict
	Paper   model.Paper
	Mentor  model.MentorDelta
	Lead    model.StudentDelta
}

// New returns a paper waiting for a venue choice.
func New(id, title string, lead string, now model.Quarter) model.Paper {
	return model.Paper{
		ID:            id,
		Title:         title,
		LeadStudentID: lead,
		Status:        model.PaperAwaitingVenue,
		CreatedAt:     now,
	}
}

// AssignVenue submits p to a venue of tier; review ends after the tier's
// review duration.
func AssignVenue(p model.Paper, tier model.Tier, now model.Quarter, t tuning.PaperTuning) (model.Paper, error) {
	if p.Status != model.PaperAwaitingVenue {
		return p, fmt.Errorf("%w: %s is %s", ErrWrongStatus, p.ID, p.Status)
	}
	if !tier.Valid() {
		return p, fmt.Errorf("%w: %q", ErrBadTier, tier)
	}
	p.Venue = tier
	p.Status = model.PaperUnderReview
	p.DecisionDue = now.Add(t.ReviewQuarters[tier])
	return p, nil
}

// ApplyRevision resolves a paper waiting on a revision decision.
func ApplyRevision(p model.Paper, action model.RevisionAction, now model.Quarter, t tuning.PaperTuning) (model.Paper, error) {
	if p.Status != model.PaperAwaitingRevision {
		return p, fmt.Errorf("%w: %s is %s", ErrWrongStatus, p.ID, p.Status)
	}
	switch action {
	case model.RevisionRevise:
		kind := p.RevisionKind
		if kind == "" {
			kind = model.RevisionMinor
		}
		p.RevisionRound++
		p.Status = model.PaperUnderReview
		p.DecisionDue = now.Add(t.RevisionQuarters[kind])
	case model.RevisionDowngrade:
		lower, ok := p.Venue.Downgrade()
		if !ok {
			return p, fmt.Errorf("%w: %s already at the lowest tier", ErrBadAction, p.ID)
		}
		p.Venue = lower
		p.Status = model.PaperUnderReview
		p.DecisionDue = now.Add(t.DowngradeQuarters)
	case model.RevisionWithdraw:
		p.Status = model.PaperRejected
	default:
		return p, fmt.Errorf("%w: %q", ErrBadAction, action)
	}
	p.RevisionKind = ""
	return p, nil
}

// Chances returns the accept and revision probabilities for p. The sum is
// capped at CombinedMax by shrinking the revision chance only.
func Chances(p model.Paper, lead *model.Student, mentor model.MentorStats, t tuning.PaperTuning) (accept, revision float64) {
	academiaBoost := (mentor.Academia.Ratio() - 0.5) * 0.2
	leadBoost, stressPenalty := 0.0, 0.0
	if lead != nil {
		leadBoost = (float64(lead.Talent+lead.Diligence)/2 - 50) / 500
		stressPenalty = float64(mathx.MaxInt(0, lead.Stress-70)) / 300
	}
	revisionBoost := 0.06 * float64(mathx.MinInt(p.RevisionRound, 3))

	accept = t.BaseAcceptance[p.Venue] + academiaBoost + leadBoost + revisionBoost - stressPenalty
	accept = mathx.ClampFloat(accept, t.AcceptMin, t.AcceptMax)
	revision = t.BaseRevision[p.Venue]
	if accept+revision > t.CombinedMax {
		revision = mathx.ClampFloat(t.CombinedMax-accept, 0, revision)
	}
	return accept, revision
}

// Settle draws the review verdict for a paper whose decision is due. Papers
// in any other status, or not yet due, come back untouched with
// VerdictNone.
func Settle(p model.Paper, lead *model.Student, mentor model.MentorStats, now model.Quarter, t tuning.PaperTuning, src rng.Source) Outcome {
	if p.Status != model.PaperUnderReview || !now.Reached(p.DecisionDue) {
		return Outcome{Verdict: VerdictNone, Paper: p}
	}
	accept, revision := Chances(p, lead, mentor, t)
	roll := src.Float64()

	switch {
	case roll < accept:
		p.Status = model.PaperAccepted
		r := t.AcceptReward[p.Venue]
		return Outcome{
			Verdict: VerdictAccepted,
			Paper:   p,
			Mentor:  model.MentorDelta{Reputation: model.Int(r.Reputation), Funding: model.Int(r.Funding)},
			Lead:    t.AcceptStudent,
		}
	case roll < accept+revision:
		p.Status = model.PaperAwaitingRevision
		p.RevisionKind = model.RevisionMinor
		if rng.Chance(src, t.MajorChance(p.RevisionRound)) {
			p.RevisionKind = model.RevisionMajor
		}
		return Outcome{Verdict: VerdictRevision, Paper: p}
	default:
		p.Status = model.PaperRejected
		return Outcome{
			Verdict: VerdictRejected,
			Paper:   p,
			Mentor:  model.MentorDelta{Morale: model.Int(t.RejectMorale)},
			Lead:    t.RejectStudent,
		}
	}
}
