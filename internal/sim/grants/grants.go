// Package grants runs the grant state machine: application, scored review,
// funded execution and closure.
package grants

import (
	"errors"
	"fmt"

	"mentorsim.ai/internal/sim/mathx"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/papers"
	"mentorsim.ai/internal/sim/rng"
	"mentorsim.ai/internal/sim/tuning"
)

var (
	ErrNotOpen        = errors.New("grant applications are closed this quarter")
	ErrAlreadyApplied = errors.New("already applied for this grant type this year")
)

const (
	luckWalk = 3

	progressMin       = 4
	progressMax       = 50
	mentorOnlyMin     = 2
	mentorOnlyMax     = 8
	progressPerPaper  = 100
	stressedAbove     = 70
	lowMentalBelow    = 35
	strugglingPenalty = 2
)

// Step is the result of advancing one grant by a quarter.
type Step struct {
	Grant  model.Grant
	Mentor model.MentorDelta
	// Event asks the caller to queue a review or execution decision.
	Event bool
	// Spawn is the number of new papers the grant produced.
	Spawn int
	Note  string
}

// CanApply checks the opening quarter and the once-per-year rule.
func CanApply(existing []model.Grant, typ model.GrantType, now model.Quarter, cfg tuning.GrantConfig) error {
	if now.Q != cfg.OpeningQuarter {
		return fmt.Errorf("%w: %s opens in Q%d", ErrNotOpen, typ, cfg.OpeningQuarter)
	}
	for _, g := range existing {
		if g.Type == typ && g.AppliedAt.Year == now.Year {
			return fmt.Errorf("%w: %s in year %d", ErrAlreadyApplied, typ, now.Year)
		}
	}
	return nil
}

// BaseScore rates an application from the mentor's standing and the team.
func BaseScore(mentor model.MentorStats, team []model.Student) int {
	meanCore := 50.0
	if len(team) > 0 {
		sum := 0.0
		for _, s := range team {
			sum += papers.CoreScore(s)
		}
		meanCore = sum / float64(len(team))
	}
	return 45 +
		mathx.Round(20*mentor.Academia.Ratio()) +
		mathx.MinInt(mentor.Reputation, 30)/2 +
		mathx.Round((meanCore-50)/5)
}

// New opens an application. The caller checks CanApply first.
func New(id string, typ model.GrantType, cfg tuning.GrantConfig, mentor model.MentorStats, team []model.Student, assigned []string, now model.Quarter) model.Grant {
	return model.Grant{
		ID:                 id,
		Title:              cfg.Title,
		Type:               typ,
		Status:             model.GrantReviewing,
		BaseScore:          BaseScore(mentor, team),
		AssignedStudentIDs: append([]string(nil), assigned...),
		PaperIDs:           []string{},
		AppliedAt:          now,
		ReviewEnd:          now.Add(cfg.ReviewQuarters),
	}
}

// TierFor maps a final score onto a tier; ok is false below the reject line.
func TierFor(score int, cfg tuning.GrantConfig) (tier model.Tier, ok bool) {
	switch {
	case score < cfg.RejectBelow:
		return "", false
	case score >= cfg.TierAFloor:
		return model.TierA, true
	case score >= cfg.TierBFloor:
		return model.TierB, true
	}
	return model.TierC, true
}

// SelectLead picks the assigned student with the highest diligence+talent,
// or the best student on the whole roster when nobody is assigned. Ties go
// to roster order. Returns "" for an empty roster.
func SelectLead(g model.Grant, roster []model.Student) string {
	var pool []model.Student
	for _, s := range roster {
		if g.HasStudent(s.ID) {
			pool = append(pool, s)
		}
	}
	if len(pool) == 0 {
		pool = roster
	}
	best, bestScore := "", -1
	for _, s := range pool {
		if v := s.Diligence + s.Talent; v > bestScore {
			best, bestScore = s.ID, v
		}
	}
	return best
}

// StepReviewing advances an application by one quarter: luck drifts, a
// review event may fire before the deadline, and at the deadline the final
// score decides between rejection and funding.
func StepReviewing(g model.Grant, now model.Quarter, cfg tuning.GrantConfig, roster []model.Student, src rng.Source) Step {
	if g.Status != model.GrantReviewing {
		return Step{Grant: g}
	}
	g.Luck += rng.Roll(src, -luckWalk, luckWalk)
	if now.Before(g.ReviewEnd) {
		return Step{Grant: g, Event: rng.Chance(src, cfg.ReviewEventChance)}
	}

	score := g.FinalScore()
	tier, ok := TierFor(score, cfg)
	if !ok {
		g.Status = model.GrantRejected
		return Step{
			Grant:  g,
			Mentor: model.MentorDelta{Morale: model.Int(cfg.RejectMorale)},
			Note:   fmt.Sprintf("%s was rejected (score %d).", g.Title, score),
		}
	}
	tc := cfg.Tiers[tier]
	g.Status = model.GrantActive
	g.Tier = tier
	g.FundingGranted = tc.Funding
	g.ReputationGranted = rng.Roll(src, tc.Reputation.Min, tc.Reputation.Max)
	g.ActiveStart = now
	g.ClosureDue = now.Add(cfg.ExecutionQuarters - 1)
	g.LeadStudentID = SelectLead(g, roster)
	g.PaperProgress = 0
	return Step{
		Grant:  g,
		Mentor: model.MentorDelta{Funding: model.Int(g.FundingGranted), Reputation: model.Int(g.ReputationGranted)},
		Spawn:  1,
		Note:   fmt.Sprintf("%s funded at tier %s (score %d).", g.Title, tier, score),
	}
}

// QuarterProgress is the paper progress an active grant makes in a quarter.
func QuarterProgress(g model.Grant, mentor model.MentorStats, roster []model.Student, cfg tuning.GrantConfig, src rng.Source) int {
	var team []model.Student
	for _, s := range roster {
		if g.HasStudent(s.ID) {
			team = append(team, s)
		}
	}
	if len(team) == 0 {
		return mathx.ClampInt(2+mathx.Round(6*mentor.Academia.Ratio()), mentorOnlyMin, mentorOnlyMax)
	}
	v := 0
	for _, s := range team {
		v += 4 + (s.Diligence+s.Talent)/20
		if s.Stress > stressedAbove {
			v -= strugglingPenalty
		}
		if s.MentalState < lowMentalBelow {
			v -= strugglingPenalty
		}
	}
	v += mathx.Round(6 * mentor.Academia.Ratio())
	v += mathx.Round(4 * mentor.Admin.Ratio())
	v += cfg.Tiers[g.Tier].ProgressBoost
	v += rng.Roll(src, -3, 3)
	return mathx.ClampInt(v, progressMin, progressMax)
}

// StepActive advances a funded grant by one quarter. Before the closure
// deadline it accrues paper progress and may fire an execution event; at the
// deadline it is evaluated against its tier's requirement.
func StepActive(g model.Grant, now model.Quarter, cfg tuning.GrantConfig, mentor model.MentorStats, roster []model.Student, all []model.Paper, src rng.Source) Step {
	if g.Status != model.GrantActive {
		return Step{Grant: g}
	}
	if now.Reached(g.ClosureDue) {
		return Evaluate(g, all, cfg)
	}
	g.PaperProgress += QuarterProgress(g, mentor, roster, cfg, src)
	spawn := g.PaperProgress / progressPerPaper
	g.PaperProgress %= progressPerPaper
	return Step{Grant: g, Spawn: spawn, Event: rng.Chance(src, cfg.ExecutionEventChance)}
}

// Tally counts a grant's submitted and accepted papers and whether any
// accepted paper reached minTier.
func Tally(grantID string, all []model.Paper, minTier model.Tier) (submissions, acceptances int, quality bool) {
	quality = minTier == ""
	for _, p := range all {
		if p.GrantID != grantID {
			continue
		}
		if p.Status != model.PaperAwaitingVenue {
			submissions++
		}
		if p.Status == model.PaperAccepted {
			acceptances++
			if minTier != "" && p.Venue.Rank() >= minTier.Rank() {
				quality = true
			}
		}
	}
	return submissions, acceptances, quality
}

// Evaluate closes an active grant as completed or failed.
func Evaluate(g model.Grant, all []model.Paper, cfg tuning.GrantConfig) Step {
	tc := cfg.Tiers[g.Tier]
	req := tc.Requirement
	subs, accs, quality := Tally(g.ID, all, req.MinVenueTier)
	if subs >= req.Submissions && accs >= req.Acceptances && quality {
		g.Status = model.GrantCompleted
		return Step{
			Grant:  g,
			Mentor: model.MentorDelta{Reputation: model.Int(tc.CompletionReputation)},
			Note:   fmt.Sprintf("%s completed: %d submitted, %d accepted.", g.Title, subs, accs),
		}
	}
	g.Status = model.GrantFailed
	return Step{
		Grant:  g,
		Mentor: model.MentorDelta{Reputation: model.Int(tc.FailureReputation), Morale: model.Int(tc.FailureMorale)},
		Note:   fmt.Sprintf("%s failed its closure review: %d submitted, %d accepted.", g.Title, subs, accs),
	}
}
