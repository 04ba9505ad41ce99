package model

import "mentorsim.ai/internal/sim/mathx"

// Range is an inclusive integer band.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

func (r Range) Clamp(v int) int { return mathx.ClampInt(v, r.Min, r.Max) }

func (r Range) clampPtr(p *int) *int { return clampPtr(p, r.Min, r.Max) }

// EffectBounds caps the magnitude of a single option's effects. Options from
// outside the simulation are re-clamped against it before use.
type EffectBounds struct {
	Morale     Range `json:"morale" yaml:"morale"`
	Academia   Range `json:"academia" yaml:"academia"`
	Admin      Range `json:"admin" yaml:"admin"`
	Integrity  Range `json:"integrity" yaml:"integrity"`
	Funding    Range `json:"funding" yaml:"funding"`
	Reputation Range `json:"reputation" yaml:"reputation"`

	Attribute    Range `json:"attribute" yaml:"attribute"`
	Contribution Range `json:"contribution" yaml:"contribution"`
	Papers       Range `json:"papers" yaml:"papers"`

	ScoreDelta    Range `json:"score_delta" yaml:"score_delta"`
	LuckDelta     Range `json:"luck_delta" yaml:"luck_delta"`
	ProgressDelta Range `json:"progress_delta" yaml:"progress_delta"`
}

func (e Effects) Clamp(b EffectBounds) Effects {
	var out Effects
	if e.Mentor != nil {
		m := MentorDelta{
			Morale:     b.Morale.clampPtr(e.Mentor.Morale),
			Academia:   b.Academia.clampPtr(e.Mentor.Academia),
			Admin:      b.Admin.clampPtr(e.Mentor.Admin),
			Integrity:  b.Integrity.clampPtr(e.Mentor.Integrity),
			Funding:    b.Funding.clampPtr(e.Mentor.Funding),
			Reputation: b.Reputation.clampPtr(e.Mentor.Reputation),
		}
		if !m.IsZero() {
			out.Mentor = &m
		}
	}
	if e.Student != nil {
		s := StudentDelta{
			Diligence:     b.Attribute.clampPtr(e.Student.Diligence),
			Talent:        b.Attribute.clampPtr(e.Student.Talent),
			Luck:          b.Attribute.clampPtr(e.Student.Luck),
			Stress:        b.Attribute.clampPtr(e.Student.Stress),
			MentalState:   b.Attribute.clampPtr(e.Student.MentalState),
			Contribution:  b.Contribution.clampPtr(e.Student.Contribution),
			PendingPapers: b.Papers.clampPtr(e.Student.PendingPapers),
			TotalPapers:   b.Papers.clampPtr(e.Student.TotalPapers),
		}
		if !s.IsZero() {
			out.Student = &s
		}
	}
	return out
}

func (m OptionMeta) Clamp(b EffectBounds) OptionMeta {
	m.ScoreDelta = b.ScoreDelta.clampPtr(m.ScoreDelta)
	m.LuckDelta = b.LuckDelta.clampPtr(m.LuckDelta)
	m.ProgressDelta = b.ProgressDelta.clampPtr(m.ProgressDelta)
	return m
}
