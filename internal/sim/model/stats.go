package model

import "mentorsim.ai/internal/sim/mathx"

// Gauge is a bounded mentor stat.
type Gauge struct {
	Current int `json:"current" yaml:"current"`
	Max     int `json:"max" yaml:"max"`
}

func (g Gauge) Ratio() float64 {
	if g.Max <= 0 {
		return 0
	}
	return float64(g.Current) / float64(g.Max)
}

func (g Gauge) add(d int) Gauge {
	g.Current = mathx.ClampInt(g.Current+d, 0, mathx.MaxInt(g.Max, 0))
	return g
}

type MentorStats struct {
	Morale    Gauge `json:"morale" yaml:"morale"`
	Academia  Gauge `json:"academia" yaml:"academia"`
	Admin     Gauge `json:"admin" yaml:"admin"`
	Integrity Gauge `json:"integrity" yaml:"integrity"`

	// Funding never drops below zero; Reputation is unbounded.
	Funding    int `json:"funding" yaml:"funding"`
	Reputation int `json:"reputation" yaml:"reputation"`
}

type Mentor struct {
	Name  string      `json:"name"`
	Stats MentorStats `json:"stats"`
}

// MentorDelta carries optional changes. A nil field is "no change", which is
// distinct from a zero change when deltas are diffed or re-clamped.
type MentorDelta struct {
	Morale     *int `json:"morale,omitempty" yaml:"morale,omitempty"`
	Academia   *int `json:"academia,omitempty" yaml:"academia,omitempty"`
	Admin      *int `json:"admin,omitempty" yaml:"admin,omitempty"`
	Integrity  *int `json:"integrity,omitempty" yaml:"integrity,omitempty"`
	Funding    *int `json:"funding,omitempty" yaml:"funding,omitempty"`
	Reputation *int `json:"reputation,omitempty" yaml:"reputation,omitempty"`
}

func (d MentorDelta) IsZero() bool {
	return d.Morale == nil && d.Academia == nil && d.Admin == nil &&
		d.Integrity == nil && d.Funding == nil && d.Reputation == nil
}

// Merge sums two deltas field by field; absent + absent stays absent.
func (d MentorDelta) Merge(o MentorDelta) MentorDelta {
	return MentorDelta{
		Morale:     sumPtr(d.Morale, o.Morale),
		Academia:   sumPtr(d.Academia, o.Academia),
		Admin:      sumPtr(d.Admin, o.Admin),
		Integrity:  sumPtr(d.Integrity, o.Integrity),
		Funding:    sumPtr(d.Funding, o.Funding),
		Reputation: sumPtr(d.Reputation, o.Reputation),
	}
}

// ApplyMentorDelta returns s with d added and clamped to each stat's bound.
func ApplyMentorDelta(s MentorStats, d MentorDelta) MentorStats {
	if d.Morale != nil {
		s.Morale = s.Morale.add(*d.Morale)
	}
	if d.Academia != nil {
		s.Academia = s.Academia.add(*d.Academia)
	}
	if d.Admin != nil {
		s.Admin = s.Admin.add(*d.Admin)
	}
	if d.Integrity != nil {
		s.Integrity = s.Integrity.add(*d.Integrity)
	}
	if d.Funding != nil {
		s.Funding = mathx.MaxInt(s.Funding+*d.Funding, 0)
	}
	if d.Reputation != nil {
		s.Reputation += *d.Reputation
	}
	return s
}

// Int returns a pointer to v, for building deltas inline.
func Int(v int) *int { return &v }

func sumPtr(a, b *int) *int {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return Int(*b)
	case b == nil:
		return Int(*a)
	default:
		return Int(*a + *b)
	}
}

func clampPtr(p *int, lo, hi int) *int {
	if p == nil {
		return nil
	}
	return Int(mathx.ClampInt(*p, lo, hi))
}
