package model

import "mentorsim.ai/internal/sim/mathx"

type StudentType string

const (
	StudentUndergrad StudentType = "undergrad"
	StudentMaster    StudentType = "master"
	StudentPhD       StudentType = "phd"
)

func (t StudentType) Valid() bool {
	switch t {
	case StudentUndergrad, StudentMaster, StudentPhD:
		return true
	}
	return false
}

// Attribute names one of the five bounded student attributes.
type Attribute string

const (
	AttrDiligence   Attribute = "diligence"
	AttrTalent      Attribute = "talent"
	AttrLuck        Attribute = "luck"
	AttrStress      Attribute = "stress"
	AttrMentalState Attribute = "mentalState"
)

// Attributes lists the five attributes in their canonical order.
var Attributes = []Attribute{AttrDiligence, AttrTalent, AttrLuck, AttrStress, AttrMentalState}

const (
	AttrMin = 0
	AttrMax = 100
)

type Student struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Type StudentType `json:"type"`
	Year int         `json:"year"`

	Diligence   int `json:"diligence"`
	Talent      int `json:"talent"`
	Luck        int `json:"luck"`
	Stress      int `json:"stress"`
	MentalState int `json:"mental_state"`
	HiddenLuck  int `json:"hidden_luck"`

	Contribution  int `json:"contribution"`
	PendingPapers int `json:"pending_papers"`
	TotalPapers   int `json:"total_papers"`

	// Traits holds the main trait first, then 2-3 sub traits.
	Traits []string `json:"traits"`

	// MentorID is a weak reference to another student on the roster.
	MentorID        string `json:"mentor_id,omitempty"`
	IsBeingMentored bool   `json:"is_being_mentored,omitempty"`

	Whipped   bool `json:"whipped,omitempty"`
	Comforted bool `json:"comforted,omitempty"`

	RecruitedAt Quarter `json:"recruited_at"`
}

func (s Student) Attr(a Attribute) int {
	switch a {
	case AttrDiligence:
		return s.Diligence
	case AttrTalent:
		return s.Talent
	case AttrLuck:
		return s.Luck
	case AttrStress:
		return s.Stress
	case AttrMentalState:
		return s.MentalState
	}
	return 0
}

func (s Student) clone() Student {
	s.Traits = append([]string(nil), s.Traits...)
	return s
}

// StudentDelta carries optional changes to a student's numbers.
type StudentDelta struct {
	Diligence     *int `json:"diligence,omitempty" yaml:"diligence,omitempty"`
	Talent        *int `json:"talent,omitempty" yaml:"talent,omitempty"`
	Luck          *int `json:"luck,omitempty" yaml:"luck,omitempty"`
	Stress        *int `json:"stress,omitempty" yaml:"stress,omitempty"`
	MentalState   *int `json:"mental_state,omitempty" yaml:"mental_state,omitempty"`
	Contribution  *int `json:"contribution,omitempty" yaml:"contribution,omitempty"`
	PendingPapers *int `json:"pending_papers,omitempty" yaml:"pending_papers,omitempty"`
	TotalPapers   *int `json:"total_papers,omitempty" yaml:"total_papers,omitempty"`
}

func (d StudentDelta) IsZero() bool {
	return d.Diligence == nil && d.Talent == nil && d.Luck == nil && d.Stress == nil &&
		d.MentalState == nil && d.Contribution == nil && d.PendingPapers == nil && d.TotalPapers == nil
}

func (d StudentDelta) Merge(o StudentDelta) StudentDelta {
	return StudentDelta{
		Diligence:     sumPtr(d.Diligence, o.Diligence),
		Talent:        sumPtr(d.Talent, o.Talent),
		Luck:          sumPtr(d.Luck, o.Luck),
		Stress:        sumPtr(d.Stress, o.Stress),
		MentalState:   sumPtr(d.MentalState, o.MentalState),
		Contribution:  sumPtr(d.Contribution, o.Contribution),
		PendingPapers: sumPtr(d.PendingPapers, o.PendingPapers),
		TotalPapers:   sumPtr(d.TotalPapers, o.TotalPapers),
	}
}

// ForAttr returns a delta that changes only attribute a.
func ForAttr(a Attribute, v int) StudentDelta {
	var d StudentDelta
	switch a {
	case AttrDiligence:
		d.Diligence = Int(v)
	case AttrTalent:
		d.Talent = Int(v)
	case AttrLuck:
		d.Luck = Int(v)
	case AttrStress:
		d.Stress = Int(v)
	case AttrMentalState:
		d.MentalState = Int(v)
	}
	return d
}

// ApplyStudentDelta returns s with d added; attributes and contribution
// clamp to [0,100], paper counters to >= 0.
func ApplyStudentDelta(s Student, d StudentDelta) Student {
	bounded := func(v int, p *int) int {
		if p == nil {
			return v
		}
		return mathx.ClampInt(v+*p, AttrMin, AttrMax)
	}
	counter := func(v int, p *int) int {
		if p == nil {
			return v
		}
		return mathx.MaxInt(v+*p, 0)
	}
	s.Diligence = bounded(s.Diligence, d.Diligence)
	s.Talent = bounded(s.Talent, d.Talent)
	s.Luck = bounded(s.Luck, d.Luck)
	s.Stress = bounded(s.Stress, d.Stress)
	s.MentalState = bounded(s.MentalState, d.MentalState)
	s.Contribution = bounded(s.Contribution, d.Contribution)
	s.PendingPapers = counter(s.PendingPapers, d.PendingPapers)
	s.TotalPapers = counter(s.TotalPapers, d.TotalPapers)
	return s
}
