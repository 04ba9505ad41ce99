// Package mentorship pairs senior students with mentees and computes how a
// mentor's profile pulls on the mentee each quarter.
package mentorship

import (
	"errors"
	"fmt"

	"mentorsim.ai/internal/sim/catalogs"
	"mentorsim.ai/internal/sim/mathx"
	"mentorsim.ai/internal/sim/model"
)

var (
	ErrSelf           = errors.New("student cannot mentor themselves")
	ErrUnknownStudent = errors.New("unknown student")
	ErrMentorBusy     = errors.New("mentor already has a mentee")
	ErrCycle          = errors.New("mentorship would form a cycle")
)

type Pair struct {
	MentorID string
	MenteeID string
}

type pull struct {
	step     float64
	min, max int
}

var pulls = map[model.Attribute]pull{
	model.AttrDiligence:   {step: 15, min: -2, max: 3},
	model.AttrTalent:      {step: 15, min: -2, max: 3},
	model.AttrLuck:        {step: 18, min: -1, max: 2},
	model.AttrMentalState: {step: 15, min: -2, max: 2},
	model.AttrStress:      {step: 18, min: -2, max: 2},
}

// Rebuild derives this quarter's pairs from the mentees' MentorID claims in
// roster order. The first claim on a mentor wins; later claims on the same
// mentor, claims on missing students and self claims are cleared.
func Rebuild(students []model.Student) ([]model.Student, []Pair) {
	out := append([]model.Student(nil), students...)
	live := make(map[string]bool, len(out))
	for _, s := range out {
		live[s.ID] = true
	}

	claimed := map[string]bool{}
	var pairs []Pair
	for i := range out {
		s := &out[i]
		m := s.MentorID
		if m == "" || m == s.ID || !live[m] || claimed[m] {
			s.MentorID = ""
			s.IsBeingMentored = false
			continue
		}
		claimed[m] = true
		s.IsBeingMentored = true
		pairs = append(pairs, Pair{MentorID: m, MenteeID: s.ID})
	}
	return out, pairs
}

// Influence is the delta a mentor applies to their mentee in one quarter:
// each attribute moves by round((mentor-50)/step) within its range, plus
// the stat bands of the mentor's sub traits.
func Influence(mentor model.Student, cat catalogs.TraitCatalog) model.StudentDelta {
	var d model.StudentDelta
	for _, a := range model.Attributes {
		p := pulls[a]
		v := mathx.ClampInt(mathx.Round(float64(mentor.Attr(a)-50)/p.step), p.min, p.max)
		v += traitBonus(mentor, a, cat)
		if v != 0 {
			d = d.Merge(model.ForAttr(a, v))
		}
	}
	return d
}

func traitBonus(mentor model.Student, a model.Attribute, cat catalogs.TraitCatalog) int {
	total := 0
	for _, id := range mentor.Traits {
		def, ok := cat.ByID[id]
		if !ok || def.Category != catalogs.CategorySub {
			continue
		}
		b, ok := def.Bands[a]
		if !ok {
			continue
		}
		total += bandBonus(b)
	}
	return total
}

func bandBonus(b catalogs.Band) int {
	switch {
	case b.Min >= 80:
		return 3
	case b.Min >= 70:
		return 2
	case b.Min >= 60:
		return 1
	case b.Max <= 25:
		return -3
	case b.Max <= 35:
		return -2
	case b.Max <= 50:
		return -1
	}
	return 0
}

// Step rebuilds the pairs and applies every mentor's influence. Influence is
// computed from the roster as it was before the step, so a student who is
// both mentor and mentee passes on their unchanged profile.
func Step(students []model.Student, cat catalogs.TraitCatalog) ([]model.Student, []Pair) {
	out, pairs := Rebuild(students)
	before := make(map[string]model.Student, len(out))
	for _, s := range out {
		before[s.ID] = s
	}
	idx := make(map[string]int, len(out))
	for i, s := range out {
		idx[s.ID] = i
	}
	for _, p := range pairs {
		i := idx[p.MenteeID]
		out[i] = model.ApplyStudentDelta(out[i], Influence(before[p.MentorID], cat))
	}
	return out, pairs
}

// CanAssign reports whether menteeID may take mentorID as mentor without
// breaking the one-mentee-per-mentor rule or closing a loop.
func CanAssign(students []model.Student, menteeID, mentorID string) error {
	if menteeID == mentorID {
		return ErrSelf
	}
	byID := make(map[string]model.Student, len(students))
	for _, s := range students {
		byID[s.ID] = s
	}
	if _, ok := byID[menteeID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStudent, menteeID)
	}
	if _, ok := byID[mentorID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStudent, mentorID)
	}
	for _, s := range students {
		if s.MentorID == mentorID && s.ID != menteeID {
			return fmt.Errorf("%w: %s mentors %s", ErrMentorBusy, mentorID, s.ID)
		}
	}
	seen := map[string]bool{}
	for cur := mentorID; cur != ""; cur = byID[cur].MentorID {
		if cur == menteeID {
			return ErrCycle
		}
		if seen[cur] {
			break
		}
		seen[cur] = true
	}
	return nil
}

// Assign sets menteeID's mentor after CanAssign accepts it.
func Assign(students []model.Student, menteeID, mentorID string) ([]model.Student, error) {
	if err := CanAssign(students, menteeID, mentorID); err != nil {
		return students, err
	}
	out := append([]model.Student(nil), students...)
	for i := range out {
		if out[i].ID == menteeID {
			out[i].MentorID = mentorID
		}
	}
	return out, nil
}

// Clear drops menteeID's mentor, if any.
func Clear(students []model.Student, menteeID string) []model.Student {
	out := append([]model.Student(nil), students...)
	for i := range out {
		if out[i].ID == menteeID {
			out[i].MentorID = ""
			out[i].IsBeingMentored = false
		}
	}
	return out
}

// Normalize replays every existing claim through CanAssign in roster order
// and returns the roster with the rejected claims cleared, plus the ids of
// the students whose claim was dropped.
func Normalize(students []model.Student) ([]model.Student, []string) {
	out := append([]model.Student(nil), students...)
	claims := make([]string, len(out))
	for i := range out {
		claims[i] = out[i].MentorID
		out[i].MentorID = ""
	}
	var dropped []string
	for i := range out {
		if claims[i] == "" {
			out[i].IsBeingMentored = false
			continue
		}
		if CanAssign(out, out[i].ID, claims[i]) != nil {
			out[i].IsBeingMentored = false
			dropped = append(dropped, out[i].ID)
			continue
		}
		out[i].MentorID = claims[i]
	}
	return out, dropped
}
