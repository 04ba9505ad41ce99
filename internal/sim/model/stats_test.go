package model

import (
	"math/rand/v2"
	"testing"
)

func randomDelta(r *rand.Rand) *int {
	switch r.IntN(4) {
	case 0:
		return nil
	case 1:
		return Int(r.IntN(2_000_001) - 1_000_000)
	default:
		return Int(r.IntN(41) - 20)
	}
}

func TestApplyMentorDeltaStaysInBounds(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	s := MentorStats{
		Morale:    Gauge{Current: 70, Max: 100},
		Academia:  Gauge{Current: 50, Max: 100},
		Admin:     Gauge{Current: 50, Max: 80},
		Integrity: Gauge{Current: 80, Max: 100},
		Funding:   1000,
	}
	for i := 0; i < 5000; i++ {
		d := MentorDelta{
			Morale:     randomDelta(r),
			Academia:   randomDelta(r),
			Admin:      randomDelta(r),
			Integrity:  randomDelta(r),
			Funding:    randomDelta(r),
			Reputation: randomDelta(r),
		}
		s = ApplyMentorDelta(s, d)
		for name, g := range map[string]Gauge{"morale": s.Morale, "academia": s.Academia, "admin": s.Admin, "integrity": s.Integrity} {
			if g.Current < 0 || g.Current > g.Max {
				t.Fatalf("iteration %d: %s out of bounds: %+v", i, name, g)
			}
		}
		if s.Funding < 0 {
			t.Fatalf("iteration %d: negative funding %d", i, s.Funding)
		}
	}
}

func TestApplyStudentDeltaStaysInBounds(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	st := Student{ID: "s1", Diligence: 50, Talent: 50, Luck: 50, Stress: 50, MentalState: 50}
	for i := 0; i < 5000; i++ {
		d := StudentDelta{
			Diligence:     randomDelta(r),
			Talent:        randomDelta(r),
			Luck:          randomDelta(r),
			Stress:        randomDelta(r),
			MentalState:   randomDelta(r),
			Contribution:  randomDelta(r),
			PendingPapers: randomDelta(r),
			TotalPapers:   randomDelta(r),
		}
		st = ApplyStudentDelta(st, d)
		for _, a := range Attributes {
			if v := st.Attr(a); v < AttrMin || v > AttrMax {
				t.Fatalf("iteration %d: %s=%d out of bounds", i, a, v)
			}
		}
		if st.Contribution < 0 || st.Contribution > 100 {
			t.Fatalf("contribution out of bounds: %d", st.Contribution)
		}
		if st.PendingPapers < 0 || st.TotalPapers < 0 {
			t.Fatalf("negative counters: %+v", st)
		}
	}
}

func TestAbsentFieldsAreNoOps(t *testing.T) {
	s := MentorStats{Morale: Gauge{Current: 150, Max: 100}, Funding: -5, Reputation: -3}
	got := ApplyMentorDelta(s, MentorDelta{})
	if got != s {
		t.Fatalf("empty delta must not touch state: %+v", got)
	}
	got = ApplyMentorDelta(s, MentorDelta{Morale: Int(0)})
	if got.Morale.Current != 100 {
		t.Fatalf("zero delta still clamps the written field, got %d", got.Morale.Current)
	}
	if got.Funding != -5 {
		t.Fatalf("funding was not in the delta and must be untouched")
	}
}

func TestReputationUnclamped(t *testing.T) {
	s := ApplyMentorDelta(MentorStats{}, MentorDelta{Reputation: Int(-40)})
	if s.Reputation != -40 {
		t.Fatalf("expected -40, got %d", s.Reputation)
	}
}

func TestPaperCountersScenario(t *testing.T) {
	st := Student{PendingPapers: 2, TotalPapers: 0}
	st = ApplyStudentDelta(st, StudentDelta{PendingPapers: Int(-1), TotalPapers: Int(1)})
	if st.PendingPapers != 1 || st.TotalPapers != 1 {
		t.Fatalf("got pending=%d total=%d", st.PendingPapers, st.TotalPapers)
	}
}

func TestMergeKeepsAbsence(t *testing.T) {
	d := MentorDelta{Morale: Int(2)}.Merge(MentorDelta{Funding: Int(-10)})
	if d.Academia != nil {
		t.Fatalf("merge invented a field")
	}
	if *d.Morale != 2 || *d.Funding != -10 {
		t.Fatalf("unexpected merge: %+v", d)
	}
}

func TestEffectsClamp(t *testing.T) {
	b := EffectBounds{
		Morale:     Range{Min: -10, Max: 10},
		Funding:    Range{Min: -20000, Max: 20000},
		Reputation: Range{Min: -3, Max: 3},
		Attribute:  Range{Min: -10, Max: 10},
		Papers:     Range{Min: -1, Max: 1},
		ScoreDelta: Range{Min: -6, Max: 6},
	}
	e := Effects{
		Mentor:  &MentorDelta{Morale: Int(99), Reputation: Int(-50)},
		Student: &StudentDelta{Stress: Int(-80), TotalPapers: Int(5)},
	}.Clamp(b)
	if *e.Mentor.Morale != 10 || *e.Mentor.Reputation != -3 {
		t.Fatalf("mentor not clamped: %+v", e.Mentor)
	}
	if *e.Student.Stress != -10 || *e.Student.TotalPapers != 1 {
		t.Fatalf("student not clamped: %+v", e.Student)
	}
	if e.Mentor.Funding != nil {
		t.Fatalf("absent field appeared")
	}
	m := OptionMeta{ScoreDelta: Int(40)}.Clamp(b)
	if *m.ScoreDelta != 6 {
		t.Fatalf("score delta not clamped: %d", *m.ScoreDelta)
	}
}
