package mentorship

import (
	"errors"
	"fmt"
	"testing"

	"mentorsim.ai/internal/sim/catalogs"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/rng"
)

func roster(n int) []model.Student {
	out := make([]model.Student, n)
	for i := range out {
		out[i] = model.Student{
			ID: fmt.Sprintf("s%d", i), Diligence: 50, Talent: 50, Luck: 50, Stress: 50, MentalState: 50,
		}
	}
	return out
}

func TestRebuildFirstClaimWins(t *testing.T) {
	st := roster(3)
	st[1].MentorID = "s0"
	st[2].MentorID = "s0"

	out, pairs := Rebuild(st)
	if len(pairs) != 1 || pairs[0] != (Pair{MentorID: "s0", MenteeID: "s1"}) {
		t.Fatalf("unexpected pairs %+v", pairs)
	}
	if out[1].MentorID != "s0" || !out[1].IsBeingMentored {
		t.Fatalf("first claim lost: %+v", out[1])
	}
	if out[2].MentorID != "" || out[2].IsBeingMentored {
		t.Fatalf("second claim kept: %+v", out[2])
	}
	if st[2].MentorID != "s0" {
		t.Fatalf("input roster mutated")
	}
}

func TestRebuildClearsDanglingAndSelf(t *testing.T) {
	st := roster(2)
	st[0].MentorID = "gone"
	st[1].MentorID = "s1"
	st[1].IsBeingMentored = true
	out, pairs := Rebuild(st)
	if len(pairs) != 0 {
		t.Fatalf("expected no pairs, got %+v", pairs)
	}
	for _, s := range out {
		if s.MentorID != "" || s.IsBeingMentored {
			t.Fatalf("claim not cleared: %+v", s)
		}
	}
}

func TestInfluence(t *testing.T) {
	cat, err := catalogs.NewTraitCatalog([]catalogs.TraitDef{
		{ID: "main", Category: catalogs.CategoryMain, Polarity: catalogs.PolarityPositive,
			Bands: map[model.Attribute]catalogs.Band{model.AttrTalent: {Min: 90, Max: 100}}},
		{ID: "meticulous", Category: catalogs.CategorySub, Polarity: catalogs.PolarityPositive,
			Bands: map[model.Attribute]catalogs.Band{model.AttrDiligence: {Min: 70, Max: 100}}},
		{ID: "gloomy", Category: catalogs.CategorySub, Polarity: catalogs.PolarityNegative,
			Bands: map[model.Attribute]catalogs.Band{model.AttrMentalState: {Min: 0, Max: 35}}},
		{ID: "jinxed", Category: catalogs.CategorySub, Polarity: catalogs.PolarityNegative,
			Bands: map[model.Attribute]catalogs.Band{model.AttrLuck: {Min: 0, Max: 25}}},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	mentor := model.Student{
		ID: "m", Diligence: 95, Talent: 20, Luck: 50, Stress: 86, MentalState: 57,
		Traits: []string{"main", "meticulous", "gloomy", "jinxed"},
	}
	d := Influence(mentor, cat)

	want := map[string]*int{
		"diligence":   model.Int(3 + 2),
		"talent":      model.Int(-2),
		"luck":        model.Int(-3),
		"stress":      model.Int(2),
		"mentalState": model.Int(-2),
	}
	got := map[string]*int{
		"diligence": d.Diligence, "talent": d.Talent, "luck": d.Luck,
		"stress": d.Stress, "mentalState": d.MentalState,
	}
	for k, w := range want {
		if got[k] == nil || *got[k] != *w {
			t.Fatalf("%s: want %d, got %v", k, *w, got[k])
		}
	}
}

func TestInfluenceRoundsHalfUp(t *testing.T) {
	// stress: (41-50)/18 = -0.5 rounds to 0; luck: (59-50)/18 = 0.5 rounds to 1.
	m := model.Student{Diligence: 50, Talent: 50, Luck: 59, Stress: 41, MentalState: 50}
	d := Influence(m, catalogs.TraitCatalog{})
	if d.Stress != nil {
		t.Fatalf("expected no stress change, got %d", *d.Stress)
	}
	if d.Luck == nil || *d.Luck != 1 {
		t.Fatalf("expected luck +1, got %v", d.Luck)
	}
	if d.Diligence != nil || d.Talent != nil || d.MentalState != nil {
		t.Fatalf("neutral attributes should be absent: %+v", d)
	}
}

func TestStepUsesPreStepProfile(t *testing.T) {
	st := roster(3)
	st[0].Diligence = 95 // s0 mentors s1, s1 mentors s2
	st[1].MentorID = "s0"
	st[2].MentorID = "s1"
	out, pairs := Step(st, catalogs.TraitCatalog{})
	if len(pairs) != 2 {
		t.Fatalf("pairs %+v", pairs)
	}
	if out[1].Diligence != 53 {
		t.Fatalf("mentee diligence %d", out[1].Diligence)
	}
	if out[2].Diligence != 50 {
		t.Fatalf("second mentee should see s1's old diligence, got %d", out[2].Diligence)
	}
}

func TestCanAssignRejections(t *testing.T) {
	st := roster(4)
	st[1].MentorID = "s0"
	st[2].MentorID = "s1"

	cases := []struct {
		mentee, mentor string
		want           error
	}{
		{"s3", "s3", ErrSelf},
		{"s3", "nobody", ErrUnknownStudent},
		{"s3", "s0", ErrMentorBusy},
		{"s0", "s2", ErrCycle},
		{"s3", "s2", nil},
		{"s1", "s0", nil},
	}
	for _, tc := range cases {
		err := CanAssign(st, tc.mentee, tc.mentor)
		if tc.want == nil && err != nil {
			t.Fatalf("%s<-%s: unexpected %v", tc.mentee, tc.mentor, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("%s<-%s: want %v, got %v", tc.mentee, tc.mentor, tc.want, err)
		}
	}
}

func acyclic(st []model.Student) bool {
	byID := map[string]string{}
	for _, s := range st {
		byID[s.ID] = s.MentorID
	}
	for _, s := range st {
		seen := map[string]bool{}
		for cur := s.ID; cur != ""; cur = byID[cur] {
			if seen[cur] {
				return false
			}
			seen[cur] = true
		}
	}
	return true
}

func TestRandomAssignmentsStayAcyclic(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		src := rng.New(seed)
		st := roster(6)
		for step := 0; step < 60; step++ {
			a := fmt.Sprintf("s%d", src.IntN(6))
			b := fmt.Sprintf("s%d", src.IntN(6))
			if src.IntN(5) == 0 {
				st = Clear(st, a)
				continue
			}
			next, err := Assign(st, a, b)
			if a == b && !errors.Is(err, ErrSelf) {
				t.Fatalf("self assignment accepted")
			}
			st = next
			if !acyclic(st) {
				t.Fatalf("seed %d step %d: cycle after %s<-%s", seed, step, a, b)
			}
			counts := map[string]int{}
			for _, s := range st {
				if s.MentorID != "" {
					counts[s.MentorID]++
					if counts[s.MentorID] > 1 {
						t.Fatalf("mentor %s has two mentees", s.MentorID)
					}
				}
			}
		}
	}
}

func TestNormalizeBreaksCyclesAndCapacity(t *testing.T) {
	st := roster(4)
	st[0].MentorID = "s1"
	st[1].MentorID = "s0" // closes a loop
	st[2].MentorID = "s1" // second mentee for s1
	st[3].MentorID = "gone"

	out, dropped := Normalize(st)
	if out[0].MentorID != "s1" {
		t.Fatalf("first claim dropped: %+v", out[0])
	}
	if len(dropped) != 3 {
		t.Fatalf("expected 3 dropped claims, got %v", dropped)
	}
	if !acyclic(out) {
		t.Fatalf("cycle survived")
	}
}
