package session

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"mentorsim.ai/internal/sim/catalogs"
	"mentorsim.ai/internal/sim/decisions"
	"mentorsim.ai/internal/sim/ids"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/narrative"
	"mentorsim.ai/internal/sim/rng"
	"mentorsim.ai/internal/sim/tuning"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	return Options{Tuning: tuning.Defaults(), Catalogs: cats, NewID: ids.Counter()}
}

func baseState(now model.Quarter) model.State {
	return model.State{
		Version: model.StateVersion,
		Seed:    11,
		Now:     now,
		Mentor:  model.Mentor{Name: "Prof", Stats: tuning.Defaults().Mentor.Start},
	}
}

func student(id string) model.Student {
	return model.Student{
		ID: id, Name: strings.ToUpper(id), Type: model.StudentPhD, Year: 1,
		Diligence: 60, Talent: 60, Luck: 50, Stress: 30, MentalState: 70,
		Traits: []string{"workaholic", "meticulous", "optimist"},
	}
}

func twoOptions(a, b model.DecisionOption) []model.DecisionOption {
	if a.ID == "" {
		a.ID = "a"
	}
	if b.ID == "" {
		b.ID = "b"
	}
	if a.Label == "" {
		a.Label = "First"
	}
	if b.Label == "" {
		b.Label = "Second"
	}
	return []model.DecisionOption{a, b}
}

func load(t *testing.T, st model.State) *Session {
	t.Helper()
	s, _ := Load(testOptions(t), st)
	return s
}

func TestScenarioBAcceptedOptionMovesCounters(t *testing.T) {
	st := baseState(model.Quarter{Year: 1, Q: 2})
	stu := student("stu_1")
	stu.PendingPapers, stu.TotalPapers = 2, 0
	st.Students = []model.Student{stu}
	st.Backlog = []model.DecisionEvent{{
		ID: "dec_1", Kind: model.KindStudentPaperEvent, Title: "Good news", Prompt: "A paper landed.",
		Context: model.DecisionContext{StudentID: "stu_1"},
		Options: twoOptions(
			model.DecisionOption{Outcome: "Accepted.", Effects: &model.Effects{Student: &model.StudentDelta{PendingPapers: model.Int(-1), TotalPapers: model.Int(1)}}},
			model.DecisionOption{},
		),
	}}
	s := load(t, st)

	if _, err := s.ChooseOption(context.Background(), "dec_1", "a"); err != nil {
		t.Fatalf("choose: %v", err)
	}
	got := s.State()
	if got.Students[0].PendingPapers != 1 || got.Students[0].TotalPapers != 1 {
		t.Fatalf("want pending 1 total 1, got %d %d", got.Students[0].PendingPapers, got.Students[0].TotalPapers)
	}
	if len(got.Backlog) != 0 {
		t.Fatalf("decision not removed: %+v", got.Backlog)
	}
	last := got.Log[len(got.Log)-1]
	if last.Kind != model.LogDecision || !strings.Contains(last.Text, "Accepted.") {
		t.Fatalf("log entry: %+v", last)
	}
}

func TestScenarioCDismissCascade(t *testing.T) {
	st := baseState(model.Quarter{Year: 1, Q: 3})
	st.Students = []model.Student{student("stu_1"), student("stu_2")}
	st.Grants = []model.Grant{
		{ID: "grt_1", Title: "G1", Type: model.GrantNational, Status: model.GrantActive, AssignedStudentIDs: []string{"stu_1"}, LeadStudentID: "stu_1", PaperIDs: []string{"ppr_1"}},
		{ID: "grt_2", Title: "G2", Type: model.GrantEnterprise, Status: model.GrantActive, AssignedStudentIDs: []string{"stu_2"}, LeadStudentID: "stu_2", PaperIDs: []string{}},
	}
	st.Papers = []model.Paper{
		{ID: "ppr_1", Title: "P1", GrantID: "grt_1", LeadStudentID: "stu_1", Status: model.PaperUnderReview, Venue: model.TierB},
		{ID: "ppr_2", Title: "P2", LeadStudentID: "stu_2", Status: model.PaperUnderReview, Venue: model.TierC},
	}
	st.Projects = []model.Project{{ID: "prj_1", Title: "Pr", AssignedStudentIDs: []string{"stu_2"}}}
	s := load(t, st)
	before := s.State()

	if err := s.Dismiss("stu_1"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	got := s.State()
	if len(got.Students) != 1 || got.Students[0].ID != "stu_2" {
		t.Fatalf("roster: %+v", got.Students)
	}
	if len(got.Grants[0].AssignedStudentIDs) != 0 || got.Grants[0].LeadStudentID != "" {
		t.Fatalf("grant 1 not cleared: %+v", got.Grants[0])
	}
	if got.Papers[0].LeadStudentID != "" {
		t.Fatalf("paper lead not cleared: %+v", got.Papers[0])
	}
	if !reflect.DeepEqual(got.Grants[1], before.Grants[1]) || !reflect.DeepEqual(got.Papers[1], before.Papers[1]) || !reflect.DeepEqual(got.Projects, before.Projects) {
		t.Fatalf("unrelated entities changed")
	}
	if err := s.Dismiss("stu_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second dismiss: %v", err)
	}
}

func TestDismissDropsStudentEventsAndMentorClaims(t *testing.T) {
	st := baseState(model.Quarter{Year: 1, Q: 1})
	a, b := student("stu_1"), student("stu_2")
	b.MentorID = "stu_1"
	st.Students = []model.Student{a, b}
	st.Papers = []model.Paper{{ID: "ppr_1", Title: "P", LeadStudentID: "stu_1", Status: model.PaperAwaitingVenue}}
	venue := decisions.Venue("dec_v", st.Papers[0], st.Now, tuning.Defaults().Venues)
	st.Backlog = []model.DecisionEvent{
		{ID: "dec_s", Kind: model.KindStudentPaperEvent, Title: "T", Prompt: "P", Context: model.DecisionContext{StudentID: "stu_1"}, Options: twoOptions(model.DecisionOption{}, model.DecisionOption{})},
		venue,
	}
	s := load(t, st)
	if err := s.Dismiss("stu_1"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	got := s.State()
	if got.Students[0].MentorID != "" || got.Students[0].IsBeingMentored {
		t.Fatalf("mentor claim kept: %+v", got.Students[0])
	}
	if len(got.Backlog) != 1 || got.Backlog[0].ID != "dec_v" || got.Backlog[0].Context.StudentID != "" {
		t.Fatalf("backlog: %+v", got.Backlog)
	}
}

func TestEndQuarterRejectsSecondSettlement(t *testing.T) {
	s := New(testOptions(t), "Prof", 1)
	s.settling.Store(true)
	if _, err := s.EndQuarter(context.Background()); !errors.Is(err, ErrSettling) {
		t.Fatalf("want ErrSettling, got %v", err)
	}
	s.settling.Store(false)
	if _, err := s.EndQuarter(context.Background()); err != nil {
		t.Fatalf("settle: %v", err)
	}
}

func TestEndQuarterFailureLeavesQuarter(t *testing.T) {
	opts := testOptions(t)
	opts.Source = func(int64, int) rng.Source { panic("boom") }
	s := New(opts, "Prof", 1)

	_, err := s.EndQuarter(context.Background())
	if !errors.Is(err, ErrSettlementFailed) {
		t.Fatalf("want ErrSettlementFailed, got %v", err)
	}
	st := s.State()
	if st.Now != (model.Quarter{Year: 1, Q: 1}) {
		t.Fatalf("quarter advanced to %s", st.Now)
	}
	if len(st.Log) != 1 || st.Log[0].Kind != model.LogFailure {
		t.Fatalf("want one failure entry, got %+v", st.Log)
	}
	if s.Settling() {
		t.Fatalf("settling flag left set")
	}
}

func TestEndQuarterUpkeepAndFlags(t *testing.T) {
	s := New(testOptions(t), "Prof", 5)
	a, err := s.Recruit(s.Candidate("Ada"))
	if err != nil {
		t.Fatalf("recruit: %v", err)
	}
	if _, err := s.Recruit(s.Candidate("Ben")); err != nil {
		t.Fatalf("recruit: %v", err)
	}
	if err := s.Whip(a.ID); err != nil {
		t.Fatalf("whip: %v", err)
	}

	rep, err := s.EndQuarter(context.Background())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	st := s.State()
	if st.Now != (model.Quarter{Year: 1, Q: 2}) || rep.Next != st.Now {
		t.Fatalf("calendar: %s / %s", st.Now, rep.Next)
	}
	if st.Mentor.Stats.Funding != 60000-2*2500 || rep.Upkeep != 5000 {
		t.Fatalf("funding %d upkeep %d", st.Mentor.Stats.Funding, rep.Upkeep)
	}
	for _, stu := range st.Students {
		if stu.Whipped || stu.Comforted {
			t.Fatalf("flags not reset on %s", stu.ID)
		}
		if p := rep.Progress[stu.ID]; p < 20 || p > 100 {
			t.Fatalf("progress %d for %s", p, stu.ID)
		}
	}
	quarterEvents := 0
	for _, d := range st.Backlog {
		if err := d.Validate(); err != nil {
			t.Fatalf("queued invalid decision: %v", err)
		}
		if d.Kind == model.KindQuarterEvent {
			quarterEvents++
		}
	}
	if quarterEvents == 0 {
		t.Fatalf("no quarter event queued")
	}
}

func TestEndQuarterYearRollover(t *testing.T) {
	st := baseState(model.Quarter{Year: 1, Q: 4})
	st.Students = []model.Student{student("stu_1")}
	s := load(t, st)
	if _, err := s.EndQuarter(context.Background()); err != nil {
		t.Fatalf("settle: %v", err)
	}
	got := s.State()
	if got.Now != (model.Quarter{Year: 2, Q: 1}) || got.Students[0].Year != 2 {
		t.Fatalf("now %s year %d", got.Now, got.Students[0].Year)
	}
}

func TestEndQuarterBrokeLabLosesMorale(t *testing.T) {
	st := baseState(model.Quarter{Year: 1, Q: 2})
	st.Mentor.Stats.Funding = 1000
	st.Students = []model.Student{student("stu_1")}
	s := load(t, st)
	rep, err := s.EndQuarter(context.Background())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	got := s.State().Mentor.Stats
	if got.Funding != 0 || got.Morale.Current != 67 {
		t.Fatalf("funding %d morale %d", got.Funding, got.Morale.Current)
	}
	if rep.Mentor.Morale == nil || *rep.Mentor.Morale != -3 {
		t.Fatalf("report mentor delta: %+v", rep.Mentor)
	}
}

func TestEndQuarterSettlesDuePaper(t *testing.T) {
	st := baseState(model.Quarter{Year: 1, Q: 2})
	stu := student("stu_1")
	stu.PendingPapers = 1
	st.Students = []model.Student{stu}
	st.Papers = []model.Paper{{ID: "ppr_1", Title: "P", LeadStudentID: "stu_1", Status: model.PaperUnderReview, Venue: model.TierC, DecisionDue: st.Now}}
	s := load(t, st)
	rep, err := s.EndQuarter(context.Background())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if rep.Accepted+rep.Revisions+rep.Rejected != 1 {
		t.Fatalf("paper not settled: %+v", rep)
	}
	got := s.State()
	p := got.Papers[0]
	switch p.Status {
	case model.PaperAccepted, model.PaperRejected:
	case model.PaperAwaitingRevision:
		found := false
		for _, d := range got.Backlog {
			found = found || (d.Kind == model.KindProjectRevision && d.Context.PaperID == "ppr_1")
		}
		if !found {
			t.Fatalf("no revision decision queued")
		}
	default:
		t.Fatalf("unexpected status %s", p.Status)
	}
}

func TestVenueChoiceSubmitsPaper(t *testing.T) {
	st := baseState(model.Quarter{Year: 1, Q: 2})
	stu := student("stu_1")
	st.Students = []model.Student{stu}
	st.Papers = []model.Paper{{ID: "ppr_1", Title: "P", LeadStudentID: "stu_1", Status: model.PaperAwaitingVenue}}
	st.Backlog = []model.DecisionEvent{decisions.Venue("dec_v", st.Papers[0], st.Now, tuning.Defaults().Venues)}
	s := load(t, st)

	if _, err := s.ChooseOption(context.Background(), "dec_v", "venue_b"); err != nil {
		t.Fatalf("choose: %v", err)
	}
	got := s.State()
	p := got.Papers[0]
	if p.Status != model.PaperUnderReview || p.Venue != model.TierB || p.DecisionDue != st.Now.Add(2) {
		t.Fatalf("paper: %+v", p)
	}
	if got.Students[0].Stress != stu.Stress+2 {
		t.Fatalf("stress %d", got.Students[0].Stress)
	}
}

func TestChooseOptionIsAtomic(t *testing.T) {
	st := baseState(model.Quarter{Year: 1, Q: 2})
	st.Papers = []model.Paper{{ID: "ppr_1", Title: "P", Status: model.PaperAwaitingVenue}}
	st.Backlog = []model.DecisionEvent{{
		ID: "dec_1", Kind: model.KindProjectVenue, Title: "T", Prompt: "P",
		Context: model.DecisionContext{PaperID: "ppr_1"},
		Options: twoOptions(
			model.DecisionOption{Effects: &model.Effects{Mentor: &model.MentorDelta{Morale: model.Int(5)}}, Meta: model.OptionMeta{VenueTier: "Z"}},
			model.DecisionOption{Meta: model.OptionMeta{VenueTier: model.TierC}},
		),
	}}
	s := load(t, st)
	before := s.State()

	if _, err := s.ChooseOption(context.Background(), "dec_1", "a"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
	if !reflect.DeepEqual(s.State(), before) {
		t.Fatalf("state changed by a failed choice")
	}
	if _, err := s.ChooseOption(context.Background(), "dec_1", "zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown option: %v", err)
	}
	if _, err := s.ChooseOption(context.Background(), "nope", "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown decision: %v", err)
	}
}

func TestGrantEventBroadcastsToAssigned(t *testing.T) {
	st := baseState(model.Quarter{Year: 1, Q: 2})
	st.Students = []model.Student{student("stu_1"), student("stu_2"), student("stu_3")}
	st.Grants = []model.Grant{{ID: "grt_1", Title: "G", Type: model.GrantNational, Status: model.GrantReviewing, BaseScore: 60, AssignedStudentIDs: []string{"stu_1", "stu_3"}}}
	st.Backlog = []model.DecisionEvent{{
		ID: "dec_g", Kind: model.KindGrantReviewEvent, Title: "Panel", Prompt: "P",
		Context: model.DecisionContext{GrantID: "grt_1"},
		Options: twoOptions(
			model.DecisionOption{Effects: &model.Effects{Student: &model.StudentDelta{Stress: model.Int(3)}}, Meta: model.OptionMeta{ScoreDelta: model.Int(4), LuckDelta: model.Int(-1)}},
			model.DecisionOption{},
		),
	}}
	s := load(t, st)
	if _, err := s.ChooseOption(context.Background(), "dec_g", "a"); err != nil {
		t.Fatalf("choose: %v", err)
	}
	got := s.State()
	if g := got.Grants[0]; g.ScoreDelta != 4 || g.Luck != -1 {
		t.Fatalf("grant: %+v", g)
	}
	want := []int{33, 30, 33}
	for i, stu := range got.Students {
		if stu.Stress != want[i] {
			t.Fatalf("%s stress %d, want %d", stu.ID, stu.Stress, want[i])
		}
	}
}

func TestLeaveActionRemovesStudent(t *testing.T) {
	st := baseState(model.Quarter{Year: 1, Q: 2})
	st.Students = []model.Student{student("stu_1"), student("stu_2")}
	st.Backlog = []model.DecisionEvent{{
		ID: "dec_l", Kind: model.KindQuarterEvent, Title: "Leaving", Prompt: "P",
		Context: model.DecisionContext{StudentID: "stu_1", Tag: narrative.TagQuarterLeave},
		Options: twoOptions(
			model.DecisionOption{Meta: model.OptionMeta{Action: model.ActionLeave}},
			model.DecisionOption{},
		),
	}}
	s := load(t, st)
	if _, err := s.ChooseOption(context.Background(), "dec_l", "a"); err != nil {
		t.Fatalf("choose: %v", err)
	}
	got := s.State()
	if len(got.Students) != 1 || got.Students[0].ID != "stu_2" || len(got.Backlog) != 0 {
		t.Fatalf("students %+v backlog %+v", got.Students, got.Backlog)
	}
}

func TestNarrativeMergeIsIdempotent(t *testing.T) {
	s := New(testOptions(t), "Prof", 3)
	st := s.State()
	req := narrative.Request{ID: "dec_x", Situation: situation(&st, narrative.TagQuarterSchool, 6, nil, nil)}
	if got := s.resolveNarrative(context.Background(), []narrative.Request{req}); len(got) != 1 {
		t.Fatalf("first merge: %v", got)
	}
	if got := s.resolveNarrative(context.Background(), []narrative.Request{req}); len(got) != 0 {
		t.Fatalf("second merge added %v", got)
	}
	if n := len(s.State().Backlog); n != 1 {
		t.Fatalf("backlog has %d entries", n)
	}
}

func TestRosterOperations(t *testing.T) {
	s := New(testOptions(t), "Prof", 9)
	a, _ := s.Recruit(s.Candidate("Ada"))
	b, _ := s.Recruit(s.Candidate("Ben"))

	if _, err := s.Recruit(model.Student{}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("nameless recruit: %v", err)
	}
	if a.Year != 1 || a.Stress > 30 || a.MentalState < 60 || len(a.Traits) < 3 {
		t.Fatalf("first-year rules: %+v", a)
	}
	if err := s.Comfort(a.ID); err != nil {
		t.Fatalf("comfort: %v", err)
	}
	if err := s.Comfort(a.ID); !errors.Is(err, ErrAlreadyCared) {
		t.Fatalf("second comfort: %v", err)
	}
	if err := s.AssignMentor(b.ID, a.ID); err != nil {
		t.Fatalf("assign mentor: %v", err)
	}
	if err := s.AssignMentor(a.ID, b.ID); !errors.Is(err, ErrInvalid) {
		t.Fatalf("cycle accepted: %v", err)
	}
	if err := s.ClearMentor(b.ID); err != nil {
		t.Fatalf("clear mentor: %v", err)
	}

	p, err := s.StartProject("Sparse attention", "ml", []string{a.ID, a.ID})
	if err != nil || len(p.AssignedStudentIDs) != 1 {
		t.Fatalf("project %+v err %v", p, err)
	}
	if err := s.AssignProject(p.ID, []string{"stu_missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("assign unknown: %v", err)
	}

	if _, err := s.ApplyGrant(model.GrantEnterprise, nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("enterprise in Q1: %v", err)
	}
	g, err := s.ApplyGrant(model.GrantNational, []string{a.ID})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if g.ReviewEnd != (model.Quarter{Year: 1, Q: 3}) {
		t.Fatalf("review end %s", g.ReviewEnd)
	}
	if _, err := s.ApplyGrant(model.GrantNational, nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("second application: %v", err)
	}
	if err := s.AssignGrant(g.ID, []string{a.ID, b.ID}); err != nil {
		t.Fatalf("assign grant: %v", err)
	}
}

func TestSettlementIsReproducible(t *testing.T) {
	run := func() model.State {
		s := New(testOptions(t), "Prof", 42)
		for _, name := range []string{"Ada", "Ben", "Cy"} {
			if _, err := s.Recruit(s.Candidate(name)); err != nil {
				t.Fatalf("recruit: %v", err)
			}
		}
		for i := 0; i < 6; i++ {
			if _, err := s.EndQuarter(context.Background()); err != nil {
				t.Fatalf("settle: %v", err)
			}
		}
		return s.State()
	}
	a, b := run(), run()
	if !reflect.DeepEqual(a.Students, b.Students) || !reflect.DeepEqual(a.Papers, b.Papers) || !reflect.DeepEqual(a.Mentor, b.Mentor) {
		t.Fatalf("same seed settled differently")
	}
}

func TestRepairFixesCorruptState(t *testing.T) {
	st := baseState(model.Quarter{Year: 1, Q: 2})
	a, b := student("stu_1"), student("stu_1")
	b.MentorID = "ghost"
	b.Traits = []string{"nope"}
	st.Students = []model.Student{a, b}
	st.Projects = []model.Project{{ID: "prj_1", Title: "P", AssignedStudentIDs: []string{"stu_1", "ghost"}}}
	dup := model.DecisionEvent{ID: "dec_1", Kind: model.KindQuarterEvent, Title: "T", Prompt: "P", Options: twoOptions(model.DecisionOption{}, model.DecisionOption{})}
	stale := model.DecisionEvent{ID: "dec_2", Kind: model.KindProjectVenue, Title: "T", Prompt: "P", Context: model.DecisionContext{PaperID: "ppr_gone"}, Options: twoOptions(model.DecisionOption{}, model.DecisionOption{})}
	st.Backlog = []model.DecisionEvent{dup, dup, stale}

	s, notes := Load(testOptions(t), st)
	got := s.State()
	if len(notes) == 0 {
		t.Fatalf("no repair notes")
	}
	if got.Students[0].ID == got.Students[1].ID {
		t.Fatalf("duplicate ids survived")
	}
	if got.Students[1].MentorID != "" || len(got.Students[1].Traits) < 3 {
		t.Fatalf("second student not repaired: %+v", got.Students[1])
	}
	if !reflect.DeepEqual(got.Projects[0].AssignedStudentIDs, []string{"stu_1"}) {
		t.Fatalf("dangling project member kept: %v", got.Projects[0].AssignedStudentIDs)
	}
	if len(got.Backlog) != 1 || got.Backlog[0].ID != "dec_1" {
		t.Fatalf("backlog: %+v", got.Backlog)
	}
	repairs := 0
	for _, e := range got.Log {
		if e.Kind == model.LogRepair {
			repairs++
		}
	}
	if repairs != len(notes) {
		t.Fatalf("%d notes but %d repair log entries", len(notes), repairs)
	}
}
