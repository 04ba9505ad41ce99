package model

import "testing"

func TestQuarterOrder(t *testing.T) {
	q := Quarter{Year: 1, Q: 4}
	next := q.Add(1)
	if next != (Quarter{Year: 2, Q: 1}) {
		t.Fatalf("expected Y2Q1, got %v", next)
	}
	if !q.Before(next) || next.Before(q) {
		t.Fatalf("order broken")
	}
	if !next.Reached(q) || !q.Reached(q) {
		t.Fatalf("reached must be >=")
	}
	if got := (Quarter{Year: 3, Q: 2}).Index(); got != 9 {
		t.Fatalf("index: %d", got)
	}
	if QuarterFromIndex(9) != (Quarter{Year: 3, Q: 2}) {
		t.Fatalf("round trip failed")
	}
}

func TestStateCloneIsDeep(t *testing.T) {
	s := State{
		Students: []Student{{ID: "a", Traits: []string{"x"}}},
		Grants:   []Grant{{ID: "g", AssignedStudentIDs: []string{"a"}}},
		Projects: []Project{{ID: "p", AssignedStudentIDs: []string{"a"}}},
	}
	c := s.Clone()
	c.Students[0].Traits[0] = "y"
	c.Grants[0].AssignedStudentIDs[0] = "b"
	c.Projects[0].AssignedStudentIDs = nil
	if s.Students[0].Traits[0] != "x" || s.Grants[0].AssignedStudentIDs[0] != "a" || len(s.Projects[0].AssignedStudentIDs) != 1 {
		t.Fatalf("clone shares memory with original")
	}
}

func TestDecisionValidate(t *testing.T) {
	ok := DecisionEvent{
		ID: "d1", Kind: KindProjectVenue, Title: "t", Prompt: "p",
		Options: []DecisionOption{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}},
		Context: DecisionContext{PaperID: "p1"},
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	one := ok
	one.Options = ok.Options[:1]
	if one.Validate() == nil {
		t.Fatalf("expected rejection of a single option")
	}
	noCtx := ok
	noCtx.Context = DecisionContext{}
	if noCtx.Validate() == nil {
		t.Fatalf("expected rejection of missing paper id")
	}
}
