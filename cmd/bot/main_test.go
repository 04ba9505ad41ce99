package main

import (
	"math/rand"
	"testing"

	"mentorsim.ai/internal/protocol"
	"mentorsim.ai/internal/sim/model"
)

func TestPlayerNext(t *testing.T) {
	stu := func(id string) model.Student { return model.Student{ID: id} }
	decision := model.DecisionEvent{ID: "dec_1", Options: []model.DecisionOption{{ID: "a"}, {ID: "b"}}}

	cases := []struct {
		name string
		st   model.State
		want string
	}{
		{"recruits first", model.State{Students: []model.Student{stu("s1")}}, protocol.CmdRecruit},
		{"answers backlog", model.State{Students: []model.Student{stu("s1"), stu("s2")}, Backlog: []model.DecisionEvent{decision}}, protocol.CmdChoose},
		{"starts project for idle", model.State{Students: []model.Student{stu("s1"), stu("s2")}}, protocol.CmdStartProject},
		{"ends quarter", model.State{
			Students: []model.Student{stu("s1"), stu("s2")},
			Projects: []model.Project{{ID: "p1", AssignedStudentIDs: []string{"s1", "s2"}}},
		}, protocol.CmdEndQuarter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &player{rnd: rand.New(rand.NewSource(1)), roster: 2}
			cmd := p.next(tc.st)
			if cmd.Command != tc.want {
				t.Fatalf("got %s, want %s", cmd.Command, tc.want)
			}
			if cmd.ID == "" {
				t.Fatalf("command without id")
			}
			if cmd.Command == protocol.CmdChoose && cmd.DecisionID != "dec_1" {
				t.Fatalf("chose for %q", cmd.DecisionID)
			}
		})
	}
}

func TestIdleStudentsIgnoresCompletedProjects(t *testing.T) {
	st := model.State{
		Students: []model.Student{{ID: "s1"}, {ID: "s2"}},
		Projects: []model.Project{
			{ID: "p1", AssignedStudentIDs: []string{"s1"}, Completed: true},
			{ID: "p2", AssignedStudentIDs: []string{"s2"}},
		},
	}
	idle := idleStudents(st)
	if len(idle) != 1 || idle[0] != "s1" {
		t.Fatalf("idle = %v", idle)
	}
}
