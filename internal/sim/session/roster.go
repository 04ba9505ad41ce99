package session

import (
	"errors"
	"fmt"
	"strings"

	"mentorsim.ai/internal/sim/grants"
	"mentorsim.ai/internal/sim/ids"
	"mentorsim.ai/internal/sim/mathx"
	"mentorsim.ai/internal/sim/mentorship"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/rng"
	"mentorsim.ai/internal/sim/traits"
)

var ErrAlreadyCared = errors.New("student was already looked after this quarter")

// opSource returns the stream for the next randomized player operation.
func opSource(st *model.State) rng.Source {
	src := rng.ForOp(st.Seed, st.Ops)
	st.Ops++
	return src
}

// Candidate rolls a fresh applicant. Nothing is added to the roster; pass
// the result (possibly edited) to Recruit.
func (s *Session) Candidate(name string) model.Student {
	var c model.Student
	_ = s.mutate(func(st *model.State) error {
		src := opSource(st)
		c = model.Student{
			Name:        name,
			Type:        s.tu.Recruit.DefaultType,
			Diligence:   rng.Roll(src, 30, 90),
			Talent:      rng.Roll(src, 30, 90),
			Luck:        rng.Roll(src, 20, 90),
			Stress:      rng.Roll(src, s.tu.Recruit.Stress.Min, s.tu.Recruit.Stress.Max),
			MentalState: rng.Roll(src, s.tu.Recruit.MentalState.Min, s.tu.Recruit.MentalState.Max),
			HiddenLuck:  rng.Roll(src, 0, 100),
		}
		return nil
	})
	return c
}

// Recruit adds c to the roster under first-year rules: a fresh id, year 1,
// zeroed counters, stress and mental state pulled into the recruitment
// ranges, and a trait set resolved from whatever c already carries.
func (s *Session) Recruit(c model.Student) (model.Student, error) {
	if strings.TrimSpace(c.Name) == "" {
		return model.Student{}, fmt.Errorf("%w: student needs a name", ErrInvalid)
	}
	var out model.Student
	err := s.mutate(func(st *model.State) error {
		src := opSource(st)
		stu := c
		stu.ID = s.newID(ids.PrefixStudent)
		if !stu.Type.Valid() {
			stu.Type = s.tu.Recruit.DefaultType
		}
		stu.Year = 1
		stu.Contribution, stu.PendingPapers, stu.TotalPapers = 0, 0, 0
		stu.Diligence = mathx.ClampInt(stu.Diligence, model.AttrMin, model.AttrMax)
		stu.Talent = mathx.ClampInt(stu.Talent, model.AttrMin, model.AttrMax)
		stu.Luck = mathx.ClampInt(stu.Luck, model.AttrMin, model.AttrMax)
		stu.HiddenLuck = mathx.ClampInt(stu.HiddenLuck, model.AttrMin, model.AttrMax)
		stu.Stress = s.tu.Recruit.Stress.Clamp(stu.Stress)
		stu.MentalState = s.tu.Recruit.MentalState.Clamp(stu.MentalState)
		stu.Traits = traits.Resolve(s.cats.Traits, c.Traits, src)
		stu.MentorID, stu.IsBeingMentored = "", false
		stu.Whipped, stu.Comforted = false, false
		stu.RecruitedAt = st.Now
		st.Students = append(st.Students, stu)
		st.AddLog(model.LogRoster, fmt.Sprintf("%s joined the team as a %s student.", stu.Name, stu.Type))
		out = stu
		return nil
	})
	return out, err
}

// Dismiss removes a student and every reference to them.
func (s *Session) Dismiss(studentID string) error {
	return s.mutate(func(st *model.State) error {
		stu, ok := st.Student(studentID)
		if !ok {
			return fmt.Errorf("%w: student %s", ErrNotFound, studentID)
		}
		name := stu.Name
		dismiss(st, studentID)
		st.AddLog(model.LogRoster, fmt.Sprintf("%s was dismissed.", name))
		return nil
	})
}

// dismiss removes id from the roster and clears it from grant and project
// assignments, paper and grant leads, mentor claims and the backlog.
func dismiss(st *model.State, id string) {
	i := st.StudentIndex(id)
	if i < 0 {
		return
	}
	st.Students = append(st.Students[:i:i], st.Students[i+1:]...)
	for i := range st.Students {
		if st.Students[i].MentorID == id {
			st.Students[i].MentorID = ""
			st.Students[i].IsBeingMentored = false
		}
	}
	for i := range st.Grants {
		g := &st.Grants[i]
		g.AssignedStudentIDs = without(g.AssignedStudentIDs, id)
		if g.LeadStudentID == id {
			g.LeadStudentID = ""
		}
	}
	for i := range st.Projects {
		st.Projects[i].AssignedStudentIDs = without(st.Projects[i].AssignedStudentIDs, id)
	}
	for i := range st.Papers {
		if st.Papers[i].LeadStudentID == id {
			st.Papers[i].LeadStudentID = ""
		}
	}
	backlog := st.Backlog[:0:0]
	for _, d := range st.Backlog {
		if d.Context.StudentID == id {
			switch d.Kind {
			case model.KindStudentPaperEvent, model.KindQuarterEvent:
				continue
			}
			d.Context.StudentID = ""
		}
		backlog = append(backlog, d)
	}
	st.Backlog = backlog
}

func without(list []string, id string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (s *Session) AssignMentor(menteeID, mentorID string) error {
	return s.mutate(func(st *model.State) error {
		students, err := mentorship.Assign(st.Students, menteeID, mentorID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		st.Students = students
		return nil
	})
}

func (s *Session) ClearMentor(menteeID string) error {
	return s.mutate(func(st *model.State) error {
		if st.StudentIndex(menteeID) < 0 {
			return fmt.Errorf("%w: student %s", ErrNotFound, menteeID)
		}
		st.Students = mentorship.Clear(st.Students, menteeID)
		return nil
	})
}

// Whip pushes a student harder; once per student per quarter.
func (s *Session) Whip(studentID string) error {
	return s.care(studentID, true)
}

// Comfort eases a student's stress; once per student per quarter.
func (s *Session) Comfort(studentID string) error {
	return s.care(studentID, false)
}

func (s *Session) care(studentID string, whip bool) error {
	return s.mutate(func(st *model.State) error {
		stu, ok := st.Student(studentID)
		if !ok {
			return fmt.Errorf("%w: student %s", ErrNotFound, studentID)
		}
		if whip {
			if stu.Whipped {
				return ErrAlreadyCared
			}
			*stu = model.ApplyStudentDelta(*stu, s.tu.Care.Whip)
			stu.Whipped = true
			return nil
		}
		if stu.Comforted {
			return ErrAlreadyCared
		}
		*stu = model.ApplyStudentDelta(*stu, s.tu.Care.Comfort)
		stu.Comforted = true
		return nil
	})
}

// StartProject opens a research project for the given students.
func (s *Session) StartProject(title, category string, studentIDs []string) (model.Project, error) {
	if strings.TrimSpace(title) == "" {
		return model.Project{}, fmt.Errorf("%w: project needs a title", ErrInvalid)
	}
	var out model.Project
	err := s.mutate(func(st *model.State) error {
		assigned, err := known(st, studentIDs)
		if err != nil {
			return err
		}
		p := model.Project{
			ID:                 s.newID(ids.PrefixProject),
			Title:              title,
			Category:           category,
			AssignedStudentIDs: assigned,
			StartedAt:          st.Now,
		}
		st.Projects = append(st.Projects, p)
		st.AddLog(model.LogRoster, fmt.Sprintf("Started project %q.", title))
		out = p
		return nil
	})
	return out, err
}

// AssignProject replaces a running project's team.
func (s *Session) AssignProject(projectID string, studentIDs []string) error {
	return s.mutate(func(st *model.State) error {
		p, ok := st.Project(projectID)
		if !ok {
			return fmt.Errorf("%w: project %s", ErrNotFound, projectID)
		}
		if p.Completed {
			return fmt.Errorf("%w: project %s is complete", ErrInvalid, projectID)
		}
		assigned, err := known(st, studentIDs)
		if err != nil {
			return err
		}
		p.AssignedStudentIDs = assigned
		return nil
	})
}

// ApplyGrant files an application for typ with the given team.
func (s *Session) ApplyGrant(typ model.GrantType, studentIDs []string) (model.Grant, error) {
	cfg, ok := s.tu.Grant(typ)
	if !ok {
		return model.Grant{}, fmt.Errorf("%w: grant type %q", ErrInvalid, typ)
	}
	var out model.Grant
	err := s.mutate(func(st *model.State) error {
		if err := grants.CanApply(st.Grants, typ, st.Now, cfg); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		assigned, err := known(st, studentIDs)
		if err != nil {
			return err
		}
		g := grants.New(s.newID(ids.PrefixGrant), typ, cfg, st.Mentor.Stats, st.Students, assigned, st.Now)
		st.Grants = append(st.Grants, g)
		st.AddLog(model.LogGrant, fmt.Sprintf("Applied for %s (base score %d); the verdict is due %s.", g.Title, g.BaseScore, g.ReviewEnd))
		out = g
		return nil
	})
	return out, err
}

// AssignGrant replaces the team of a grant still under review or running.
func (s *Session) AssignGrant(grantID string, studentIDs []string) error {
	return s.mutate(func(st *model.State) error {
		g, ok := st.Grant(grantID)
		if !ok {
			return fmt.Errorf("%w: grant %s", ErrNotFound, grantID)
		}
		if g.Status.Terminal() {
			return fmt.Errorf("%w: grant %s is %s", ErrInvalid, grantID, g.Status)
		}
		assigned, err := known(st, studentIDs)
		if err != nil {
			return err
		}
		g.AssignedStudentIDs = assigned
		return nil
	})
}

// known dedupes ids and checks each is on the roster.
func known(st *model.State, studentIDs []string) ([]string, error) {
	out := make([]string, 0, len(studentIDs))
	seen := map[string]bool{}
	for _, id := range studentIDs {
		if seen[id] {
			continue
		}
		if st.StudentIndex(id) < 0 {
			return nil, fmt.Errorf("%w: student %s", ErrNotFound, id)
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}
