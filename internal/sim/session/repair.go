package session

import (
	"fmt"

	"mentorsim.ai/internal/sim/catalogs"
	"mentorsim.ai/internal/sim/decisions"
	"mentorsim.ai/internal/sim/ids"
	"mentorsim.ai/internal/sim/mathx"
	"mentorsim.ai/internal/sim/mentorship"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/traits"
)

// Repair brings a persisted state back to a consistent shape. Missing or
// duplicate ids get fresh ones (relations pointing at the old id stay with
// its first holder), references to entities that do not exist are dropped,
// numbers are clamped, trait sets are resolved, mentor claims that break
// the one-mentee or no-cycle rules are cleared, and the backlog loses
// duplicates, invalid entries and decisions about vanished entities.
// Every repair is described in the returned notes and in the game log.
func Repair(st model.State, cat catalogs.TraitCatalog, bounds model.EffectBounds, newID ids.Generator) (model.State, []string) {
	var notes []string
	note := func(format string, args ...any) {
		n := fmt.Sprintf(format, args...)
		notes = append(notes, n)
	}

	if st.Version == 0 {
		st.Version = model.StateVersion
	}
	if !st.Now.Valid() {
		note("calendar %s is invalid; reset to Y1Q1", st.Now)
		st.Now = model.Quarter{Year: 1, Q: 1}
	}
	if st.Students == nil {
		st.Students = []model.Student{}
	}
	if st.Projects == nil {
		st.Projects = []model.Project{}
	}
	if st.Papers == nil {
		st.Papers = []model.Paper{}
	}
	if st.Grants == nil {
		st.Grants = []model.Grant{}
	}
	if st.Backlog == nil {
		st.Backlog = []model.DecisionEvent{}
	}

	reid := func(kind, prefix string, id *string, seen map[string]bool) {
		if *id != "" && !seen[*id] {
			seen[*id] = true
			return
		}
		old := *id
		for *id == "" || seen[*id] {
			*id = newID(prefix)
		}
		seen[*id] = true
		if old == "" {
			note("%s without an id got %s", kind, *id)
		} else {
			note("duplicate %s id %s reassigned to %s", kind, old, *id)
		}
	}

	// Students.
	live := map[string]bool{}
	for i := range st.Students {
		stu := &st.Students[i]
		reid("student", ids.PrefixStudent, &stu.ID, live)
		if !stu.Type.Valid() {
			stu.Type = model.StudentMaster
		}
		stu.Year = mathx.MaxInt(stu.Year, 1)
		for _, p := range []*int{&stu.Diligence, &stu.Talent, &stu.Luck, &stu.Stress, &stu.MentalState, &stu.HiddenLuck, &stu.Contribution} {
			*p = mathx.ClampInt(*p, model.AttrMin, model.AttrMax)
		}
		stu.PendingPapers = mathx.MaxInt(stu.PendingPapers, 0)
		stu.TotalPapers = mathx.MaxInt(stu.TotalPapers, 0)
		if len(cat.Defs) > 0 && !traits.Valid(cat, stu.Traits) {
			fixed := traits.Resolve(cat, stu.Traits, opSource(&st))
			note("traits of %s repaired: %v -> %v", stu.ID, stu.Traits, fixed)
			stu.Traits = fixed
		}
	}
	for i := range st.Students {
		stu := &st.Students[i]
		if stu.MentorID != "" && !live[stu.MentorID] {
			note("mentor %s of %s no longer exists", stu.MentorID, stu.ID)
			stu.MentorID = ""
		}
	}
	students, dropped := mentorship.Normalize(st.Students)
	for _, id := range dropped {
		note("mentor claim of %s broke the mentorship rules and was cleared", id)
	}
	st.Students, _ = mentorship.Rebuild(students)

	keep := func(kind, owner string, list []string, ok map[string]bool) []string {
		out := make([]string, 0, len(list))
		seen := map[string]bool{}
		for _, id := range list {
			if !ok[id] {
				note("%s %s referenced missing %s", kind, owner, id)
				continue
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
		return out
	}

	// Projects.
	projectIDs := map[string]bool{}
	for i := range st.Projects {
		p := &st.Projects[i]
		reid("project", ids.PrefixProject, &p.ID, projectIDs)
		p.AssignedStudentIDs = keep("project", p.ID, p.AssignedStudentIDs, live)
	}

	// Grants, before papers so paper grant references can be checked.
	grantIDs := map[string]bool{}
	for i := range st.Grants {
		reid("grant", ids.PrefixGrant, &st.Grants[i].ID, grantIDs)
	}

	// Papers.
	paperIDs := map[string]bool{}
	for i := range st.Papers {
		p := &st.Papers[i]
		reid("paper", ids.PrefixPaper, &p.ID, paperIDs)
		if p.LeadStudentID != "" && !live[p.LeadStudentID] {
			note("paper %s lead %s no longer exists", p.ID, p.LeadStudentID)
			p.LeadStudentID = ""
		}
		if p.ProjectID != "" && !projectIDs[p.ProjectID] {
			note("paper %s project %s no longer exists", p.ID, p.ProjectID)
			p.ProjectID = ""
		}
		if p.GrantID != "" && !grantIDs[p.GrantID] {
			note("paper %s grant %s no longer exists", p.ID, p.GrantID)
			p.GrantID = ""
		}
		p.RevisionRound = mathx.MaxInt(p.RevisionRound, 0)
	}

	for i := range st.Grants {
		g := &st.Grants[i]
		g.AssignedStudentIDs = keep("grant", g.ID, g.AssignedStudentIDs, live)
		g.PaperIDs = keep("grant", g.ID, g.PaperIDs, paperIDs)
		if g.LeadStudentID != "" && !live[g.LeadStudentID] {
			note("grant %s lead %s no longer exists", g.ID, g.LeadStudentID)
			g.LeadStudentID = ""
		}
		g.PaperProgress = mathx.MaxInt(g.PaperProgress, 0)
	}

	// Backlog.
	q := decisions.Queue(st.Backlog)
	if n := q.Dedupe(); n > 0 {
		note("dropped %d duplicate decision(s)", n)
	}
	backlog := q[:0:0]
	seen := map[string]bool{}
	for _, d := range q {
		reid("decision", ids.PrefixDecision, &d.ID, seen)
		if err := d.Validate(); err != nil {
			note("dropped decision: %v", err)
			continue
		}
		if stale := staleReason(d, live, paperIDs, grantIDs); stale != "" {
			note("dropped decision %s: %s", d.ID, stale)
			continue
		}
		if d.Context.StudentID != "" && !live[d.Context.StudentID] {
			d.Context.StudentID = ""
		}
		d.Options = append([]model.DecisionOption(nil), d.Options...)
		for j := range d.Options {
			o := &d.Options[j]
			if o.Effects != nil {
				e := o.Effects.Clamp(bounds)
				o.Effects = &e
			}
			o.Meta = o.Meta.Clamp(bounds)
		}
		backlog = append(backlog, d)
	}
	st.Backlog = backlog

	for _, n := range notes {
		st.AddLog(model.LogRepair, n)
	}
	return st, notes
}

func staleReason(d model.DecisionEvent, students, papers, grants map[string]bool) string {
	switch d.Kind {
	case model.KindProjectVenue, model.KindProjectRevision:
		if !papers[d.Context.PaperID] {
			return "paper " + d.Context.PaperID + " no longer exists"
		}
	case model.KindGrantReviewEvent, model.KindGrantExecutionEvent:
		if !grants[d.Context.GrantID] {
			return "grant " + d.Context.GrantID + " no longer exists"
		}
	case model.KindStudentPaperEvent:
		if !students[d.Context.StudentID] {
			return "student " + d.Context.StudentID + " no longer exists"
		}
	case model.KindQuarterEvent:
		if d.Context.StudentID != "" && !students[d.Context.StudentID] {
			return "student " + d.Context.StudentID + " no longer exists"
		}
	}
	return ""
}
