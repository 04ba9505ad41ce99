package session

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"mentorsim.ai/internal/sim/decisions"
	"mentorsim.ai/internal/sim/grants"
	"mentorsim.ai/internal/sim/ids"
	"mentorsim.ai/internal/sim/mathx"
	"mentorsim.ai/internal/sim/mentorship"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/narrative"
	"mentorsim.ai/internal/sim/papers"
	"mentorsim.ai/internal/sim/rng"
)

// Report summarizes one settled quarter.
type Report struct {
	Quarter model.Quarter `json:"quarter"`
	Next    model.Quarter `json:"next"`

	Pairs    int            `json:"pairs"`
	Progress map[string]int `json:"progress"`
	Spawned  int            `json:"spawned"`

	Accepted  int `json:"accepted"`
	Revisions int `json:"revisions"`
	Rejected  int `json:"rejected"`

	ProjectsCompleted int `json:"projects_completed"`
	GrantsFunded      int `json:"grants_funded"`
	GrantsRejected    int `json:"grants_rejected"`
	GrantsCompleted   int `json:"grants_completed"`
	GrantsFailed      int `json:"grants_failed"`

	Upkeep int               `json:"upkeep"`
	Mentor model.MentorDelta `json:"mentor"`

	// Decisions lists the ids added to the backlog, local ones first.
	Decisions []string `json:"decisions"`
}

// EndQuarter settles the current quarter. Only one settlement runs at a
// time; a second call while one is in flight fails with ErrSettling.
//
// The local pass (mentorship, projects and papers, grants, upkeep, calendar)
// runs under the session lock and commits atomically. If it fails, the
// quarter is not advanced and a failure entry is logged. Narrative requests
// raised by the pass are then resolved concurrently and merged into the
// backlog as each one finishes.
func (s *Session) EndQuarter(ctx context.Context) (Report, error) {
	if !s.settling.CompareAndSwap(false, true) {
		return Report{}, ErrSettling
	}
	defer s.settling.Store(false)

	ctx, span := s.tracer.Start(ctx, "session.EndQuarter")
	defer span.End()

	s.mu.Lock()
	next, report, reqs, err := s.settleLocal(s.state.Clone())
	if err != nil {
		s.state.AddLog(model.LogFailure, fmt.Sprintf("Settlement of %s failed and was rolled back; try again.", s.state.Now))
		s.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "settle")
		s.logf("settle %s failed: %v", report.Quarter, err)
		return report, err
	}
	s.state = next
	s.mu.Unlock()
	span.SetAttributes(attribute.String("quarter", report.Quarter.String()), attribute.Int("narrative_requests", len(reqs)))

	merged := s.resolveNarrative(ctx, reqs)
	report.Decisions = append(report.Decisions, merged...)
	s.logf("settled %s: %d spawned, %d accepted, %d rejected, %d decisions queued",
		report.Quarter, report.Spawned, report.Accepted, report.Rejected, len(report.Decisions))
	return report, nil
}

type narrativeJob struct {
	batch []narrative.Request
	one   *narrative.Request
}

// resolveNarrative runs one call per grant or student event plus one batch
// for the quarter events, all concurrently. Each result is merged as soon as
// it arrives; merging is add-if-unseen.
func (s *Session) resolveNarrative(ctx context.Context, reqs []narrative.Request) []string {
	var jobs []narrativeJob
	var quarter []narrative.Request
	for i := range reqs {
		if narrative.KindFor(reqs[i].Situation.Tag) == model.KindQuarterEvent {
			quarter = append(quarter, reqs[i])
			continue
		}
		jobs = append(jobs, narrativeJob{one: &reqs[i]})
	}
	if len(quarter) > 0 {
		jobs = append(jobs, narrativeJob{batch: quarter})
	}

	var added []string
	var g errgroup.Group
	for _, job := range jobs {
		g.Go(func() error {
			var evs []model.DecisionEvent
			if job.one != nil {
				evs = []model.DecisionEvent{s.narrative.Event(ctx, *job.one)}
			} else {
				evs = s.narrative.Quarter(ctx, job.batch)
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			q := decisions.Queue(s.state.Backlog)
			for _, ev := range evs {
				if q.Add(ev) {
					added = append(added, ev.ID)
				}
			}
			s.state.Backlog = q
			return nil
		})
	}
	_ = g.Wait()
	return added
}

// settleLocal is the synchronous part of a quarter. Any panic inside it is
// turned into an error so the caller can leave the state untouched.
func (s *Session) settleLocal(st model.State) (out model.State, report Report, reqs []narrative.Request, err error) {
	report.Quarter = st.Now
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrSettlementFailed, r, debug.Stack())
		}
	}()

	src := s.source(st.Seed, st.Now.Index())
	now := st.Now
	var agg model.MentorDelta
	var local []model.DecisionEvent
	report.Progress = map[string]int{}

	// Mentorship.
	students, pairs := mentorship.Step(st.Students, s.cats.Traits)
	st.Students = students
	report.Pairs = len(pairs)
	mentored := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		mentored[p.MenteeID] = true
	}

	// Projects and papers.
	counts := papers.ProjectCounts(st.Projects)
	for i := range st.Students {
		stu := st.Students[i]
		amount := papers.QuarterProgress(stu, counts[stu.ID], mentored[stu.ID], src)
		report.Progress[stu.ID] = amount
		stu, n := papers.Accrue(stu, amount, s.tu.Papers)
		st.Students[i] = stu
		for k := 0; k < n; k++ {
			p := s.spawnStudentPaper(&st, stu)
			local = append(local, decisions.Venue(s.newID(ids.PrefixDecision), p, now, s.tu.Venues))
			report.Spawned++
		}
	}

	for i := range st.Projects {
		prj := st.Projects[i]
		if prj.Completed {
			continue
		}
		sum, n := 0, 0
		for _, id := range prj.AssignedStudentIDs {
			if v, ok := report.Progress[id]; ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			continue
		}
		prj, done := papers.AdvanceProject(prj, mathx.Round(float64(sum)/float64(n)))
		st.Projects[i] = prj
		if done {
			report.ProjectsCompleted++
			agg = agg.Merge(model.MentorDelta{
				Reputation: model.Int(s.tu.Projects.CompletionReputation),
				Morale:     model.Int(s.tu.Projects.CompletionMorale),
			})
			st.AddLog(model.LogSettlement, fmt.Sprintf("Project %q is complete.", prj.Title))
		}
	}

	for i := range st.Papers {
		p := st.Papers[i]
		var lead *model.Student
		if p.LeadStudentID != "" {
			lead, _ = st.Student(p.LeadStudentID)
		}
		res := papers.Settle(p, lead, st.Mentor.Stats, now, s.tu.Papers, src)
		if res.Verdict == papers.VerdictNone {
			continue
		}
		st.Papers[i] = res.Paper
		agg = agg.Merge(res.Mentor)
		if lead != nil && !res.Lead.IsZero() {
			*lead = model.ApplyStudentDelta(*lead, res.Lead)
		}
		switch res.Verdict {
		case papers.VerdictAccepted:
			report.Accepted++
			st.AddLog(model.LogPaper, fmt.Sprintf("%q was accepted at a tier-%s venue.", p.Title, p.Venue))
		case papers.VerdictRejected:
			report.Rejected++
			st.AddLog(model.LogPaper, fmt.Sprintf("%q was rejected.", p.Title))
		case papers.VerdictRevision:
			report.Revisions++
			st.AddLog(model.LogPaper, fmt.Sprintf("%q came back with a %s revision.", p.Title, res.Paper.RevisionKind))
			local = append(local, decisions.Revision(s.newID(ids.PrefixDecision), res.Paper, now))
		}
	}

	// Grants.
	for i := range st.Grants {
		g := st.Grants[i]
		cfg, ok := s.tu.Grant(g.Type)
		if !ok {
			continue
		}
		var step grants.Step
		tag := ""
		switch g.Status {
		case model.GrantReviewing:
			step = grants.StepReviewing(g, now, cfg, st.Students, src)
			tag = narrative.TagGrantReview
			switch step.Grant.Status {
			case model.GrantActive:
				report.GrantsFunded++
			case model.GrantRejected:
				report.GrantsRejected++
			}
		case model.GrantActive:
			step = grants.StepActive(g, now, cfg, st.Mentor.Stats, st.Students, st.Papers, src)
			tag = narrative.TagGrantExecution
			switch step.Grant.Status {
			case model.GrantCompleted:
				report.GrantsCompleted++
			case model.GrantFailed:
				report.GrantsFailed++
			}
		default:
			continue
		}
		g = step.Grant
		agg = agg.Merge(step.Mentor)
		if step.Note != "" {
			st.AddLog(model.LogGrant, step.Note)
		}
		for k := 0; k < step.Spawn; k++ {
			p := s.spawnGrantPaper(&st, &g)
			local = append(local, decisions.Venue(s.newID(ids.PrefixDecision), p, now, s.tu.Venues))
			report.Spawned++
		}
		st.Grants[i] = g
		if step.Event {
			reqs = append(reqs, narrative.Request{
				ID:        s.newID(ids.PrefixDecision),
				Situation: situation(&st, tag, s.tu.Events.TeamSummaryCap, &g, nil),
				Context:   model.DecisionContext{GrantID: g.ID},
			})
		}
	}

	// Student and quarter events.
	reqs = append(reqs, s.flavorRequests(&st, src)...)

	// Upkeep and the aggregated mentor delta.
	upkeep := s.tu.Mentor.UpkeepPerStudent * len(st.Students)
	report.Upkeep = upkeep
	if upkeep > 0 {
		agg = agg.Merge(model.MentorDelta{Funding: model.Int(-upkeep)})
	}
	st.Mentor.Stats = model.ApplyMentorDelta(st.Mentor.Stats, agg)
	if upkeep > 0 && st.Mentor.Stats.Funding == 0 {
		broke := model.MentorDelta{Morale: model.Int(s.tu.Mentor.BrokeMorale)}
		st.Mentor.Stats = model.ApplyMentorDelta(st.Mentor.Stats, broke)
		agg = agg.Merge(broke)
		st.AddLog(model.LogSettlement, "The lab ran out of money; morale suffers.")
	}
	report.Mentor = agg

	// One-shot flags reset, calendar advances.
	for i := range st.Students {
		st.Students[i].Whipped = false
		st.Students[i].Comforted = false
	}
	st.AddLog(model.LogSettlement, settlementSummary(report))
	st.Now = now.Add(1)
	if st.Now.Q == 1 {
		for i := range st.Students {
			st.Students[i].Year++
		}
	}
	report.Next = st.Now

	q := decisions.Queue(st.Backlog)
	for _, d := range local {
		if q.Add(d) {
			report.Decisions = append(report.Decisions, d.ID)
		}
	}
	st.Backlog = q
	return st, report, reqs, nil
}

func settlementSummary(r Report) string {
	parts := []string{fmt.Sprintf("%s settled", r.Quarter)}
	if r.Spawned > 0 {
		parts = append(parts, fmt.Sprintf("%d new paper(s)", r.Spawned))
	}
	if r.Accepted+r.Rejected+r.Revisions > 0 {
		parts = append(parts, fmt.Sprintf("%d accepted, %d in revision, %d rejected", r.Accepted, r.Revisions, r.Rejected))
	}
	if r.Upkeep > 0 {
		parts = append(parts, fmt.Sprintf("upkeep %d", r.Upkeep))
	}
	return strings.Join(parts, "; ") + "."
}

// spawnStudentPaper files a paper for a student's accumulated contribution,
// attributed to their first unfinished project if they have one. The
// student's pending counter was already raised by Accrue.
func (s *Session) spawnStudentPaper(st *model.State, stu model.Student) model.Paper {
	projectID, base := "", stu.Name+"'s manuscript"
	for _, prj := range st.Projects {
		if !prj.Completed && prj.HasStudent(stu.ID) {
			projectID, base = prj.ID, prj.Title
			break
		}
	}
	n := 1
	for _, p := range st.Papers {
		if (projectID != "" && p.ProjectID == projectID) || (projectID == "" && p.ProjectID == "" && p.GrantID == "" && p.LeadStudentID == stu.ID) {
			n++
		}
	}
	p := papers.New(s.newID(ids.PrefixPaper), fmt.Sprintf("%s, draft %d", base, n), stu.ID, st.Now)
	p.ProjectID = projectID
	st.Papers = append(st.Papers, p)
	st.AddLog(model.LogPaper, fmt.Sprintf("%s finished a manuscript: %q.", stu.Name, p.Title))
	return p
}

// spawnGrantPaper files a paper under grant g, led by the grant's lead.
func (s *Session) spawnGrantPaper(st *model.State, g *model.Grant) model.Paper {
	lead := ""
	if stu, ok := st.Student(g.LeadStudentID); ok {
		lead = stu.ID
		*stu = model.ApplyStudentDelta(*stu, model.StudentDelta{PendingPapers: model.Int(1)})
	}
	p := papers.New(s.newID(ids.PrefixPaper), fmt.Sprintf("%s, paper %d", g.Title, len(g.PaperIDs)+1), lead, st.Now)
	p.GrantID = g.ID
	st.Papers = append(st.Papers, p)
	g.PaperIDs = append(g.PaperIDs, p.ID)
	st.AddLog(model.LogPaper, fmt.Sprintf("%s produced a new manuscript: %q.", g.Title, p.Title))
	return p
}

// flavorRequests draws the student-paper event and the quarter events.
func (s *Session) flavorRequests(st *model.State, src rng.Source) []narrative.Request {
	ev := s.tu.Events
	var out []narrative.Request

	var writers []int
	for i, stu := range st.Students {
		if stu.PendingPapers > 0 {
			writers = append(writers, i)
		}
	}
	if len(writers) > 0 && rng.Chance(src, ev.StudentPaperChance) {
		stu := st.Students[writers[src.IntN(len(writers))]]
		m := narrative.MemberOf(stu)
		out = append(out, narrative.Request{
			ID:        s.newID(ids.PrefixDecision),
			Situation: situation(st, narrative.TagStudentPaper, ev.TeamSummaryCap, nil, &m),
			Context:   model.DecisionContext{StudentID: stu.ID},
		})
	}

	count := 1
	if rng.Chance(src, ev.QuarterExtraChance) {
		count++
	}
	for k := 0; k < count; k++ {
		tag := narrative.TagQuarterSchool
		if src.IntN(2) == 1 {
			tag = narrative.TagQuarterTeam
		}
		out = append(out, narrative.Request{
			ID:        s.newID(ids.PrefixDecision),
			Situation: situation(st, tag, ev.TeamSummaryCap, nil, nil),
		})
	}

	if len(st.Students) >= ev.LeaveMinTeam && rng.Chance(src, ev.LeaveChance) {
		stu := st.Students[src.IntN(len(st.Students))]
		m := narrative.MemberOf(stu)
		out = append(out, narrative.Request{
			ID:        s.newID(ids.PrefixDecision),
			Situation: situation(st, narrative.TagQuarterLeave, ev.TeamSummaryCap, nil, &m),
			Context:   model.DecisionContext{StudentID: stu.ID},
		})
	}
	return out
}

// situation snapshots what the narrative generator may see.
func situation(st *model.State, tag string, teamCap int, g *model.Grant, stu *narrative.TeamMember) narrative.Situation {
	sit := narrative.Situation{Tag: tag, Now: st.Now, Mentor: st.Mentor.Stats, Student: stu}
	if g != nil {
		c := *g
		c.AssignedStudentIDs = append([]string(nil), g.AssignedStudentIDs...)
		c.PaperIDs = append([]string(nil), g.PaperIDs...)
		sit.Grant = &c
	}
	agg := narrative.Aggregates{TeamSize: len(st.Students)}
	for _, s := range st.Students {
		agg.MeanStress += float64(s.Stress)
		agg.MeanMentalState += float64(s.MentalState)
		if teamCap <= 0 || len(sit.Team) < teamCap {
			sit.Team = append(sit.Team, narrative.MemberOf(s))
		}
	}
	if n := len(st.Students); n > 0 {
		agg.MeanStress /= float64(n)
		agg.MeanMentalState /= float64(n)
	}
	for _, g := range st.Grants {
		if g.Status == model.GrantActive {
			agg.ActiveGrants++
		}
	}
	for _, p := range st.Papers {
		switch p.Status {
		case model.PaperUnderReview:
			agg.PapersUnderReview++
		case model.PaperAccepted:
			agg.AcceptedPapers++
		}
	}
	sit.Stats = agg
	return sit
}
