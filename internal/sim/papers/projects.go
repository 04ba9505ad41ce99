package papers

import (
	"mentorsim.ai/internal/sim/mathx"
	"mentorsim.ai/internal/sim/model"
)

const trackMax = 100

// AdvanceProject pours amount into the project's tracks in order
// (literature, then experiment, then results). completedNow is true only on
// the quarter the last track fills.
func AdvanceProject(p model.Project, amount int) (out model.Project, completedNow bool) {
	if p.Completed || amount <= 0 {
		return p, false
	}
	for _, track := range []*int{&p.Literature, &p.Experiment, &p.Results} {
		if amount == 0 {
			break
		}
		room := trackMax - *track
		if room <= 0 {
			continue
		}
		step := mathx.MinInt(room, amount)
		*track += step
		amount -= step
	}
	if p.Literature >= trackMax && p.Experiment >= trackMax && p.Results >= trackMax {
		p.Completed = true
		return p, true
	}
	return p, false
}

// ProjectCounts returns how many incomplete projects each student works on.
func ProjectCounts(projects []model.Project) map[string]int {
	out := map[string]int{}
	for _, p := range projects {
		if p.Completed {
			continue
		}
		for _, id := range p.AssignedStudentIDs {
			out[id]++
		}
	}
	return out
}
