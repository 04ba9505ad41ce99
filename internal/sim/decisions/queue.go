// Package decisions holds the backlog of choices waiting on the player and
// builds the decisions the simulation itself raises.
package decisions

import "mentorsim.ai/internal/sim/model"

// Queue is the FIFO backlog. The head is the active decision.
type Queue []model.DecisionEvent

// Add appends d unless a decision with the same id is already queued.
func (q *Queue) Add(d model.DecisionEvent) bool {
	if q.Has(d.ID) {
		return false
	}
	*q = append(*q, d)
	return true
}

// Merge adds every decision of ds in order and returns how many were new.
func (q *Queue) Merge(ds ...model.DecisionEvent) int {
	n := 0
	for _, d := range ds {
		if q.Add(d) {
			n++
		}
	}
	return n
}

func (q Queue) Has(id string) bool {
	_, ok := q.Get(id)
	return ok
}

func (q Queue) Get(id string) (model.DecisionEvent, bool) {
	for _, d := range q {
		if d.ID == id {
			return d, true
		}
	}
	return model.DecisionEvent{}, false
}

// Active returns the decision the player acts on next.
func (q Queue) Active() (model.DecisionEvent, bool) {
	if len(q) == 0 {
		return model.DecisionEvent{}, false
	}
	return q[0], true
}

// Remove drops the decision with id, keeping the order of the rest.
func (q *Queue) Remove(id string) bool {
	for i, d := range *q {
		if d.ID == id {
			*q = append((*q)[:i:i], (*q)[i+1:]...)
			return true
		}
	}
	return false
}

// Dedupe drops repeated ids, keeping the first occurrence, and returns the
// number dropped.
func (q *Queue) Dedupe() int {
	seen := map[string]bool{}
	out := (*q)[:0:0]
	for _, d := range *q {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	dropped := len(*q) - len(out)
	*q = out
	return dropped
}
