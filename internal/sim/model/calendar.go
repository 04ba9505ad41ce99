package model

import "fmt"

// Quarter is a (year, quarter) pair; Q is 1..4 and Year starts at 1.
type Quarter struct {
	Year int `json:"year"`
	Q    int `json:"quarter"`
}

// Index maps a quarter onto the total order every deadline comparison uses.
func (q Quarter) Index() int { return (q.Year-1)*4 + (q.Q - 1) }

func QuarterFromIndex(i int) Quarter {
	if i < 0 {
		i = 0
	}
	return Quarter{Year: i/4 + 1, Q: i%4 + 1}
}

func (q Quarter) Add(n int) Quarter { return QuarterFromIndex(q.Index() + n) }

func (q Quarter) Before(o Quarter) bool { return q.Index() < o.Index() }

// Reached reports whether due has arrived (now >= due).
func (q Quarter) Reached(due Quarter) bool { return q.Index() >= due.Index() }

func (q Quarter) Valid() bool { return q.Year >= 1 && q.Q >= 1 && q.Q <= 4 }

func (q Quarter) String() string { return fmt.Sprintf("Y%dQ%d", q.Year, q.Q) }
