package model

type GrantType string

const (
	GrantNational   GrantType = "national"
	GrantEnterprise GrantType = "enterprise"
)

type GrantStatus string

const (
	GrantReviewing GrantStatus = "reviewing"
	GrantActive    GrantStatus = "active"
	GrantRejected  GrantStatus = "rejected"
	GrantCompleted GrantStatus = "completed"
	GrantFailed    GrantStatus = "failed"
)

func (s GrantStatus) Terminal() bool {
	return s == GrantRejected || s == GrantCompleted || s == GrantFailed
}

type Grant struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Type   GrantType   `json:"type"`
	Status GrantStatus `json:"status"`

	// Score model: final = BaseScore + ScoreDelta + Luck.
	BaseScore  int `json:"base_score"`
	ScoreDelta int `json:"score_delta"`
	Luck       int `json:"luck"`

	Tier              Tier `json:"tier,omitempty"`
	FundingGranted    int  `json:"funding_granted,omitempty"`
	ReputationGranted int  `json:"reputation_granted,omitempty"`

	AssignedStudentIDs []string `json:"assigned_student_ids"`
	LeadStudentID      string   `json:"lead_student_id,omitempty"`
	PaperProgress      int      `json:"paper_progress"`
	PaperIDs           []string `json:"paper_ids"`

	AppliedAt   Quarter `json:"applied_at"`
	ReviewEnd   Quarter `json:"review_end"`
	ActiveStart Quarter `json:"active_start,omitempty"`
	ClosureDue  Quarter `json:"closure_due,omitempty"`
}

func (g Grant) FinalScore() int { return g.BaseScore + g.ScoreDelta + g.Luck }

func (g Grant) HasStudent(id string) bool {
	for _, s := range g.AssignedStudentIDs {
		if s == id {
			return true
		}
	}
	return false
}

func (g Grant) clone() Grant {
	g.AssignedStudentIDs = append([]string(nil), g.AssignedStudentIDs...)
	g.PaperIDs = append([]string(nil), g.PaperIDs...)
	return g
}
