package model

type PaperStatus string

const (
	PaperAwaitingVenue    PaperStatus = "awaitingVenue"
	PaperUnderReview      PaperStatus = "underReview"
	PaperAwaitingRevision PaperStatus = "awaitingRevision"
	PaperAccepted         PaperStatus = "accepted"
	PaperRejected         PaperStatus = "rejected"
)

func (s PaperStatus) Terminal() bool { return s == PaperAccepted || s == PaperRejected }

// Tier grades venues and grants; A is the most prestigious.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// Rank orders tiers C < B < A; unknown tiers rank 0.
func (t Tier) Rank() int {
	switch t {
	case TierA:
		return 3
	case TierB:
		return 2
	case TierC:
		return 1
	}
	return 0
}

func (t Tier) Valid() bool { return t.Rank() > 0 }

// Downgrade returns the next lower tier, or false at C.
func (t Tier) Downgrade() (Tier, bool) {
	switch t {
	case TierA:
		return TierB, true
	case TierB:
		return TierC, true
	}
	return t, false
}

type RevisionKind string

const (
	RevisionMinor RevisionKind = "minor"
	RevisionMajor RevisionKind = "major"
)

type Paper struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	ProjectID     string      `json:"project_id,omitempty"`
	GrantID       string      `json:"grant_id,omitempty"`
	LeadStudentID string      `json:"lead_student_id,omitempty"`
	Status        PaperStatus `json:"status"`

	Venue         Tier         `json:"venue,omitempty"`
	RevisionRound int          `json:"revision_round"`
	RevisionKind  RevisionKind `json:"revision_kind,omitempty"`

	DecisionDue Quarter `json:"decision_due"`
	CreatedAt   Quarter `json:"created_at"`
}
