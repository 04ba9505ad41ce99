package model

import (
	"errors"
	"fmt"
	"strings"
)

type DecisionKind string

const (
	KindProjectVenue        DecisionKind = "projectVenue"
	KindProjectRevision     DecisionKind = "projectRevision"
	KindGrantReviewEvent    DecisionKind = "grantReviewEvent"
	KindGrantExecutionEvent DecisionKind = "grantExecutionEvent"
	KindStudentPaperEvent   DecisionKind = "studentPaperEvent"
	KindQuarterEvent        DecisionKind = "quarterEvent"
)

type RevisionAction string

const (
	RevisionRevise    RevisionAction = "revise"
	RevisionDowngrade RevisionAction = "downgrade"
	RevisionWithdraw  RevisionAction = "withdraw"
)

// ActionLeave on a quarter event removes the context student from the team.
const ActionLeave = "leave"

// Effects is the stat bundle an option applies when chosen.
type Effects struct {
	Mentor  *MentorDelta  `json:"mentor,omitempty"`
	Student *StudentDelta `json:"student,omitempty"`
}

// OptionMeta carries kind-specific side effects.
type OptionMeta struct {
	ScoreDelta    *int           `json:"score_delta,omitempty"`
	LuckDelta     *int           `json:"luck_delta,omitempty"`
	ProgressDelta *int           `json:"progress_delta,omitempty"`
	VenueTier     Tier           `json:"venue_tier,omitempty"`
	Revision      RevisionAction `json:"revision,omitempty"`
	Action        string         `json:"action,omitempty"`
}

type DecisionOption struct {
	ID      string     `json:"id"`
	Label   string     `json:"label"`
	Outcome string     `json:"outcome"`
	Hint    string     `json:"hint,omitempty"`
	Effects *Effects   `json:"effects,omitempty"`
	Meta    OptionMeta `json:"meta,omitempty"`
}

// DecisionContext identifies the entity a decision resolves. Which fields
// are required depends on the decision kind (see DecisionEvent.Validate).
type DecisionContext struct {
	ProjectID string `json:"project_id,omitempty"`
	PaperID   string `json:"paper_id,omitempty"`
	GrantID   string `json:"grant_id,omitempty"`
	StudentID string `json:"student_id,omitempty"`
	// Tag is the category/stage tag the narrative was generated for.
	Tag string `json:"tag,omitempty"`
}

type DecisionEvent struct {
	ID        string           `json:"id"`
	Kind      DecisionKind     `json:"kind"`
	Title     string           `json:"title"`
	Prompt    string           `json:"prompt"`
	Options   []DecisionOption `json:"options"`
	CreatedAt Quarter          `json:"created_at"`
	Context   DecisionContext  `json:"context"`
}

var ErrInvalidDecision = errors.New("invalid decision")

func (d DecisionEvent) Option(id string) (DecisionOption, bool) {
	for _, o := range d.Options {
		if o.ID == id {
			return o, true
		}
	}
	return DecisionOption{}, false
}

// Validate checks the structural contract shared by every decision kind.
func (d DecisionEvent) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidDecision, fmt.Sprintf(format, args...))
	}
	if strings.TrimSpace(d.ID) == "" {
		return bad("missing id")
	}
	if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.Prompt) == "" {
		return bad("%s: missing title/prompt", d.ID)
	}
	if n := len(d.Options); n < 2 || n > 3 {
		return bad("%s: %d options", d.ID, n)
	}
	seen := map[string]bool{}
	for _, o := range d.Options {
		if o.ID == "" || seen[o.ID] {
			return bad("%s: option ids must be unique and non-empty", d.ID)
		}
		seen[o.ID] = true
		if strings.TrimSpace(o.Label) == "" {
			return bad("%s: option %s has no label", d.ID, o.ID)
		}
	}
	switch d.Kind {
	case KindProjectVenue, KindProjectRevision:
		if d.Context.PaperID == "" {
			return bad("%s: %s needs paper_id", d.ID, d.Kind)
		}
	case KindGrantReviewEvent, KindGrantExecutionEvent:
		if d.Context.GrantID == "" {
			return bad("%s: %s needs grant_id", d.ID, d.Kind)
		}
	case KindStudentPaperEvent:
		if d.Context.StudentID == "" {
			return bad("%s: %s needs student_id", d.ID, d.Kind)
		}
	case KindQuarterEvent:
	default:
		return bad("%s: unknown kind %q", d.ID, d.Kind)
	}
	return nil
}

func (d DecisionEvent) clone() DecisionEvent {
	d.Options = append([]DecisionOption(nil), d.Options...)
	return d
}
