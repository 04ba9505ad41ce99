package protocol

import (
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/session"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	PlayerName      string     `json:"player_name"`
	Auth            *HelloAuth `json:"auth,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	PlayerID        string         `json:"player_id"`
	Mentor          string         `json:"mentor"`
	Now             model.Quarter  `json:"now"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	TraitsDigest     string `json:"traits_digest"`
	NarrativesDigest string `json:"narratives_digest"`
	TuningDigest     string `json:"tuning_digest"`
}

// STATE (server -> client): the whole session after every change.
type StateMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Seq             uint64      `json:"seq"`
	Settling        bool        `json:"settling"`
	State           model.State `json:"state"`
}

// Commands carried by CMD.
const (
	CmdEndQuarter    = "END_QUARTER"
	CmdChoose        = "CHOOSE"
	CmdRecruit       = "RECRUIT"
	CmdDismiss       = "DISMISS"
	CmdAssignMentor  = "ASSIGN_MENTOR"
	CmdClearMentor   = "CLEAR_MENTOR"
	CmdApplyGrant    = "APPLY_GRANT"
	CmdAssignGrant   = "ASSIGN_GRANT"
	CmdStartProject  = "START_PROJECT"
	CmdAssignProject = "ASSIGN_PROJECT"
	CmdWhip          = "WHIP"
	CmdComfort       = "COMFORT"
)

// CMD (client -> server). Which fields matter depends on Command.
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Command         string `json:"command"`

	DecisionID  string            `json:"decision_id,omitempty"`
	OptionID    string            `json:"option_id,omitempty"`
	StudentID   string            `json:"student_id,omitempty"`
	MentorID    string            `json:"mentor_id,omitempty"`
	ProjectID   string            `json:"project_id,omitempty"`
	GrantID     string            `json:"grant_id,omitempty"`
	Name        string            `json:"name,omitempty"`
	StudentType model.StudentType `json:"student_type,omitempty"`
	GrantType   model.GrantType   `json:"grant_type,omitempty"`
	Title       string            `json:"title,omitempty"`
	Category    string            `json:"category,omitempty"`
	StudentIDs  []string          `json:"student_ids,omitempty"`
}

// ACK (server -> client) answers one CMD.
type AckMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	AckFor          string        `json:"ack_for"`
	Accepted        bool          `json:"accepted"`
	Code            string        `json:"code,omitempty"`
	Message         string        `json:"message,omitempty"`
	Now             model.Quarter `json:"now"`
	// EntityID is the id minted by RECRUIT, START_PROJECT or APPLY_GRANT.
	EntityID string `json:"entity_id,omitempty"`
}

// REPORT (server -> client) follows a successful END_QUARTER.
type ReportMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Report          session.Report `json:"report"`
}
