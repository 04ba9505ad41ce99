package model

// StateVersion is bumped when the persisted layout changes.
const StateVersion = 1

type LogKind string

const (
	LogDecision   LogKind = "decision"
	LogSettlement LogKind = "settlement"
	LogPaper      LogKind = "paper"
	LogGrant      LogKind = "grant"
	LogRoster     LogKind = "roster"
	LogRepair     LogKind = "repair"
	LogFailure    LogKind = "failure"
)

type LogEntry struct {
	Quarter Quarter `json:"quarter"`
	Kind    LogKind `json:"kind"`
	Text    string  `json:"text"`
}

// State is the whole session: everything that gets persisted. References
// between entities are plain ids, never pointers.
type State struct {
	Version int     `json:"version"`
	Seed    int64   `json:"seed"`
	Now     Quarter `json:"now"`
	// Ops counts randomized player operations so each draws its own stream.
	Ops int `json:"ops"`

	Mentor   Mentor          `json:"mentor"`
	Students []Student       `json:"students"`
	Projects []Project       `json:"projects"`
	Papers   []Paper         `json:"papers"`
	Grants   []Grant         `json:"grants"`
	Backlog  []DecisionEvent `json:"backlog"`
	Log      []LogEntry      `json:"log"`
}

// Clone deep-copies every slice the simulation mutates. Option effect
// pointers are shared; options are never edited after creation.
func (s State) Clone() State {
	out := s
	out.Students = make([]Student, len(s.Students))
	for i, st := range s.Students {
		out.Students[i] = st.clone()
	}
	out.Projects = make([]Project, len(s.Projects))
	for i, p := range s.Projects {
		out.Projects[i] = p.clone()
	}
	out.Papers = append([]Paper(nil), s.Papers...)
	out.Grants = make([]Grant, len(s.Grants))
	for i, g := range s.Grants {
		out.Grants[i] = g.clone()
	}
	out.Backlog = make([]DecisionEvent, len(s.Backlog))
	for i, d := range s.Backlog {
		out.Backlog[i] = d.clone()
	}
	out.Log = append([]LogEntry(nil), s.Log...)
	return out
}

func (s *State) StudentIndex(id string) int {
	for i := range s.Students {
		if s.Students[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) Student(id string) (*Student, bool) {
	if i := s.StudentIndex(id); i >= 0 {
		return &s.Students[i], true
	}
	return nil, false
}

func (s *State) Paper(id string) (*Paper, bool) {
	for i := range s.Papers {
		if s.Papers[i].ID == id {
			return &s.Papers[i], true
		}
	}
	return nil, false
}

func (s *State) Grant(id string) (*Grant, bool) {
	for i := range s.Grants {
		if s.Grants[i].ID == id {
			return &s.Grants[i], true
		}
	}
	return nil, false
}

func (s *State) Project(id string) (*Project, bool) {
	for i := range s.Projects {
		if s.Projects[i].ID == id {
			return &s.Projects[i], true
		}
	}
	return nil, false
}

func (s *State) AddLog(kind LogKind, text string) {
	s.Log = append(s.Log, LogEntry{Quarter: s.Now, Kind: kind, Text: text})
}
