package model

// Project tracks three sub-progress tracks; Completed is set once all three
// reach 100 and never cleared.
type Project struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`

	Literature int `json:"literature"`
	Experiment int `json:"experiment"`
	Results    int `json:"results"`

	AssignedStudentIDs []string `json:"assigned_student_ids"`
	Completed          bool     `json:"completed"`
	StartedAt          Quarter  `json:"started_at"`
}

func (p Project) HasStudent(id string) bool {
	for _, s := range p.AssignedStudentIDs {
		if s == id {
			return true
		}
	}
	return false
}

func (p Project) clone() Project {
	p.AssignedStudentIDs = append([]string(nil), p.AssignedStudentIDs...)
	return p
}
