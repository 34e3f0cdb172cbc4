package models

// Stage represents one interview stage of the catalog (technical1, technical2, behavioural)
type Stage struct {
	Type           InterviewType `json:"type"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Order          int           `json:"order"`
	Conversational bool          `json:"conversational"`
	TimeLimit      int           `json:"timeLimit"` // seconds, 0 = untimed
	TasksCount     int           `json:"tasksCount"`
}

// CatalogTask is a coding task, a written scenario or a behavioural scenario
type CatalogTask struct {
	ID          TaskID        `json:"id"`    // "1"
	Stage       InterviewType `json:"stage"` // "technical1"
	Kind        string        `json:"kind"`  // coding | scenario | conversation
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Difficulty  string        `json:"difficulty,omitempty"` // Easy | Medium | Hard
	Situation   string        `json:"situation,omitempty"`  // behavioural scenarios only
	Question    string        `json:"question,omitempty"`
	StarterCode string        `json:"starterCode,omitempty"`
	Hints       []string      `json:"hints,omitempty"`
	TimeLimit   int           `json:"timeLimit,omitempty"` // seconds
	Skills      []string      `json:"skills,omitempty"`
}

// Scenario is the context a behavioural conversation is grounded on
type Scenario struct {
	ID        TaskID `json:"id"`
	Title     string `json:"title"`
	Situation string `json:"situation"`
}

// Scenario returns the conversational view of a behavioural task
func (t *CatalogTask) Scenario() Scenario {
	return Scenario{ID: t.ID, Title: t.Title, Situation: t.Situation}
}
