package sdk

// GenerateRequest holds the generate_questions arguments. Zero values take
// the server defaults.
type GenerateRequest struct {
	Situation   string
	Count       int
	Template    string
	Temperature float64
}

// Record is one generated question.
type Record struct {
	Question    string `json:"question"`
	Explanation string `json:"explanation"`
}

// GenerateResult is the outcome of a generation run.
type GenerateResult struct {
	RunID        string   `json:"run_id"`
	Template     string   `json:"template"`
	Requested    int      `json:"requested"`
	Records      []Record `json:"records"`
	AttemptsUsed int      `json:"attempts_used"`
	Outcome      string   `json:"outcome"`
	Warning      string   `json:"warning,omitempty"`
}

// Satisfied reports whether the server returned as many records as requested.
func (r *GenerateResult) Satisfied() bool {
	return r.Outcome == "satisfied"
}

// Template describes a prompt template available on the server.
type Template struct {
	Name         string   `json:"name"`
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description,omitempty"`
	Placeholders []string `json:"placeholders"`
	Body         string   `json:"body,omitempty"`
}

// TaskPlan is the planner's free-text answer for a goal.
type TaskPlan struct {
	Goal  string `json:"goal"`
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}
