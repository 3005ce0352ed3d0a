package controllers

// TextRequest is the body of endpoints that only take study material.
type TextRequest struct {
	Text string `json:"text" validate:"required"`
}

type URLRequest struct {
	URL string `json:"url" validate:"required,max=2048"`
}

type FollowUpRequest struct {
	Summary  string `json:"summary" validate:"required"`
	Question string `json:"question" validate:"required,max=2000"`
}

type QuestionsRequest struct {
	Text       string `json:"text" validate:"required"`
	Difficulty string `json:"difficulty" validate:"oneof=easy medium hard"`
	Count      int    `json:"count" validate:"gte=1,lte=20"`
}

func (r *QuestionsRequest) ApplyDefaults() {
	if r.Difficulty == "" {
		r.Difficulty = "medium"
	}
	if r.Count == 0 {
		r.Count = 5
	}
}

type DiagramRequest struct {
	Text        string `json:"text" validate:"required"`
	DiagramType string `json:"diagram_type" validate:"oneof=flowchart sequence class state entity"`
}

func (r *DiagramRequest) ApplyDefaults() {
	if r.DiagramType == "" {
		r.DiagramType = "flowchart"
	}
}

type HandwrittenRequest struct {
	Text  string `json:"text" validate:"required"`
	Style string `json:"style" validate:"oneof=neat casual messy"`
}

func (r *HandwrittenRequest) ApplyDefaults() {
	if r.Style == "" {
		r.Style = "neat"
	}
}
