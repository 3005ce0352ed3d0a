package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Question is a multiple choice question.
type Question struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
}

type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type VocabularyItem struct {
	Word       string `json:"word"`
	Definition string `json:"definition"`
}

// DiagramHeaders maps supported diagram types to their Mermaid header.
var DiagramHeaders = map[string]string{
	"flowchart": "flowchart TD",
	"sequence":  "sequenceDiagram",
	"class":     "classDiagram",
	"state":     "stateDiagram-v2",
	"entity":    "erDiagram",
}

var handwritingStyles = map[string]string{
	"neat":   "neat and organized handwriting like careful notes",
	"casual": "casual everyday handwriting with natural variation",
	"messy":  "quick, messy handwriting like lecture notes",
}

// Studio turns study material into generated artifacts.
type Studio struct {
	gen Generator
}

func New(gen Generator) *Studio {
	return &Studio{gen: gen}
}

func (s *Studio) Summarize(ctx context.Context, text string) (string, error) {
	return s.gen.Complete(ctx, Request{
		Messages: []Message{
			{Role: "system", Content: "You are an expert at creating detailed, structured summaries. Use markdown formatting with headings (##) and bullet points. Include all key concepts and maintain the original meaning."},
			{Role: "user", Content: "Create a comprehensive summary of this content:\n\n" + text},
		},
		Temperature: 0.7,
		MaxTokens:   1024,
	})
}

func (s *Studio) FollowUp(ctx context.Context, summary, question string) (string, error) {
	return s.gen.Complete(ctx, Request{
		Messages: []Message{
			{Role: "system", Content: "Answer questions concisely based ONLY on the provided summary. If the summary does not contain the answer, say so."},
			{Role: "user", Content: fmt.Sprintf("Summary:\n%s\n\nQuestion: %s", summary, question)},
		},
		Temperature: 0.5,
		MaxTokens:   512,
	})
}

func (s *Studio) Questions(ctx context.Context, text, difficulty string, count int) ([]Question, error) {
	raw, err := s.gen.Complete(ctx, Request{
		Messages: []Message{
			{Role: "system", Content: "Generate multiple-choice questions in JSON format. Each question must have 'text', 'options' (a list of 4 options) and 'answer' (the correct option). Return ONLY a JSON array."},
			{Role: "user", Content: fmt.Sprintf("Create %d %s difficulty questions from this text:\n\n%s", count, difficulty, text)},
		},
		Temperature: 0.5,
		MaxTokens:   1500,
	})
	if err != nil {
		return nil, err
	}
	var questions []Question
	if err := decodeJSONList(raw, &questions); err != nil {
		return nil, err
	}
	out := questions[:0]
	for _, q := range questions {
		if strings.TrimSpace(q.Text) != "" && len(q.Options) >= 2 && strings.TrimSpace(q.Answer) != "" {
			out = append(out, q)
		}
	}
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

func (s *Studio) Flashcards(ctx context.Context, text string) ([]Flashcard, error) {
	raw, err := s.gen.Complete(ctx, Request{
		Messages: []Message{
			{Role: "system", Content: "Generate flashcards in JSON format with 'front' (a term or question) and 'back' (its definition or answer). Return ONLY a JSON array."},
			{Role: "user", Content: "Create flashcards from this content:\n\n" + text},
		},
		Temperature: 0.5,
		MaxTokens:   1500,
	})
	if err != nil {
		return nil, err
	}
	var cards []Flashcard
	if err := decodeJSONList(raw, &cards); err != nil {
		return nil, err
	}
	out := cards[:0]
	for _, c := range cards {
		if strings.TrimSpace(c.Front) != "" && strings.TrimSpace(c.Back) != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Studio) Vocabulary(ctx context.Context, text string) ([]VocabularyItem, error) {
	raw, err := s.gen.Complete(ctx, Request{
		Messages: []Message{
			{Role: "system", Content: "Extract vocabulary words with definitions in JSON format. Each item must have 'word' and 'definition'. Return ONLY a JSON array."},
			{Role: "user", Content: "Identify key vocabulary from this text:\n\n" + text},
		},
		Temperature: 0.3,
		MaxTokens:   1500,
	})
	if err != nil {
		return nil, err
	}
	var items []VocabularyItem
	if err := decodeJSONList(raw, &items); err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if strings.TrimSpace(it.Word) != "" && strings.TrimSpace(it.Definition) != "" {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *Studio) Humanize(ctx context.Context, text string) (string, error) {
	return s.gen.Complete(ctx, Request{
		Messages: []Message{
			{Role: "system", Content: "Rewrite text to sound natural and human-like. Keep the meaning, vary sentence length and avoid robotic phrasing."},
			{Role: "user", Content: "Humanize this text:\n\n" + text},
		},
		Temperature: 0.8,
		MaxTokens:   1500,
	})
}

// Mindmap returns Mermaid mindmap code.
func (s *Studio) Mindmap(ctx context.Context, text string) (string, error) {
	code, err := s.gen.Complete(ctx, Request{
		Messages: []Message{
			{Role: "system", Content: "Generate mindmaps in Mermaid.js format. Start with 'mindmap'. Return ONLY the Mermaid code."},
			{Role: "user", Content: "Create a mindmap from this content:\n\n" + text},
		},
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", err
	}
	code = stripFence(code)
	if !strings.HasPrefix(code, "mindmap") {
		code = "mindmap\n  root((Main Topic))\n" + code
	}
	return code, nil
}

// Diagram returns Mermaid code of the given diagram type.
func (s *Studio) Diagram(ctx context.Context, text, diagramType string) (string, error) {
	header, ok := DiagramHeaders[diagramType]
	if !ok {
		return "", fmt.Errorf("unsupported diagram type %q", diagramType)
	}
	code, err := s.gen.Complete(ctx, Request{
		Messages: []Message{
			{Role: "system", Content: fmt.Sprintf("Generate a %s diagram in Mermaid.js format. Start with '%s'. Use proper syntax for the diagram type. Return ONLY the Mermaid code.", diagramType, header)},
			{Role: "user", Content: fmt.Sprintf("Create a %s diagram from this content:\n\n%s", diagramType, text)},
		},
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", err
	}
	code = stripFence(code)
	if !strings.HasPrefix(code, header) {
		code = header + "\n" + code
	}
	return code, nil
}

func (s *Studio) Handwritten(ctx context.Context, text, style string) (string, error) {
	desc, ok := handwritingStyles[style]
	if !ok {
		return "", fmt.Errorf("unsupported handwriting style %q", style)
	}
	return s.gen.Complete(ctx, Request{
		Messages: []Message{
			{Role: "system", Content: "Convert text to " + desc + ". Use markdown to represent handwritten features: ~crossed out~ text, **underlined** terms, [margin notes in brackets] and [doodle: description] for illustrations."},
			{Role: "user", Content: fmt.Sprintf("Convert this to %s handwriting:\n\n%s", style, text)},
		},
		Temperature: 0.7,
		MaxTokens:   1500,
	})
}

// stripFence removes a surrounding ``` code fence, with or without a language tag.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// decodeJSONList parses a model answer that should be a JSON array, tolerating
// code fences and prose around the array.
func decodeJSONList(raw string, v interface{}) error {
	s := stripFence(raw)
	start, end := strings.IndexByte(s, '['), strings.LastIndexByte(s, ']')
	if start < 0 || end < start {
		return fmt.Errorf("%w: answer is not a JSON list", ErrUpstream)
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: decode answer: %v", ErrUpstream, err)
	}
	return nil
}
