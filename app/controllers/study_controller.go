package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/NoteFox/internal/pkg/extract"
	"github.com/ManuelReschke/NoteFox/internal/pkg/middleware"
	"github.com/ManuelReschke/NoteFox/internal/pkg/studio"
	"github.com/ManuelReschke/NoteFox/internal/pkg/usercontext"
)

// StudyController serves the metered study endpoints. Authentication, body
// validation and the usage guard run as middleware before every handler.
type StudyController struct {
	studio  *studio.Studio
	fetcher *extract.Fetcher
	log     logrus.FieldLogger
}

func NewStudyController(s *studio.Studio, fetcher *extract.Fetcher, log logrus.FieldLogger) *StudyController {
	return &StudyController{studio: s, fetcher: fetcher, log: log}
}

// logFailure logs a failed request. The slot granted for it stays consumed.
func (sc *StudyController) logFailure(c *fiber.Ctx, op string, err error) {
	fields := logrus.Fields{
		"user_id": usercontext.GetUserID(c),
		"op":      op,
	}
	if grant := middleware.GrantFrom(c); grant != nil {
		fields["feature"] = grant.Feature
		fields["plan"] = grant.Plan
		fields["used_count"] = grant.UsedCount
	}
	sc.log.WithError(err).WithFields(fields).Warn("study request failed")
}

// HandleUploadAndExtract extracts the text of an uploaded document.
func (sc *StudyController) HandleUploadAndExtract(c *fiber.Ctx) error {
	upload := middleware.UploadFrom(c)
	f, err := upload.Header.Open()
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Could not read uploaded file")
	}
	defer f.Close()

	text, err := extract.FromReader(f, upload.Kind)
	if err != nil {
		sc.logFailure(c, "upload", err)
		return extractionError(c, err)
	}
	return c.JSON(fiber.Map{
		"extracted_text": text,
		"file_type":      upload.Kind,
		"file_size":      upload.Header.Size,
	})
}

func (sc *StudyController) HandleFetchAndExtractURL(c *fiber.Ctx) error {
	req := middleware.Body[URLRequest](c)
	text, err := sc.fetcher.FromURL(c.UserContext(), req.URL)
	if err != nil {
		sc.logFailure(c, "fetch_url", err)
		return extractionError(c, err)
	}
	return c.JSON(fiber.Map{"extracted_text": text})
}

func (sc *StudyController) HandleSummarize(c *fiber.Ctx) error {
	req := middleware.Body[TextRequest](c)
	summary, err := sc.studio.Summarize(c.UserContext(), extract.CleanText(req.Text))
	if err != nil {
		sc.logFailure(c, "summarize", err)
		return generationError(c, err)
	}
	return c.JSON(fiber.Map{"text": summary})
}

func (sc *StudyController) HandleFollowUp(c *fiber.Ctx) error {
	req := middleware.Body[FollowUpRequest](c)
	answer, err := sc.studio.FollowUp(c.UserContext(), extract.CleanText(req.Summary), req.Question)
	if err != nil {
		sc.logFailure(c, "follow_up", err)
		return generationError(c, err)
	}
	return c.JSON(fiber.Map{"text": answer})
}

func (sc *StudyController) HandleGenerateQuestions(c *fiber.Ctx) error {
	req := middleware.Body[QuestionsRequest](c)
	questions, err := sc.studio.Questions(c.UserContext(), extract.CleanText(req.Text), req.Difficulty, req.Count)
	if err != nil {
		sc.logFailure(c, "questions", err)
		return generationError(c, err)
	}
	return c.JSON(fiber.Map{"questions": questions})
}

func (sc *StudyController) HandleGenerateFlashcards(c *fiber.Ctx) error {
	req := middleware.Body[TextRequest](c)
	cards, err := sc.studio.Flashcards(c.UserContext(), extract.CleanText(req.Text))
	if err != nil {
		sc.logFailure(c, "flashcards", err)
		return generationError(c, err)
	}
	return c.JSON(fiber.Map{"flashcards": cards})
}

func (sc *StudyController) HandleGenerateVocabulary(c *fiber.Ctx) error {
	req := middleware.Body[TextRequest](c)
	items, err := sc.studio.Vocabulary(c.UserContext(), extract.CleanText(req.Text))
	if err != nil {
		sc.logFailure(c, "vocabulary", err)
		return generationError(c, err)
	}
	return c.JSON(fiber.Map{"vocabulary": items})
}

func (sc *StudyController) HandleHumanizeText(c *fiber.Ctx) error {
	req := middleware.Body[TextRequest](c)
	text, err := sc.studio.Humanize(c.UserContext(), extract.CleanText(req.Text))
	if err != nil {
		sc.logFailure(c, "humanize", err)
		return generationError(c, err)
	}
	return c.JSON(fiber.Map{"humanized_text": text})
}

func (sc *StudyController) HandleGenerateMindmap(c *fiber.Ctx) error {
	req := middleware.Body[TextRequest](c)
	code, err := sc.studio.Mindmap(c.UserContext(), extract.CleanText(req.Text))
	if err != nil {
		sc.logFailure(c, "mindmap", err)
		return generationError(c, err)
	}
	return c.JSON(fiber.Map{"mermaid_code": code})
}

func (sc *StudyController) HandleGenerateDiagram(c *fiber.Ctx) error {
	req := middleware.Body[DiagramRequest](c)
	code, err := sc.studio.Diagram(c.UserContext(), extract.CleanText(req.Text), req.DiagramType)
	if err != nil {
		sc.logFailure(c, "diagram", err)
		return generationError(c, err)
	}
	return c.JSON(fiber.Map{"mermaid_code": code, "diagram_type": req.DiagramType})
}

func (sc *StudyController) HandleGenerateHandwritten(c *fiber.Ctx) error {
	req := middleware.Body[HandwrittenRequest](c)
	notes, err := sc.studio.Handwritten(c.UserContext(), extract.CleanText(req.Text), req.Style)
	if err != nil {
		sc.logFailure(c, "handwritten", err)
		return generationError(c, err)
	}
	return c.JSON(fiber.Map{"handwritten_text": notes, "style": req.Style})
}
