package router

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/NoteFox/app/controllers"
	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/NoteFox/internal/pkg/middleware"
)

const webhookPath = "/api/razorpay-webhook"

type ApiRouter struct {
	deps Deps
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	d := h.deps

	api := app.Group("/api", cors.New(cors.Config{
		AllowOrigins: d.CORSAllowedOrigins,
		AllowMethods: strings.Join([]string{fiber.MethodGet, fiber.MethodPost, fiber.MethodOptions}, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}), limiter.New(limiter.Config{
		Max:        d.RateLimitMax,
		Expiration: d.RateLimitWindow,
		Storage:    d.LimiterStorage,
		Next: func(c *fiber.Ctx) bool {
			// Provider deliveries are retried on failure and must never be throttled.
			return d.RateLimitMax == 0 || c.Path() == webhookPath
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited", "message": "Too many requests"})
		},
	}))

	api.Post("/razorpay-webhook", d.Billing.HandleRazorpayWebhook)

	authed := middleware.RequireBearerAuth(d.Verifier, d.Users, d.Log)
	api.Get("/me", authed, d.Account.HandleGetMe)
	api.Get("/usage", authed, d.Account.HandleGetUsage)

	metered := func(feature entitlements.Feature) fiber.Handler {
		return middleware.EnforceUsageLimit(d.Guard, feature)
	}
	s := d.Study

	api.Post("/upload-and-extract", authed, middleware.RequireUpload("file", d.MaxUploadBytes), metered(entitlements.FeatureUploads), s.HandleUploadAndExtract)
	api.Post("/fetch-and-extract-url", authed, middleware.ValidateBody[controllers.URLRequest](), metered(entitlements.FeatureSummaries), s.HandleFetchAndExtractURL)
	api.Post("/summarize", authed, middleware.ValidateBody[controllers.TextRequest](), metered(entitlements.FeatureSummaries), s.HandleSummarize)
	api.Post("/follow-up", authed, middleware.ValidateBody[controllers.FollowUpRequest](), metered(entitlements.FeatureSummaries), s.HandleFollowUp)
	api.Post("/generate-questions", authed, middleware.ValidateBody[controllers.QuestionsRequest](), metered(entitlements.FeatureQuestions), s.HandleGenerateQuestions)
	api.Post("/generate-flashcards", authed, middleware.ValidateBody[controllers.TextRequest](), metered(entitlements.FeatureFlashcards), s.HandleGenerateFlashcards)
	api.Post("/generate-vocabulary", authed, middleware.ValidateBody[controllers.TextRequest](), metered(entitlements.FeatureVocabulary), s.HandleGenerateVocabulary)
	api.Post("/humanize-text", authed, middleware.ValidateBody[controllers.TextRequest](), metered(entitlements.FeatureHumanize), s.HandleHumanizeText)
	api.Post("/generate-mindmap", authed, middleware.ValidateBody[controllers.TextRequest](), metered(entitlements.FeatureDiagrams), s.HandleGenerateMindmap)
	api.Post("/generate-diagram", authed, middleware.ValidateBody[controllers.DiagramRequest](), metered(entitlements.FeatureDiagrams), s.HandleGenerateDiagram)
	api.Post("/generate-handwritten", authed, middleware.ValidateBody[controllers.HandwrittenRequest](), metered(entitlements.FeatureHandwritten), s.HandleGenerateHandwritten)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}
