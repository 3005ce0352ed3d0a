package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/NoteFox/internal/pkg/extract"
	"github.com/ManuelReschke/NoteFox/internal/pkg/studio"
)

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

// extractionError maps text extraction failures to responses.
func extractionError(c *fiber.Ctx, err error) error {
	var fetchErr *extract.FetchError
	switch {
	case errors.Is(err, extract.ErrInvalidURL):
		return jsonError(c, fiber.StatusBadRequest, "invalid_url", "The URL cannot be fetched")
	case errors.Is(err, extract.ErrUnsupportedType):
		return jsonError(c, fiber.StatusUnsupportedMediaType, "unsupported_media_type", "Unsupported content type")
	case errors.Is(err, extract.ErrNoText):
		return jsonError(c, fiber.StatusUnprocessableEntity, "no_text", "No text could be extracted")
	case errors.As(err, &fetchErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "fetch_failed", "message": fetchErr.Error(), "status": fetchErr.StatusCode})
	default:
		return jsonError(c, fiber.StatusBadGateway, "fetch_failed", "Failed to fetch content")
	}
}

// generationError maps LLM failures to responses.
func generationError(c *fiber.Ctx, err error) error {
	if errors.Is(err, studio.ErrUpstream) {
		return jsonError(c, fiber.StatusBadGateway, "generation_failed", "Text generation failed, please retry")
	}
	return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Text generation failed")
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
