package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/NoteFox/internal/pkg/usercontext"
)

// Defaulter is implemented by request bodies with optional fields.
type Defaulter interface {
	ApplyDefaults()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidateBody parses the JSON body into T, applies defaults and validates it.
// Handlers after it read the result with Body.
func ValidateBody[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := new(T)
		if err := c.BodyParser(body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Request body must be valid JSON"})
		}
		if d, ok := any(body).(Defaulter); ok {
			d.ApplyDefaults()
		}
		if err := validate.Struct(body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "validation_failed",
				"message": "Request body failed validation",
				"details": validationDetails(err),
			})
		}
		c.Locals(usercontext.KeyRequestBody, body)
		return c.Next()
	}
}

// Body returns the body stored by ValidateBody.
func Body[T any](c *fiber.Ctx) *T {
	body, _ := c.Locals(usercontext.KeyRequestBody).(*T)
	return body
}

func validationDetails(err error) map[string]string {
	details := map[string]string{}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		details["body"] = err.Error()
		return details
	}
	for _, fe := range errs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		details[fe.Field()] = rule
	}
	return details
}
