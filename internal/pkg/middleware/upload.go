package middleware

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/NoteFox/internal/pkg/extract"
	"github.com/ManuelReschke/NoteFox/internal/pkg/usercontext"
)

// sniffLen is how much of a file content detection looks at.
const sniffLen = 3072

// Upload is a validated multipart file.
type Upload struct {
	Header *multipart.FileHeader
	Kind   extract.Kind
}

// RequireUpload checks the multipart file in field for presence, size and a
// supported type before any quota is consumed.
func RequireUpload(field string, maxBytes int64) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile(field)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": fmt.Sprintf("Missing file field %q", field)})
		}
		if fh.Size > maxBytes {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error":     "file_too_large",
				"message":   fmt.Sprintf("File exceeds the %d MB limit", maxBytes/(1024*1024)),
				"max_bytes": maxBytes,
			})
		}

		head, err := readHead(fh)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Could not read uploaded file"})
		}
		kind, err := extract.DetectKind(fh.Filename, head)
		if err != nil {
			if errors.Is(err, extract.ErrUnsupportedType) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{"error": "unsupported_media_type", "message": "Unsupported file type"})
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
		}

		c.Locals(usercontext.KeyUpload, &Upload{Header: fh, Kind: kind})
		return c.Next()
	}
}

// UploadFrom returns the file stored by RequireUpload.
func UploadFrom(c *fiber.Ctx) *Upload {
	u, _ := c.Locals(usercontext.KeyUpload).(*Upload)
	return u
}

func readHead(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}
