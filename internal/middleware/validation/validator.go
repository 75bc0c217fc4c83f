package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var markupPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	// MaxTextLength bounds every free-text field, in runes.
	MaxTextLength       int
	AllowedContentTypes []string
	// TextFields lists the JSON string fields checked on POST bodies.
	TextFields []string
	Logger     *zap.Logger
}

// Middleware rejects POST bodies with an unexpected content type, oversized
// free text, or embedded markup. Field presence is left to the handlers.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxTextLength == 0 {
		cfg.MaxTextLength = 500
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON}
	}
	if len(cfg.TextFields) == 0 {
		cfg.TextFields = []string{"text", "user_input", "found_location", "location_name"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType != "" && !allowedType(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		if len(c.Body()) == 0 {
			return c.Next()
		}

		var body map[string]any
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		for _, field := range cfg.TextFields {
			s, ok := body[field].(string)
			if !ok {
				continue
			}

			if utf8.RuneCountInString(s) > cfg.MaxTextLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": field + " exceeds maximum length",
				})
			}

			if markupPattern.MatchString(s) {
				cfg.Logger.Warn("Markup rejected in request body",
					zap.String("ip", c.IP()),
					zap.String("path", c.Path()),
					zap.String("field", field),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid " + field + " content",
				})
			}
		}

		return c.Next()
	}
}

func allowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

// Sanitize trims whitespace and strips NUL bytes from user text.
func Sanitize(input string) string {
	return strings.ReplaceAll(strings.TrimSpace(input), "\x00", "")
}
