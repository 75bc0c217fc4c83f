package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, contentType, body string) int {
	t.Helper()

	app := fiber.New()
	app.Use(Middleware(Config{MaxTextLength: 10}))
	app.Post("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        int
	}{
		{"valid", "application/json", `{"text": "东南门旁边"}`, fiber.StatusNoContent},
		{"ten runes of cjk fit", "application/json", `{"text": "一二三四五六七八九十"}`, fiber.StatusNoContent},
		{"too long", "application/json", `{"user_input": "一二三四五六七八九十一"}`, fiber.StatusBadRequest},
		{"markup", "application/json", `{"text": "<script>"}`, fiber.StatusBadRequest},
		{"unchecked field", "application/json", `{"other": "<script>x</script>"}`, fiber.StatusNoContent},
		{"bad json", "application/json", `{"text": `, fiber.StatusBadRequest},
		{"wrong type", "text/plain", `hello`, fiber.StatusUnsupportedMediaType},
		{"empty body", "application/json", ``, fiber.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, post(t, tt.contentType, tt.body))
		})
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "南门", Sanitize("  南\x00门 \n"))
}
