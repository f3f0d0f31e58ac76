package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func requestIDApp() *fiber.App {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		id, _ := c.Locals(requestIDHeader).(string)
		return c.SendString(id)
	})
	return app
}

func TestRequestIDKeepsValidInboundID(t *testing.T) {
	app := requestIDApp()
	inbound := uuid.NewString()

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, inbound)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get(requestIDHeader); got != inbound {
		t.Fatalf("valid inbound id must be kept, got %q", got)
	}
}

func TestRequestIDReplacesMalformedID(t *testing.T) {
	app := requestIDApp()

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid\ninjected=true")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	got := resp.Header.Get(requestIDHeader)
	if err := uuid.Validate(got); err != nil {
		t.Fatalf("malformed inbound id must be replaced with a uuid, got %q", got)
	}
}
