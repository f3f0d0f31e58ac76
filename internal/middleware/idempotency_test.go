package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/linkgrove/linkgrove/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, *atomic.Int64, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	logger := logging.Discard()
	app.Use(Idempotency(cache, time.Minute, logger))

	var hits atomic.Int64
	app.Post("/payments/complete", func(c *fiber.Ctx) error {
		hits.Add(1)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "settled"})
	})
	app.Post("/payments/approve", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "approved"})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, &hits, cleanup
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, _, cleanup := setupTestApp(t)
	defer cleanup()

	req := httptest.NewRequest(fiber.MethodPost, "/payments/complete", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, resp.StatusCode)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	app, hits, cleanup := setupTestApp(t)
	defer cleanup()

	send := func() map[string]string {
		req := httptest.NewRequest(fiber.MethodPost, "/payments/complete", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(idempotencyKeyHeader, "complete-pay-1")

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200 got %d", resp.StatusCode)
		}
		raw, _ := io.ReadAll(resp.Body)
		var body map[string]string
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return body
	}

	first := send()
	second := send()

	if hits.Load() != 1 {
		t.Fatalf("duplicate delivery must not re-run the handler, hits=%d", hits.Load())
	}
	if first["status"] != second["status"] {
		t.Fatalf("replayed response differs: %v vs %v", first, second)
	}
}

func TestIdempotencyKeysScopedPerRoute(t *testing.T) {
	app, _, cleanup := setupTestApp(t)
	defer cleanup()

	send := func(path string) map[string]string {
		req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(idempotencyKeyHeader, "shared-key-1")

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200 got %d", resp.StatusCode)
		}
		raw, _ := io.ReadAll(resp.Body)
		var body map[string]string
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return body
	}

	// The same key on a different callback must not replay the first
	// route's response.
	completed := send("/payments/complete")
	approved := send("/payments/approve")

	if completed["status"] != "settled" || approved["status"] != "approved" {
		t.Fatalf("responses crossed routes: %v / %v", completed, approved)
	}
}
