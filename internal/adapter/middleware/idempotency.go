package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// IdempotencyStore is the slice of the database this middleware needs.
// *pgxpool.Pool satisfies it; tests drive it with an in-memory fake, the
// same way the settle path is tested against the in-memory ledger.
type IdempotencyStore interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Idempotency caches whole responses by the Idempotency-Key header, for the
// admin adjust endpoint. This is a convenience layer for operator retries;
// the gateway credit path never relies on it. Its exactly-once guarantee
// lives in the credit ledger's unique order-reference index.
func Idempotency(store IdempotencyStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Clone: c.Get returns a string aliasing fasthttp's reused
		// request buffer, and the store may retain the key past this
		// request (same reason saveCached copies the body).
		key := strings.Clone(c.Get("Idempotency-Key"))

		// No key, no caching. The endpoint still works, just without
		// replay protection.
		if key == "" {
			return c.Next()
		}

		if status, body, ok := lookupCached(c, store, key); ok {
			slog.Info("🛑 Idempotency Hit! Returning cached response", "key", key)
			c.Set("X-Idempotency-Hit", "true")
			c.Set("Content-Type", "application/json")
			return c.Status(status).Send(body)
		}

		if err := c.Next(); err != nil {
			return err
		}

		saveCached(c, store, key)
		return nil
	}
}

func lookupCached(c *fiber.Ctx, store IdempotencyStore, key string) (int, []byte, bool) {
	var status int
	var body []byte
	err := store.QueryRow(c.Context(),
		"SELECT response_status, response_body FROM idempotency_keys WHERE key_id = $1",
		key).Scan(&status, &body)
	if err != nil {
		// Miss or lookup failure: either way, run the handler.
		return 0, nil, false
	}
	return status, body, true
}

func saveCached(c *fiber.Ctx, store IdempotencyStore, key string) {
	status := c.Response().StatusCode()

	// Copy the body: fasthttp reuses the response buffer once the
	// handler chain returns.
	body := make([]byte, len(c.Response().Body()))
	copy(body, c.Response().Body())

	_, err := store.Exec(c.Context(),
		"INSERT INTO idempotency_keys (key_id, response_status, response_body) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
		key, status, body)
	if err != nil {
		slog.Error("❌ Failed to save Idempotency Key", "error", err, "key", key)
		return
	}
	slog.Info("💾 Idempotency Key Saved", "key", key)
}
