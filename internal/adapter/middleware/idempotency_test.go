package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedResponse struct {
	status int
	body   []byte
}

type fakeRow struct {
	entry cachedResponse
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int) = r.entry.status
	*dest[1].(*[]byte) = r.entry.body
	return nil
}

// fakeIdempotencyStore keeps the cache in a map, standing in for the
// idempotency_keys table.
type fakeIdempotencyStore struct {
	cached map[string]cachedResponse
	saves  int
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{cached: make(map[string]cachedResponse)}
}

func (s *fakeIdempotencyStore) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	if entry, ok := s.cached[args[0].(string)]; ok {
		return fakeRow{entry: entry}
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (s *fakeIdempotencyStore) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	key := args[0].(string)
	if _, ok := s.cached[key]; !ok { // mirrors ON CONFLICT DO NOTHING
		s.cached[key] = cachedResponse{status: args[1].(int), body: args[2].([]byte)}
		s.saves++
	}
	return pgconn.CommandTag{}, nil
}

func newIdempotencyApp(store IdempotencyStore, calls *int) *fiber.App {
	app := fiber.New()
	app.Post("/adjust", Idempotency(store), func(c *fiber.Ctx) error {
		*calls++
		return c.JSON(fiber.Map{"status": "success", "call": *calls})
	})
	return app
}

func doAdjust(t *testing.T, app *fiber.App, key string) (*http.Response, string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/adjust", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestIdempotencyReplayReturnsCachedResponse(t *testing.T) {
	store := newFakeIdempotencyStore()
	calls := 0
	app := newIdempotencyApp(store, &calls)

	first, firstBody := doAdjust(t, app, "op-123")
	require.Equal(t, http.StatusOK, first.StatusCode)
	assert.Empty(t, first.Header.Get("X-Idempotency-Hit"))
	require.Equal(t, 1, store.saves)

	second, secondBody := doAdjust(t, app, "op-123")

	// The handler must not run again; the cached status and body come back.
	assert.Equal(t, 1, calls)
	assert.Equal(t, first.StatusCode, second.StatusCode)
	assert.Equal(t, firstBody, secondBody)
	assert.Equal(t, "true", second.Header.Get("X-Idempotency-Hit"))
	assert.Equal(t, 1, store.saves)
}

func TestIdempotencyDistinctKeysRunSeparately(t *testing.T) {
	store := newFakeIdempotencyStore()
	calls := 0
	app := newIdempotencyApp(store, &calls)

	doAdjust(t, app, "op-1")
	doAdjust(t, app, "op-2")

	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, store.saves)
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	store := newFakeIdempotencyStore()
	calls := 0
	app := newIdempotencyApp(store, &calls)

	doAdjust(t, app, "")
	resp, _ := doAdjust(t, app, "")

	assert.Equal(t, 2, calls)
	assert.Empty(t, resp.Header.Get("X-Idempotency-Hit"))
	assert.Zero(t, store.saves)
}
