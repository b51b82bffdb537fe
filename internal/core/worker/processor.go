package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"coinpay/internal/core/notifications"
)

const maxAttempts = 5

// jobStore is the slice of the database the worker needs.
// *pgxpool.Pool satisfies it; tests drive it with a fake.
type jobStore interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// StartWebhookWorker polls webhook_jobs and delivers credited events.
// It runs until the process exits; jobs survive restarts in the table.
func StartWebhookWorker(db *pgxpool.Pool, secret string) {
	if secret == "" {
		slog.Warn("⚠️ WEBHOOK_SECRET is missing, outbound webhooks will use an insecure default key")
		secret = "default_insecure_key"
	}

	go func() {
		slog.Info("👷 Webhook Worker started")
		for {
			processJobs(db, secret)
			time.Sleep(5 * time.Second)
		}
	}()
}

func processJobs(db jobStore, secret string) {
	ctx := context.Background()

	query := `
		SELECT id, url, payload, attempts
		FROM webhook_jobs
		WHERE status = 'PENDING' AND next_run_at <= NOW()
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	var id string
	var url string
	var payloadBytes []byte
	var attempts int

	err := db.QueryRow(ctx, query).Scan(&id, &url, &payloadBytes, &attempts)
	if err != nil {
		return
	}

	slog.Info("Worker: Processing job", "url", url, "job_id", id)

	sendErr := notifications.SendWebhook(url, payloadBytes, secret)

	if sendErr != nil {
		slog.Error("Worker: Webhook failed", "error", sendErr, "attempts", attempts)

		if attempts >= maxAttempts {
			markJob(ctx, db, id, "UPDATE webhook_jobs SET status = 'FAILED' WHERE id = $1")
			slog.Error("Worker: Job marked as FAILED (Max attempts reached)", "job_id", id)
			return
		}

		nextRun := time.Now().Add(time.Duration(attempts*10+10) * time.Second)
		_, err := db.Exec(ctx,
			"UPDATE webhook_jobs SET status = 'PENDING', attempts = attempts + 1, next_run_at = $2 WHERE id = $1",
			id, nextRun)
		if err != nil {
			// If this update is lost the job sits PENDING with a stale
			// next_run_at; make sure somebody can see why.
			slog.Error("Worker: Failed to schedule retry", "error", err, "job_id", id)
			return
		}
		slog.Info("Worker: Scheduled retry", "next_run", nextRun)
		return
	}

	slog.Info("✅ Worker: Webhook Sent Successfully!", "job_id", id)
	markJob(ctx, db, id, "UPDATE webhook_jobs SET status = 'COMPLETED' WHERE id = $1")
}

// markJob updates a job's terminal status, logging instead of dropping the
// error: the worker loop has nobody above it to report to.
func markJob(ctx context.Context, db jobStore, id, query string) {
	if _, err := db.Exec(ctx, query, id); err != nil {
		slog.Error("Worker: Failed to update job status", "error", err, "job_id", id)
	}
}
