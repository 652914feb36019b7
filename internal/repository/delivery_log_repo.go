package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"greybackend/internal/model"
)

// DeliveryLogRepository persists delivery records in Postgres.
type DeliveryLogRepository struct {
	db *pgxpool.Pool
}

func NewDeliveryLogRepository(db *pgxpool.Pool) *DeliveryLogRepository {
	return &DeliveryLogRepository{db: db}
}

const pgSchema = `
    CREATE TABLE IF NOT EXISTS sent_emails (
        id            BIGSERIAL PRIMARY KEY,
        sender_id     BIGINT,
        recipients    TEXT,
        subject       TEXT,
        body          TEXT,
        attachments   TEXT NOT NULL DEFAULT '[]',
        status        VARCHAR(16) NOT NULL,
        error_message TEXT,
        sent_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )
`

func (r *DeliveryLogRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("failed to create sent_emails: %w", err)
	}
	return nil
}

func (r *DeliveryLogRepository) Insert(ctx context.Context, rec *model.DeliveryRecord) error {
	query := `
        INSERT INTO sent_emails (sender_id, recipients, subject, body, attachments, status, error_message, sent_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        RETURNING id, sent_at
    `
	err := r.db.QueryRow(ctx, query,
		rec.SenderID,
		rec.Recipients,
		rec.Subject,
		rec.Body,
		rec.Attachments,
		string(rec.Status),
		rec.ErrorMessage,
	).Scan(&rec.ID, &rec.SentAt)
	if err != nil {
		return fmt.Errorf("failed to insert delivery record: %w", err)
	}
	return nil
}

// ListRecent returns the newest records first.
func (r *DeliveryLogRepository) ListRecent(ctx context.Context, limit int) ([]model.DeliveryRecord, error) {
	query := `
        SELECT id, sender_id, recipients, subject, body, attachments, status, error_message, sent_at
        FROM sent_emails
        ORDER BY sent_at DESC, id DESC
        LIMIT $1
    `
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sent_emails: %w", err)
	}
	defer rows.Close()

	var out []model.DeliveryRecord
	for rows.Next() {
		var rec model.DeliveryRecord
		var status string
		if err := rows.Scan(
			&rec.ID,
			&rec.SenderID,
			&rec.Recipients,
			&rec.Subject,
			&rec.Body,
			&rec.Attachments,
			&status,
			&rec.ErrorMessage,
			&rec.SentAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delivery record: %w", err)
		}
		rec.Status = model.DeliveryStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
