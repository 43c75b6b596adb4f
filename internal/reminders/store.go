package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// BatchStore logs reminder batches in reminder_batches.
type BatchStore struct {
	db DB
}

// NewBatchStore creates a reminder batch store.
func NewBatchStore(db DB) *BatchStore {
	return &BatchStore{db: db}
}

// RecordBatch inserts a batch, assigning ID and CreatedAt when unset.
func (s *BatchStore) RecordBatch(ctx context.Context, b *Batch) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.AppointmentIDs == nil {
		b.AppointmentIDs = []int64{}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO reminder_batches (id, actor_id, doctor_id, appointment_ids, status, message, total_selected, reminders_sent, failed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.ActorID, b.DoctorID, b.AppointmentIDs, b.Status, b.Message,
		b.TotalSelected, b.RemindersSent, b.Failed, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("reminders: record batch: %w", err)
	}
	return nil
}

// ListRecent returns the newest batches, optionally for one doctor (0 = all).
func (s *BatchStore) ListRecent(ctx context.Context, doctorID, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows pgx.Rows
		err  error
	)
	if doctorID > 0 {
		rows, err = s.db.Query(ctx, `
			SELECT id, actor_id, doctor_id, appointment_ids, status, message, total_selected, reminders_sent, failed, created_at
			FROM reminder_batches
			WHERE doctor_id = $1
			ORDER BY created_at DESC LIMIT $2`, doctorID, limit)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT id, actor_id, doctor_id, appointment_ids, status, message, total_selected, reminders_sent, failed, created_at
			FROM reminder_batches
			ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("reminders: list batches: %w", err)
	}
	defer rows.Close()
	return scanBatches(rows)
}

func scanBatches(rows pgx.Rows) ([]Batch, error) {
	var result []Batch
	for rows.Next() {
		var b Batch
		err := rows.Scan(
			&b.ID, &b.ActorID, &b.DoctorID, &b.AppointmentIDs, &b.Status, &b.Message,
			&b.TotalSelected, &b.RemindersSent, &b.Failed, &b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("reminders: scan batch: %w", err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}
