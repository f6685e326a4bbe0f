package store

import (
	"context"
	"database/sql"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/farrukh-siddiqui/expense-tracker/internal/ledger"
)

// RecordRepository persists and queries ledger entries in SQLite. Every
// operation is scoped to a user id; rows are never visible across users.
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository wraps the shared database handle.
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// CreateRecord inserts one ledger entry. The record's ID is generated
// here when empty. Dates are stored as ISO-8601 text.
func (r *RecordRepository) CreateRecord(ctx context.Context, rec *ledger.Record) error {
	if rec.UserID == "" {
		return fmt.Errorf("create record: user id is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO records (id, user_id, amount, text, category, date)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, rec.Amount, rec.Text, rec.Category, rec.Date.String())
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// ListRecords returns the user's ledger entries, newest date first.
func (r *RecordRepository) ListRecords(ctx context.Context, userID string) ([]*ledger.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount, text, category, date, created_at
		FROM records
		WHERE user_id = ?
		ORDER BY date DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := make([]*ledger.Record, 0)
	for rows.Next() {
		var rec ledger.Record
		var dateStr string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Amount, &rec.Text, &rec.Category, &dateStr, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		date, err := civil.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("record %s has invalid date %q: %w", rec.ID, dateStr, err)
		}
		rec.Date = date
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// DeleteRecord removes one of the user's ledger entries immediately.
// There is no soft delete and no undo. Deleting a row that does not
// exist (or belongs to someone else) reports sql.ErrNoRows.
func (r *RecordRepository) DeleteRecord(ctx context.Context, userID, recordID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM records WHERE id = ? AND user_id = ?
	`, recordID, userID)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
