package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/menusam/partner-billing/pkg/db/models"
)

const maxErrorLen = 1024

var errTxRequired = errors.New("transaction required")

// Store persists outbox rows. Every method runs on the transaction handed in by the caller.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(tx *gorm.DB, row *models.OutboxEvent) error {
	if tx == nil {
		return errTxRequired
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return tx.Create(row).Error
}

// ClaimPending returns the oldest undelivered rows still under the attempt ceiling. On postgres the
// rows stay locked until the caller's transaction ends, so parallel relays never publish the same row.
func (s *Store) ClaimPending(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	q := tx.Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var rows []models.OutboxEvent
	err := q.Order("created_at ASC, id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (s *Store) MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"published_at": at.UTC(), "last_error": nil}).Error
}

// RecordAttempt bumps attempt_count after a retryable publish failure.
func (s *Store) RecordAttempt(tx *gorm.DB, id uuid.UUID, cause error) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    clipError(cause),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// Exhaust pins attempt_count at the ceiling so ClaimPending skips the row from now on.
func (s *Store) Exhaust(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_error": clipError(cause), "attempt_count": ceiling}).Error
}

// Purge deletes up to limit rows that are either published before cutoff or
// exhausted (already copied to the dead-letter table) and created before cutoff.
// A non-positive limit removes every match.
func (s *Store) Purge(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttempts, limit int) (int64, error) {
	if tx == nil {
		return 0, errTxRequired
	}
	const expired = "(published_at IS NOT NULL AND published_at < ?) OR (published_at IS NULL AND attempt_count >= ? AND created_at < ?)"
	q := tx.WithContext(ctx).Where(expired, cutoff, minAttempts, cutoff)
	if limit > 0 {
		batch := tx.Model(&models.OutboxEvent{}).Select("id").
			Where(expired, cutoff, minAttempts, cutoff).
			Order("created_at").Limit(limit)
		q = tx.WithContext(ctx).Where("id IN (?)", batch)
	}
	res := q.Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func clipError(err error) *string {
	if err == nil {
		return nil
	}
	msg := clip(err.Error())
	return &msg
}

func clip(msg string) string {
	if len(msg) > maxErrorLen {
		return msg[:maxErrorLen]
	}
	return msg
}
