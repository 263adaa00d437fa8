package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base holds the connection shared by the domain repositories. The billing
// repository embeds it so a transaction handle can be swapped in without
// re-implementing the binding.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx. A nil ctx yields the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx rebinds the base to tx. A nil tx keeps the current connection.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// UpdateIfStatus applies updates to the row with the given id only while its
// status column still holds one of from. It reports whether a row changed;
// false means another writer moved the row first.
func (b Base) UpdateIfStatus(ctx context.Context, model any, id any, from any, updates map[string]any) (bool, error) {
	res := b.DB(ctx).
		Model(model).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
