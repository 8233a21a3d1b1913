package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// getOrCreate looks up a T by exact equality on match and inserts the entity
// returned by build when nothing matches. The insert uses ON CONFLICT DO NOTHING
// against the table's unique index: when a concurrent writer inserted the same
// key first, no row is affected and the winner's row is read back instead.
func getOrCreate[T any](db *gorm.DB, match map[string]any, build func() *T) (*T, bool, error) {
	var found T
	err := db.Where(match).Take(&found).Error
	if err == nil {
		return &found, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	entity := build()
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(entity)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected > 0 {
		return entity, true, nil
	}

	var winner T
	if err := db.Where(match).Take(&winner).Error; err != nil {
		return nil, false, fmt.Errorf("failed to read back conflicting row: %w", err)
	}

	return &winner, false, nil
}
