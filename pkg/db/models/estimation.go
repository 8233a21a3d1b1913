package models

import (
	"fmt"
	"time"
)

// Mode names the strategy that produced an estimation.
type Mode string

const (
	ModePlausible Mode = "plausible"
	ModeTop       Mode = "top"
	ModeAll       Mode = "all"
)

// Modes lists every valid mode in display order.
var Modes = []Mode{ModePlausible, ModeTop, ModeAll}

func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown estimation mode '%s'", s)
}

// Estimation is the confidence of one tag for one checksum under one mode.
// At most one row exists per (ChecksumID, TagID, Mode).
type Estimation struct {
	ID         uint    `gorm:"primaryKey"`
	ChecksumID uint    `gorm:"not null;uniqueIndex:idx_estimation_identity"`
	TagID      uint    `gorm:"not null;uniqueIndex:idx_estimation_identity;index"`
	Mode       Mode    `gorm:"type:text;not null;uniqueIndex:idx_estimation_identity"`
	Value      float64 `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Tag *Tag `gorm:"foreignKey:TagID;references:ID"`
}
