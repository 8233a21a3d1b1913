package models

import (
	"time"
)

// ConfirmedTag marks a tag as valid for a checksum.
type ConfirmedTag struct {
	ChecksumID uint `gorm:"primaryKey;autoIncrement:false"`
	TagID      uint `gorm:"primaryKey;autoIncrement:false;index"`

	CreatedAt time.Time
}

// RejectedTag marks a tag as invalid for a checksum.
type RejectedTag struct {
	ChecksumID uint `gorm:"primaryKey;autoIncrement:false"`
	TagID      uint `gorm:"primaryKey;autoIncrement:false;index"`

	CreatedAt time.Time
}

// Status is the curator verdict on an estimated tag.
type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
	StatusUnknown Status = "unknown"
)
