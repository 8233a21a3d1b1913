package models

import (
	"time"
)

// Image is one uploaded file. Path is the storage name, which is the
// fingerprint followed by the original extension, so duplicate uploads
// share both Path and Checksum.
type Image struct {
	ID           uint   `gorm:"primaryKey"`
	Path         string `gorm:"type:text;not null;index"`
	OriginalName string `gorm:"type:text"`
	Size         int64  `gorm:"not null"`
	ChecksumID   uint   `gorm:"not null;index"`

	CreatedAt time.Time

	Checksum *Checksum `gorm:"foreignKey:ChecksumID;references:ID"`
}
