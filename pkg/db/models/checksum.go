package models

import (
	"time"
)

// Checksum anchors everything known about one distinct file content.
// Value is the SHA-256 fingerprint of the raw bytes.
type Checksum struct {
	ID    uint   `gorm:"primaryKey"`
	Value string `gorm:"type:text;size:64;not null;uniqueIndex"`

	CreatedAt time.Time

	// Relationships
	Images      []Image      `gorm:"foreignKey:ChecksumID;constraint:OnDelete:CASCADE"`
	Estimations []Estimation `gorm:"foreignKey:ChecksumID;constraint:OnDelete:CASCADE"`
}

// ShortValue is the abbreviated fingerprint shown in listings.
func (c *Checksum) ShortValue() string {
	if len(c.Value) < 7 {
		return c.Value
	}
	return c.Value[:7]
}
