package models

import (
	"time"
)

// Namespace is a tag category such as "general", "character", "copyright" or "rating".
type Namespace struct {
	ID    uint   `gorm:"primaryKey"`
	Value string `gorm:"type:text;not null;uniqueIndex"`

	CreatedAt time.Time
}

// NoNamespace is stored in Tag.NamespaceID for tags without a category.
// A zero is used instead of NULL so the composite unique index also
// covers tags without a namespace.
const NoNamespace uint = 0

// Tag is unique by (Value, NamespaceID).
type Tag struct {
	ID          uint   `gorm:"primaryKey"`
	Value       string `gorm:"type:text;not null;uniqueIndex:idx_tag_identity"`
	NamespaceID uint   `gorm:"not null;default:0;uniqueIndex:idx_tag_identity"`

	CreatedAt time.Time

	// Filled by queries that join namespaces, never persisted.
	Namespace string `gorm:"->;-:migration"`
}

// Fullname returns "namespace:value", or the bare value without a namespace.
func (t *Tag) Fullname() string {
	return Fullname(t.Namespace, t.Value)
}

func Fullname(namespace, value string) string {
	if namespace == "" {
		return value
	}
	return namespace + ":" + value
}
