package entity

import (
	"time"

	"gorm.io/datatypes"
)

// NamespaceEntry is one persisted key of the memory store.
type NamespaceEntry struct {
	Namespace string         `gorm:"primaryKey"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}
