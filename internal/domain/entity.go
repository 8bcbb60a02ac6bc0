package domain

import (
	"time"
)

// StateEntry is one persisted key of the ladder state (Key-Value).
type StateEntry struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
