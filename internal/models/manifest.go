package models

import (
	"time"
)

// ManifestEntry maps a synced item key to its verified content hash.
// Entries are global (not scoped to a run), upserted only after a verified
// successful fetch, and never deleted automatically; they let subsequent
// sync runs skip unchanged items.
type ManifestEntry struct {
	Key         string    `json:"key"`
	ContentHash string    `json:"content_hash"`
	UpdatedAt   time.Time `json:"updated_at"`
}
