// Package models - archive_record.go defines the ArchiveRecord model: a point-in-time
// JSON snapshot of a row taken immediately before it is deleted from its source table.
package models

import "time"

// ArchiveRecord is one snapshot of a deleted row.
//
// Multiple archive rows may exist for the same (OriginalTable, OriginalID) pair:
// restoring a record and deleting it again creates a fresh entry. Once Restored is
// set the row is informational only; restoring never deletes the archive row.
type ArchiveRecord struct {
	ArchiveID     int64                  `json:"archive_id"`
	OriginalTable string                 `json:"original_table"`
	OriginalID    string                 `json:"original_id"` // stringified primary key of the source row
	RecordData    map[string]interface{} `json:"record_data"` // JSONB: full row snapshot at deletion time
	ArchivedBy    *string                `json:"archived_by"`
	ArchivedAt    time.Time              `json:"archived_at"`
	Restored      bool                   `json:"restored"`
	RestoredBy    *string                `json:"restored_by"`
	RestoredAt    *time.Time             `json:"restored_at"`
	RestoreNotes  *string                `json:"restore_notes"`
}
