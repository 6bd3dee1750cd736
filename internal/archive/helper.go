// Package archive provides the safety net for destructive operations: every delete
// path snapshots the doomed row into the archives table first, so an accidental
// deletion can be restored later through the archive API.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/church-registry/church-registry/internal/db/repositories"
	"github.com/church-registry/church-registry/internal/telemetry"
)

// Result reports the outcome of an archive attempt. Success false means the snapshot
// was not stored; it is the caller's policy decision whether to proceed with the
// delete anyway.
type Result struct {
	Success   bool
	ArchiveID int64
	Message   string
}

// Archiver snapshots rows before deletion.
type Archiver struct {
	repo   *repositories.ArchiveRepository
	logger *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(repo *repositories.ArchiveRepository, logger *slog.Logger) *Archiver {
	return &Archiver{repo: repo, logger: logger}
}

// BeforeDelete stores a snapshot of data under the given source table and record id.
// It never returns an error: validation failures and storage failures both come back
// as a Result with Success false, so delete handlers can treat archiving as best
// effort without wrapping every call site in error plumbing. archivedBy may be nil
// for system-initiated deletes.
func (a *Archiver) BeforeDelete(ctx context.Context, table, recordID string, data map[string]interface{}, archivedBy *string) Result {
	table = strings.TrimSpace(table)
	recordID = strings.TrimSpace(recordID)

	if table == "" {
		return Result{Success: false, Message: "source table is required"}
	}
	if recordID == "" {
		return Result{Success: false, Message: "record id is required"}
	}
	if len(data) == 0 {
		return Result{Success: false, Message: "record data is required"}
	}

	archiveID, err := a.repo.Create(ctx, table, recordID, data, archivedBy)
	if err != nil {
		telemetry.ArchiveFailuresTotal.WithLabelValues(table).Inc()
		a.logger.Error("failed to archive record before delete",
			"error", err,
			"original_table", table,
			"original_id", recordID)
		return Result{Success: false, Message: fmt.Sprintf("failed to archive record: %v", err)}
	}

	telemetry.ArchivesCreatedTotal.WithLabelValues(table).Inc()
	a.logger.Info("record archived before delete",
		"archive_id", archiveID,
		"original_table", table,
		"original_id", recordID)

	return Result{
		Success:   true,
		ArchiveID: archiveID,
		Message:   fmt.Sprintf("record archived from %s", table),
	}
}
