package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/church-registry/church-registry/internal/db/models"
	"github.com/church-registry/church-registry/internal/db/repositories"
	"github.com/church-registry/church-registry/internal/safego"
	"github.com/church-registry/church-registry/internal/telemetry"
)

// writeTimeout bounds each database insert performed by the worker. Entries are
// written after the originating request has completed, so there is no request
// context to inherit.
const writeTimeout = 5 * time.Second

// Recorder persists audit entries asynchronously. Enqueue never blocks the request
// path: entries go onto a bounded queue and a single worker goroutine writes them to
// the database and forwards them to any configured shipper. When the queue is full
// the entry is dropped and counted rather than stalling the caller.
type Recorder struct {
	repo     *repositories.AuditRepository
	accounts *repositories.AccountRepository
	shipper  Shipper
	logger   *slog.Logger

	queue    chan *models.AuditLog
	done     chan struct{}
	stopOnce sync.Once
}

// NewRecorder creates a Recorder and starts its worker. accounts is used to resolve
// the actor's display identity before each write; shipper may be nil.
func NewRecorder(repo *repositories.AuditRepository, accounts *repositories.AccountRepository, shipper Shipper, queueSize int, logger *slog.Logger) *Recorder {
	if queueSize < 1 {
		queueSize = 1
	}
	r := &Recorder{
		repo:     repo,
		accounts: accounts,
		shipper:  shipper,
		logger:   logger,
		queue:    make(chan *models.AuditLog, queueSize),
		done:     make(chan struct{}),
	}
	safego.Go("audit-recorder", r.run)
	return r
}

// Enqueue submits an entry for persistence. It returns false when the queue is full
// and the entry was dropped.
func (r *Recorder) Enqueue(entry *models.AuditLog) bool {
	select {
	case r.queue <- entry:
		return true
	default:
		telemetry.AuditQueueDroppedTotal.Inc()
		r.logger.Warn("audit queue full, entry dropped",
			"action_type", entry.ActionType,
			"entity_type", entry.EntityType)
		return false
	}
}

// Stop closes the queue and waits for the worker to drain it. Entries already queued
// are still written; ctx bounds how long the drain may take.
func (r *Recorder) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() {
		close(r.queue)
	})
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.queue {
		r.write(entry)
	}
}

func (r *Recorder) write(entry *models.AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	r.enrichActor(ctx, entry)

	logID, err := r.repo.Create(ctx, entry)
	if err != nil {
		telemetry.AuditLogFailuresTotal.Inc()
		r.logger.Error("failed to write audit log",
			"error", err,
			"action_type", entry.ActionType,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID)
	} else {
		entry.LogID = logID
		telemetry.AuditLogsWrittenTotal.WithLabelValues(entry.ActionType, entry.Status).Inc()
	}

	if r.shipper != nil {
		if err := r.shipper.Ship(ctx, entry); err != nil {
			r.logger.Error("failed to ship audit log", "error", err)
		}
	}
}

// enrichActor replaces the token-derived identity with the full display identity
// from the accounts table. Lookup failures leave the entry as it arrived; a
// degraded actor snapshot is better than no entry at all.
func (r *Recorder) enrichActor(ctx context.Context, entry *models.AuditLog) {
	if r.accounts == nil || entry.UserID == "" || entry.UserID == "anonymous" {
		return
	}

	info, err := r.accounts.GetActorInfo(ctx, entry.UserID)
	if err != nil {
		r.logger.Warn("failed to resolve actor for audit log", "error", err, "user_id", entry.UserID)
		return
	}
	if info == nil {
		return
	}

	if info.Email != nil {
		entry.UserEmail = info.Email
	}
	if info.FullName != nil {
		entry.UserName = info.FullName
	}
	if info.Position != nil {
		entry.UserPosition = info.Position
	}
}
