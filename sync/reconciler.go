// ABOUTME: Reconciler that pushes one target group of CRM contacts to the directory
// ABOUTME: Runs budgeted create, update and delete phases and records run statistics
package sync

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/harperreed/gappsync/models"
)

// Store is the sync state and host data the Reconciler reads and writes.
type Store interface {
	RefreshGroupCache(ctx context.Context, groupID int64) error
	UnsyncedMembers(ctx context.Context, groupID int64, limit int) ([]uuid.UUID, error)
	StaleSynced(ctx context.Context, groupID int64, limit int) ([]models.SyncRecord, error)
	IneligibleSynced(ctx context.Context, groupID int64, limit int) ([]models.SyncRecord, error)
	Contact(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	Upsert(ctx context.Context, contactID uuid.UUID, remoteID string, at time.Time) error
	Delete(ctx context.Context, contactID uuid.UUID) error
	SaveRunStats(ctx context.Context, lastSync time.Time, processed int) error
}

// DirectoryFactory opens one directory session per run.
type DirectoryFactory func(ctx context.Context, settings models.Settings) (Directory, error)

// Reconciler converges the directory towards the target group. Runs must
// not overlap.
type Reconciler struct {
	store     Store
	directory DirectoryFactory
	logger    *log.Logger
	now       func() time.Time
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

func WithLogger(logger *log.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = logger }
}

func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

func NewReconciler(store Store, directory DirectoryFactory, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:     store,
		directory: directory,
		logger:    log.New(io.Discard),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run carries the state of one RunSync invocation.
type run struct {
	groupID   int64
	remaining int
	startedAt time.Time
	seen      map[uuid.UUID]bool
	dir       Directory
	summary   *models.RunSummary
}

func (r *run) consume(id uuid.UUID) {
	r.seen[id] = true
	r.remaining--
	r.summary.Processed++
}

// RunSync performs one reconciliation pass. maxOverride replaces the
// configured budget when positive. On failure the partial summary is
// returned with the error; work already committed stays committed.
func (r *Reconciler) RunSync(ctx context.Context, settings models.Settings, maxOverride int) (*models.RunSummary, error) {
	startedAt := r.now().UTC()
	summary := &models.RunSummary{StartedAt: startedAt}

	if settings.Group == "" {
		return summary, configurationError("no target group configured")
	}
	groupID, err := strconv.ParseInt(settings.Group, 10, 64)
	if err != nil {
		return summary, configurationError("invalid target group %q", settings.Group)
	}

	budget := maxOverride
	if budget <= 0 {
		budget = settings.MaxProcessed
	}
	if budget <= 0 {
		budget = models.DefaultMaxProcessed
	}

	logger := r.logger.With("group", groupID, "budget", budget)

	if err := r.store.RefreshGroupCache(ctx, groupID); err != nil {
		return summary, newError(KindCacheRefresh, "refresh group cache", err)
	}

	dir, err := r.directory(ctx, settings)
	if err != nil {
		return summary, classify("connect", err)
	}

	state := &run{
		groupID:   groupID,
		remaining: budget,
		startedAt: startedAt,
		seen:      make(map[uuid.UUID]bool),
		dir:       dir,
		summary:   summary,
	}

	phases := []struct {
		name string
		fn   func(context.Context, *run, *log.Logger) error
	}{
		{"create", r.createPhase},
		{"update", r.updatePhase},
		{"delete", r.deletePhase},
	}
	for _, phase := range phases {
		if err := phase.fn(ctx, state, logger.With("phase", phase.name)); err != nil {
			logger.Error("sync aborted", "phase", phase.name, "processed", summary.Processed, "err", err)
			return summary, err
		}
	}

	summary.BudgetExhausted = summary.Processed >= budget
	summary.Messages = runMessages(summary)

	processed := settings.Processed + summary.Processed
	if err := r.store.SaveRunStats(ctx, startedAt, processed); err != nil {
		return summary, fmt.Errorf("failed to save run statistics: %w", err)
	}

	logger.Info("sync finished",
		"created", summary.Created,
		"updated", summary.Updated,
		"deleted", summary.Deleted,
		"processed", summary.Processed,
		"budget_exhausted", summary.BudgetExhausted,
	)
	return summary, nil
}

func (r *Reconciler) createPhase(ctx context.Context, s *run, logger *log.Logger) error {
	if s.remaining <= 0 {
		return nil
	}

	ids, err := r.store.UnsyncedMembers(ctx, s.groupID, s.remaining)
	if err != nil {
		return fmt.Errorf("failed to select contacts to create: %w", err)
	}

	for _, id := range ids {
		if s.remaining <= 0 {
			break
		}
		if s.seen[id] {
			continue
		}

		contact, err := r.loadContact(ctx, id, "create")
		if err != nil {
			return err
		}

		remoteID, err := s.dir.Create(ctx, *contact)
		if err != nil {
			return withContact(err, "create", id)
		}
		if remoteID == "" {
			return invariantError("create", id, "directory returned an empty remote id")
		}

		if err := r.store.Upsert(ctx, id, remoteID, s.startedAt); err != nil {
			return fmt.Errorf("failed to record created contact %s: %w", id, err)
		}

		s.consume(id)
		s.summary.Created++
		logger.Debug("created", "contact", id, "remote_id", remoteID)
	}
	return nil
}

func (r *Reconciler) updatePhase(ctx context.Context, s *run, logger *log.Logger) error {
	if s.remaining <= 0 {
		return nil
	}

	records, err := r.store.StaleSynced(ctx, s.groupID, s.remaining)
	if err != nil {
		return fmt.Errorf("failed to select contacts to update: %w", err)
	}

	for _, record := range records {
		if s.remaining <= 0 {
			break
		}
		if s.seen[record.ContactID] {
			continue
		}
		if record.RemoteID == "" {
			return invariantError("update", record.ContactID, "sync record has no remote id")
		}

		contact, err := r.loadContact(ctx, record.ContactID, "update")
		if err != nil {
			return err
		}

		if err := s.dir.Update(ctx, *contact, record.RemoteID); err != nil {
			return withContact(err, "update", record.ContactID)
		}

		if err := r.store.Upsert(ctx, record.ContactID, record.RemoteID, s.startedAt); err != nil {
			return fmt.Errorf("failed to record updated contact %s: %w", record.ContactID, err)
		}

		s.consume(record.ContactID)
		s.summary.Updated++
		logger.Debug("updated", "contact", record.ContactID, "remote_id", record.RemoteID)
	}
	return nil
}

func (r *Reconciler) deletePhase(ctx context.Context, s *run, logger *log.Logger) error {
	if s.remaining <= 0 {
		return nil
	}

	records, err := r.store.IneligibleSynced(ctx, s.groupID, s.remaining)
	if err != nil {
		return fmt.Errorf("failed to select contacts to delete: %w", err)
	}

	for _, record := range records {
		if s.remaining <= 0 {
			break
		}
		if s.seen[record.ContactID] {
			continue
		}
		if record.RemoteID == "" {
			return invariantError("delete", record.ContactID, "sync record has no remote id")
		}

		if err := s.dir.Delete(ctx, record.RemoteID); err != nil {
			return withContact(err, "delete", record.ContactID)
		}

		if err := r.store.Delete(ctx, record.ContactID); err != nil {
			return fmt.Errorf("failed to forget deleted contact %s: %w", record.ContactID, err)
		}

		s.consume(record.ContactID)
		s.summary.Deleted++
		logger.Debug("deleted", "contact", record.ContactID, "remote_id", record.RemoteID)
	}
	return nil
}

func (r *Reconciler) loadContact(ctx context.Context, id uuid.UUID, op string) (*models.Contact, error) {
	contact, err := r.store.Contact(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact %s: %w", id, err)
	}
	if contact == nil {
		return nil, invariantError(op, id, "selected contact does not exist")
	}
	return contact, nil
}

func runMessages(summary *models.RunSummary) []string {
	if summary.Processed == 0 {
		return []string{"Nothing needed to be synchronized."}
	}

	var messages []string
	for _, action := range []struct {
		count int
		verb  string
	}{
		{summary.Created, "created"},
		{summary.Updated, "updated"},
		{summary.Deleted, "deleted"},
	} {
		if action.count > 0 {
			messages = append(messages, fmt.Sprintf("%d contact(s) %s.", action.count, action.verb))
		}
	}
	return messages
}
