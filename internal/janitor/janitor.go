package janitor

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/docmill/docmill/internal/config"
	"github.com/docmill/docmill/internal/database"
	"github.com/docmill/docmill/internal/logging"
	"github.com/docmill/docmill/internal/ratelimit"
	"github.com/docmill/docmill/internal/storage"
)

// Janitor removes expired artifacts and finished tasks together with their
// blobs. Artifacts referenced by a pending or processing task are never
// touched regardless of age.
type Janitor struct {
	db      *gorm.DB
	store   storage.Backend
	memory  *ratelimit.MemoryStore
	retain  time.Duration
	tickDur time.Duration
}

// New builds a Janitor. Retention defaults to 1 hour (RETENTION_WINDOW) and
// the sweep interval to 15 minutes (CLEANUP_INTERVAL). memory may be nil when
// rate-limit counters live in Redis.
func New(db *gorm.DB, store storage.Backend, memory *ratelimit.MemoryStore) *Janitor {
	return &Janitor{
		db:      db,
		store:   store,
		memory:  memory,
		retain:  config.GetDuration("RETENTION_WINDOW", time.Hour),
		tickDur: config.GetDuration("CLEANUP_INTERVAL", 15*time.Minute),
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	logging.Logf("[JANITOR] Started: retention %s, interval %s", j.retain, j.tickDur)
	ticker := time.NewTicker(j.tickDur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Logf("[JANITOR] Stopped")
			return
		case <-ticker.C:
			artifacts, tasks, err := j.Sweep(ctx, j.retain)
			if err != nil {
				logging.Logf("[JANITOR] Sweep error: %v", err)
				continue
			}
			if artifacts > 0 || tasks > 0 {
				logging.Logf("[JANITOR] Swept %d artifacts, %d tasks", artifacts, tasks)
			}
		}
	}
}

// Sweep deletes terminal tasks and unreferenced artifacts older than the
// retention window. Blobs are deleted before records so a failed blob delete
// leaves the record behind for the next sweep. Individual failures are
// logged and skipped.
func (j *Janitor) Sweep(ctx context.Context, retention time.Duration) (artifactsDeleted, tasksDeleted int, err error) {
	cutoff := time.Now().UTC().Add(-retention)

	tasks, err := database.StaleTerminalTasks(j.db, cutoff)
	if err != nil {
		return 0, 0, err
	}
	for _, task := range tasks {
		if task.OutputKey != "" {
			if err := j.store.Delete(ctx, task.OutputKey); err != nil {
				logging.Logf("[JANITOR] Failed to delete output %s: %v", task.OutputKey, err)
				continue
			}
		}
		if err := j.db.Delete(&database.ConversionTask{}, "id = ?", task.ID).Error; err != nil {
			logging.Logf("[JANITOR] Failed to delete task %s: %v", task.ID, err)
			continue
		}
		tasksDeleted++
	}

	artifacts, err := database.StaleArtifacts(j.db, cutoff)
	if err != nil {
		return artifactsDeleted, tasksDeleted, err
	}
	for _, artifact := range artifacts {
		if err := j.store.Delete(ctx, artifact.StorageKey); err != nil {
			logging.Logf("[JANITOR] Failed to delete blob %s: %v", artifact.StorageKey, err)
			continue
		}
		if err := j.db.Delete(&database.Artifact{}, "id = ?", artifact.ID).Error; err != nil {
			logging.Logf("[JANITOR] Failed to delete artifact %s: %v", artifact.ID, err)
			continue
		}
		artifactsDeleted++
	}

	if fs, ok := j.store.(*storage.FilesystemBackend); ok {
		if err := fs.RemoveEmptyDirs(ctx); err != nil {
			logging.Logf("[JANITOR] Failed to prune empty directories: %v", err)
		}
	}
	if j.memory != nil {
		j.memory.Prune()
	}

	return artifactsDeleted, tasksDeleted, nil
}
