package application

import (
	"context"
	"log/slog"
)

// Invalidation triggers, recorded as the metrics label and in logs.
const (
	TriggerCampCreate     = "camp_create"
	TriggerCampUpdate     = "camp_update"
	TriggerCampDelete     = "camp_delete"
	TriggerCampJoin       = "camp_join"
	TriggerCampLeave      = "camp_leave"
	TriggerRoomCreate     = "room_create"
	TriggerRoomUpdate     = "room_update"
	TriggerRoomDelete     = "room_delete"
	TriggerRoomImport     = "room_import"
	TriggerWorkerCreate   = "worker_create"
	TriggerWorkerUpdate   = "worker_update"
	TriggerWorkerDelete   = "worker_delete"
	TriggerWorkerImport   = "worker_import"
	TriggerWorkerReassign = "worker_reassign"
	TriggerManual         = "manual"
	TriggerSessionEnd     = "session_end"
)

// CacheInvalidator removes cached views affected by a mutation.
type CacheInvalidator interface {
	InvalidateMatching(trigger string, target InvalidationTarget) int
}

// mutationHooks runs the cache invalidation that must follow every successful
// camp, room or worker mutation before the result is returned.
type mutationHooks struct {
	camps CampReader
	cache CacheInvalidator
}

// afterCampChange invalidates every view of the given camp snapshots.
func (h mutationHooks) afterCampChange(ctx context.Context, logger *slog.Logger, trigger string, camps ...Camp) {
	if h.cache == nil {
		return
	}
	removed := h.cache.InvalidateMatching(trigger, TargetForCamps(camps...))
	logger.DebugContext(ctx, "cache invalidated", "trigger", trigger, "entries", removed)
}

// afterContentChange invalidates the views of camps whose rooms or workers
// changed. Each snapshot is re-read so that shares granted since it was loaded
// are covered too. When a re-read fails the snapshot alone is used and an
// *InvalidationError is logged; the mutation is not failed.
func (h mutationHooks) afterContentChange(ctx context.Context, logger *slog.Logger, trigger string, snapshots ...Camp) {
	if h.cache == nil {
		return
	}
	camps := make([]Camp, 0, 2*len(snapshots))
	for _, snapshot := range snapshots {
		camps = append(camps, snapshot)
		if h.camps == nil || snapshot.ID == "" {
			continue
		}
		current, err := h.camps.GetCamp(ctx, snapshot.ID)
		if err != nil {
			iErr := &InvalidationError{Trigger: trigger, CampID: snapshot.ID, Err: err}
			logger.ErrorContext(ctx, "cache invalidation incomplete", "error", iErr, "error_kind", ErrorKind(iErr))
			continue
		}
		camps = append(camps, current)
	}
	h.afterCampChange(ctx, logger, trigger, camps...)
}
