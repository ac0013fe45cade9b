package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BotWeave/BotWeave/internal/models"
)

// FileURLSeparator joins multiple uploaded file URLs inside one reply.
const FileURLSeparator = ", "

// Recorder persists validated answers and result status transitions.
type Recorder struct {
	store   Store
	fetcher SizeFetcher
}

// NewRecorder creates a recorder backed by the given store and size fetcher.
func NewRecorder(st Store, f SizeFetcher) *Recorder {
	return &Recorder{store: st, fetcher: f}
}

// RecordAnswer upserts the reply for the given input block under the
// (resultID, groupID, blockID) key. Calling it twice for the same key
// overwrites the content and recomputes storage. For file uploads the
// referenced URLs are sized best-effort; an unreachable URL contributes
// nothing and never fails the recording.
func (r *Recorder) RecordAnswer(ctx context.Context, resultID string, block *models.Block, reply string) error {
	slog.Debug("Recorder.RecordAnswer", "resultID", resultID, "groupID", block.GroupID, "blockID", block.ID)

	answer := models.Answer{
		ResultID: resultID,
		GroupID:  block.GroupID,
		BlockID:  block.ID,
		Content:  reply,
	}
	if block.Options != nil {
		answer.VariableID = block.Options.VariableID
	}
	if block.Type == models.BlockTypeFileInput && strings.Contains(reply, "http") {
		answer.StorageUsed = r.computeStorageUsed(ctx, reply)
	}

	if err := r.store.UpsertAnswer(ctx, answer); err != nil {
		slog.Error("Recorder.RecordAnswer upsert failed", "error", err, "resultID", resultID, "blockID", block.ID)
		return fmt.Errorf("upsert answer for block %s: %w", block.ID, err)
	}
	slog.Debug("Recorder.RecordAnswer succeeded", "resultID", resultID, "blockID", block.ID, "storageUsed", answer.StorageUsed)
	return nil
}

// computeStorageUsed sums the sizes of the uploaded file URLs in the reply.
// URLs whose size cannot be determined are skipped, not counted as zero-byte
// failures.
func (r *Recorder) computeStorageUsed(ctx context.Context, reply string) int64 {
	var total int64
	for _, fileURL := range strings.Split(reply, FileURLSeparator) {
		size, ok, err := r.fetcher.ContentLength(ctx, fileURL)
		if err != nil {
			slog.Warn("Recorder.computeStorageUsed: size fetch failed, skipping URL", "url", fileURL, "error", err)
			continue
		}
		if !ok {
			continue
		}
		total += size
	}
	return total
}

// MarkResultStarted flags the result as started. Safe to call repeatedly.
func (r *Recorder) MarkResultStarted(ctx context.Context, resultID string) error {
	slog.Debug("Recorder.MarkResultStarted", "resultID", resultID)
	started := true
	if err := r.store.UpdateResult(ctx, resultID, models.ResultUpdate{HasStarted: &started}); err != nil {
		slog.Error("Recorder.MarkResultStarted failed", "error", err, "resultID", resultID)
		return fmt.Errorf("mark result %s started: %w", resultID, err)
	}
	return nil
}

// MarkResultCompleted flags the result as completed. Safe to call repeatedly.
func (r *Recorder) MarkResultCompleted(ctx context.Context, resultID string) error {
	slog.Debug("Recorder.MarkResultCompleted", "resultID", resultID)
	completed := true
	if err := r.store.UpdateResult(ctx, resultID, models.ResultUpdate{IsCompleted: &completed}); err != nil {
		slog.Error("Recorder.MarkResultCompleted failed", "error", err, "resultID", resultID)
		return fmt.Errorf("mark result %s completed: %w", resultID, err)
	}
	return nil
}
