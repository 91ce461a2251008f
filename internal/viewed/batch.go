package viewed

import (
	"context"
	"sync"
	"time"

	"orghub/internal/common"
)

const (
	defaultChunkSize  = 10
	defaultChunkDelay = 50 * time.Millisecond
)

// EntityRef identifies one entity pending a mark-viewed write.
type EntityRef struct {
	Category common.Category `json:"category"`
	ID       string          `json:"id"`
}

// BatchMarker flushes mark-viewed writes in fixed-size chunks with a
// short pause between chunks, bounding the burst write-rate when a view
// with hundreds of unread entities opens. Writes inside a chunk run
// concurrently; the chunk as a whole is awaited before pacing.
type BatchMarker struct {
	tracker   *Tracker
	chunkSize int
	delay     time.Duration
}

func NewBatchMarker(tracker *Tracker, chunkSize int, delay time.Duration) *BatchMarker {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if delay <= 0 {
		delay = defaultChunkDelay
	}
	return &BatchMarker{
		tracker:   tracker,
		chunkSize: chunkSize,
		delay:     delay,
	}
}

// MarkBatch marks every referenced entity viewed by userID. Individual
// write failures are absorbed by the tracker; re-marking an already
// viewed entity is harmless. Returns once all chunks are dispatched or
// the context is cancelled between chunks.
func (b *BatchMarker) MarkBatch(ctx context.Context, userID string, refs []EntityRef) {
	for start := 0; start < len(refs); start += b.chunkSize {
		end := start + b.chunkSize
		if end > len(refs) {
			end = len(refs)
		}

		var wg sync.WaitGroup
		for _, ref := range refs[start:end] {
			wg.Add(1)
			go func(ref EntityRef) {
				defer wg.Done()
				// errors already logged by the tracker; the entity will be
				// rediscovered as unread and re-batched
				_ = b.tracker.MarkViewed(ctx, ref.Category, ref.ID, userID)
			}(ref)
		}
		wg.Wait()

		if end < len(refs) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.delay):
			}
		}
	}
}
