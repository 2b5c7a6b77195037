package service

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/timmy/snapcaption/internal/logger"
	"github.com/timmy/snapcaption/internal/source"
	"golang.org/x/sync/errgroup"
)

// CaptionPipeline is the single-image caption flow the batch runner drives.
type CaptionPipeline interface {
	HandleCaptionRequest(ctx context.Context, raw []byte, filename string) (*CaptionResult, error)
}

// BatchService captions every image of a source through the regular
// pipeline with a bounded number of concurrent workers.
type BatchService struct {
	pipeline  CaptionPipeline
	logger    *logger.Logger
	workers   int
	batchSize int
}

// BatchConfig holds configuration for the batch service
type BatchConfig struct {
	Workers   int
	BatchSize int
}

// BatchStats holds statistics for a batch run
type BatchStats struct {
	TotalItems     int64     `json:"total_items"`
	ProcessedItems int64     `json:"processed_items"`
	CachedItems    int64     `json:"cached_items"`
	FailedItems    int64     `json:"failed_items"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
}

// BatchOptions holds per-run options.
type BatchOptions struct {
	// OnResult is called once per item from worker goroutines. res is nil
	// when err is non-nil.
	OnResult func(item source.ImageItem, res *CaptionResult, err error)
}

// NewBatchService creates a new batch service
func NewBatchService(pipeline CaptionPipeline, log *logger.Logger, cfg *BatchConfig) *BatchService {
	workers, batchSize := cfg.Workers, cfg.BatchSize
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &BatchService{
		pipeline:  pipeline,
		logger:    log,
		workers:   workers,
		batchSize: batchSize,
	}
}

// CaptionFromSource captions up to limit items from src.
// Parameters:
//   - ctx: context; cancellation stops fetching and skips queued items.
//   - src: image source.
//   - limit: maximum number of items; <= 0 means no limit.
//   - opts: optional per-run options.
// Returns:
//   - *BatchStats: counters for the run.
//   - error: non-nil only if the source cannot be read at all.
func (s *BatchService) CaptionFromSource(ctx context.Context, src source.Source, limit int, opts *BatchOptions) (*BatchStats, error) {
	if opts == nil {
		opts = &BatchOptions{}
	}

	stats := &BatchStats{StartTime: time.Now()}
	ctx = logger.SetComponent(logger.WithField(ctx, logger.FieldSource, src.GetSourceID()), "batch")

	s.logger.WithFields(logger.Fields{
		logger.FieldSource: src.GetSourceID(),
		"limit":            limit,
		"workers":          s.workers,
	}).Info("Starting batch captioning")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	var fetchErr error
	cursor := ""
	fetched := 0
	for gctx.Err() == nil {
		batchLimit := s.batchSize
		if limit > 0 {
			remaining := limit - fetched
			if remaining <= 0 {
				break
			}
			if batchLimit > remaining {
				batchLimit = remaining
			}
		}

		items, nextCursor, err := src.FetchBatch(gctx, cursor, batchLimit)
		if err != nil {
			fetchErr = fmt.Errorf("failed to fetch batch: %w", err)
			break
		}
		if len(items) == 0 {
			break
		}

		atomic.AddInt64(&stats.TotalItems, int64(len(items)))
		fetched += len(items)

		for _, item := range items {
			item := item
			// Go blocks once s.workers items are in flight
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				res, err := s.processItem(gctx, item)
				atomic.AddInt64(&stats.ProcessedItems, 1)
				switch {
				case err != nil:
					atomic.AddInt64(&stats.FailedItems, 1)
					s.logger.WithFields(logger.Fields{
						logger.FieldSource: item.SourceID,
					}).WithError(err).Error("Failed to caption item")
				case res.CacheHit:
					atomic.AddInt64(&stats.CachedItems, 1)
				}
				if opts.OnResult != nil {
					opts.OnResult(item, res, err)
				}
				// Item failures never cancel the rest of the batch
				return nil
			})
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	_ = g.Wait()
	stats.EndTime = time.Now()

	s.logger.WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"processed": stats.ProcessedItems,
		"cached":    stats.CachedItems,
		"failed":    stats.FailedItems,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Batch captioning completed")

	if fetchErr != nil && stats.TotalItems == 0 {
		return stats, fetchErr
	}
	if fetchErr != nil {
		s.logger.WithError(fetchErr).Warn("Batch stopped early")
	}
	return stats, nil
}

func (s *BatchService) processItem(ctx context.Context, item source.ImageItem) (*CaptionResult, error) {
	data, err := os.ReadFile(item.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return s.pipeline.HandleCaptionRequest(ctx, data, item.Filename)
}
