package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/snapcaption/internal/cache"
	"github.com/timmy/snapcaption/internal/captioner"
	"github.com/timmy/snapcaption/internal/domain"
	"github.com/timmy/snapcaption/internal/imaging"
	"github.com/timmy/snapcaption/internal/logger"
	"github.com/timmy/snapcaption/internal/storage"
	"golang.org/x/sync/singleflight"
)

// ImageNormalizer turns uploads into canonical images and storage encodings.
type ImageNormalizer interface {
	Normalize(raw []byte, filename string) (*imaging.NormalizedImage, error)
	Encode(img *imaging.NormalizedImage, ext string) ([]byte, string, error)
}

// CaptionGenerator produces captions. Generate never fails.
type CaptionGenerator interface {
	Generate(ctx context.Context, img *imaging.NormalizedImage) captioner.Result
	ActiveProvider() string
}

// CaptionStore persists caption records.
type CaptionStore interface {
	Create(ctx context.Context, record *domain.CaptionRecord) error
	GetByID(ctx context.Context, id string) (*domain.CaptionRecord, error)
}

// CaptionResult is the outcome of one caption request.
type CaptionResult struct {
	ImageID  string
	Caption  string
	Model    string
	CacheHit bool
}

// CaptionService runs the caption pipeline: normalize, cache lookup,
// inference on a miss, then persistence of the image and record.
type CaptionService struct {
	normalizer ImageNormalizer
	cache      *cache.ContentCache
	captioner  CaptionGenerator
	storage    storage.ObjectStorage
	captions   CaptionStore
	logger     *logger.Logger

	// inflight collapses concurrent misses for the same content hash into
	// one inference call.
	inflight singleflight.Group
}

// NewCaptionService creates a CaptionService.
// Parameters:
//   - normalizer: image validation and canonicalization.
//   - contentCache: caption cache keyed by content hash.
//   - gen: caption generator with provider fallback.
//   - objectStorage: blob store for uploaded images.
//   - captions: caption record store.
//   - log: logger used when no request logger is in context.
// Returns:
//   - *CaptionService: ready-to-use pipeline.
func NewCaptionService(
	normalizer ImageNormalizer,
	contentCache *cache.ContentCache,
	gen CaptionGenerator,
	objectStorage storage.ObjectStorage,
	captions CaptionStore,
	log *logger.Logger,
) *CaptionService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &CaptionService{
		normalizer: normalizer,
		cache:      contentCache,
		captioner:  gen,
		storage:    objectStorage,
		captions:   captions,
		logger:     log,
	}
}

// log returns a logger from context if available, otherwise the service logger
func (s *CaptionService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != logger.GetDefault() {
		return l
	}
	return s.logger
}

// HandleCaptionRequest runs the full caption pipeline for one upload.
// Parameters:
//   - ctx: request context.
//   - raw: uploaded file bytes.
//   - filename: client-supplied filename.
// Returns:
//   - *CaptionResult: image ID, caption and model used.
//   - error: wraps domain.ErrInvalidInput for client mistakes and
//     domain.ErrInternal for everything else.
func (s *CaptionService) HandleCaptionRequest(ctx context.Context, raw []byte, filename string) (result *CaptionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log(ctx).WithField("panic", r).Error("Recovered panic in caption pipeline")
			result = nil
			err = domain.Internal("caption pipeline", fmt.Errorf("panic: %v", r))
		}
	}()

	start := time.Now()

	img, err := s.normalizer.Normalize(raw, filename)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, domain.Internal("normalize image", err)
	}

	hash := cache.ContentHash(img.Data)
	ctx = logger.WithField(ctx, logger.FieldContentHash, hash[:12])

	caption, model, hit := s.caption(ctx, hash, img)

	imageID := uuid.New().String()
	key := fmt.Sprintf("%s.%s", imageID, img.Ext)

	encoded, contentType, err := s.normalizer.Encode(img, img.Ext)
	if err != nil {
		return nil, domain.Internal("encode image", err)
	}
	if err := s.storage.Upload(ctx, key, bytes.NewReader(encoded), int64(len(encoded)), contentType); err != nil {
		return nil, domain.Internal("store image", err)
	}

	record := &domain.CaptionRecord{
		ID:          imageID,
		ImagePath:   s.storage.GetURL(key),
		StorageKey:  key,
		ContentHash: hash,
		Caption:     caption,
		ModelUsed:   model,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.captions.Create(ctx, record); err != nil {
		// Rollback: remove the uploaded image so no orphan blob remains
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.log(ctx).WithField("storage_key", key).WithError(delErr).Error("Failed to rollback storage upload")
		}
		return nil, domain.Internal("save caption record", err)
	}

	logger.With(logger.Fields{
		logger.FieldImageID:  imageID,
		logger.FieldProvider: model,
		"cache_hit":          hit,
	}).WithDuration(time.Since(start).Milliseconds()).Info(ctx, "Caption request completed")

	return &CaptionResult{
		ImageID:  imageID,
		Caption:  caption,
		Model:    model,
		CacheHit: hit,
	}, nil
}

// caption resolves the caption for hash from the cache or the generator.
// The fallback caption is never cached so a later request can retry.
func (s *CaptionService) caption(ctx context.Context, hash string, img *imaging.NormalizedImage) (string, string, bool) {
	if cached, ok := s.cache.Lookup(hash); ok {
		s.log(ctx).Debug("Cache hit")
		return cached, s.captioner.ActiveProvider(), true
	}

	// The shared call outlives any single caller; the captioner bounds it.
	genCtx := context.WithoutCancel(ctx)
	v, _, _ := s.inflight.Do(hash, func() (interface{}, error) {
		res := s.captioner.Generate(genCtx, img)
		if res.Caption != captioner.FallbackCaption {
			s.cache.Store(hash, res.Caption)
		}
		return res, nil
	})
	res := v.(captioner.Result)
	return res.Caption, res.Provider, false
}

// GetRecord returns the stored caption record for imageID.
func (s *CaptionService) GetRecord(ctx context.Context, imageID string) (*domain.CaptionRecord, error) {
	rec, err := s.captions.GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.Internal("load caption record", err)
	}
	return rec, nil
}

// OpenImage opens the stored image for imageID.
// Parameters:
//   - ctx: request context.
//   - imageID: caption record ID.
// Returns:
//   - *domain.CaptionRecord: record describing the image.
//   - *ImageReader: image bytes and content type; caller closes.
//   - error: wraps domain.ErrNotFound when the record or blob is missing.
func (s *CaptionService) OpenImage(ctx context.Context, imageID string) (*domain.CaptionRecord, *ImageReader, error) {
	rec, err := s.GetRecord(ctx, imageID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.storage.Download(ctx, rec.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, fmt.Errorf("image %s: %w", imageID, domain.ErrNotFound)
		}
		return nil, nil, domain.Internal("download image", err)
	}
	return rec, &ImageReader{ReadCloser: rc, ContentType: contentTypeForKey(rec.StorageKey)}, nil
}

// ImageReader streams a stored image.
type ImageReader struct {
	io.ReadCloser
	ContentType string
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(key), ".")) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
