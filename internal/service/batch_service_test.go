package service

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/timmy/snapcaption/internal/source"
	"github.com/timmy/snapcaption/internal/source/directory"
)

func TestBatchCaptionsDirectory(t *testing.T) {
	f := newPipeline(t)
	dir := t.TempDir()

	red := pngBytes(t, 10, 10, color.RGBA{255, 0, 0, 255})
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), red, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "d.png"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}

	batch := NewBatchService(f.svc, nil, &BatchConfig{Workers: 2, BatchSize: 2})

	var mu sync.Mutex
	seen := map[string]error{}
	stats, err := batch.CaptionFromSource(context.Background(),
		directory.NewAdapter(dir, []string{"png", "jpg", "jpeg"}, false), 0,
		&BatchOptions{OnResult: func(item source.ImageItem, res *CaptionResult, err error) {
			mu.Lock()
			seen[item.Filename] = err
			mu.Unlock()
		}})
	if err != nil {
		t.Fatalf("CaptionFromSource() error = %v", err)
	}

	if stats.TotalItems != 4 || stats.ProcessedItems != 4 || stats.FailedItems != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.CachedItems < 1 {
		t.Errorf("identical images produced no cache hits: %+v", stats)
	}
	if len(seen) != 4 || seen["d.png"] == nil || seen["a.png"] != nil {
		t.Errorf("results = %v", seen)
	}
}

func TestBatchRespectsLimit(t *testing.T) {
	f := newPipeline(t)
	dir := t.TempDir()
	img := pngBytes(t, 4, 4, color.White)
	for _, name := range []string{"1.png", "2.png", "3.png", "4.png", "5.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), img, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	batch := NewBatchService(f.svc, nil, &BatchConfig{Workers: 3, BatchSize: 2})
	stats, err := batch.CaptionFromSource(context.Background(), directory.NewAdapter(dir, []string{"png"}, false), 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalItems != 3 || stats.ProcessedItems != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

type brokenSource struct{}

func (brokenSource) GetSourceID() string    { return "broken" }
func (brokenSource) GetDisplayName() string { return "Broken" }
func (brokenSource) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.ImageItem, string, error) {
	return nil, "", errors.New("unreadable")
}

func TestBatchSourceError(t *testing.T) {
	f := newPipeline(t)
	batch := NewBatchService(f.svc, nil, &BatchConfig{Workers: 1})
	if _, err := batch.CaptionFromSource(context.Background(), brokenSource{}, 0, nil); err == nil {
		t.Error("expected error from unreadable source")
	}
}
