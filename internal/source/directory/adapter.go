package directory

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/timmy/snapcaption/internal/source"
)

// Adapter implements source.Source for a local directory tree. Files whose
// extension is not in the allow-list are skipped.
type Adapter struct {
	root      string
	allowed   map[string]struct{}
	recursive bool

	once    sync.Once
	items   []source.ImageItem
	loadErr error
}

// NewAdapter creates a new directory adapter.
// Parameters:
//   - root: directory to scan.
//   - extensions: allowed extensions without dot, case-insensitive.
//   - recursive: whether to descend into subdirectories.
// Returns:
//   - *Adapter: adapter that scans root on first fetch.
func NewAdapter(root string, extensions []string, recursive bool) *Adapter {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &Adapter{
		root:      filepath.Clean(root),
		allowed:   allowed,
		recursive: recursive,
	}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return "dir:" + a.root
}

// GetDisplayName returns a human-readable name for this source.
func (a *Adapter) GetDisplayName() string {
	return fmt.Sprintf("Directory (%s)", a.root)
}

// FetchBatch returns items in lexical path order. The cursor is the index
// of the next item.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.ImageItem, string, error) {
	a.once.Do(func() {
		a.loadErr = a.loadItems(ctx)
	})
	if a.loadErr != nil {
		return nil, "", fmt.Errorf("failed to scan %s: %w", a.root, a.loadErr)
	}

	startIndex := 0
	if cursor != "" {
		var err error
		startIndex, err = strconv.Atoi(cursor)
		if err != nil || startIndex < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
	}
	if startIndex >= len(a.items) {
		return []source.ImageItem{}, "", nil
	}
	if limit <= 0 {
		limit = len(a.items)
	}

	endIndex := startIndex + limit
	if endIndex > len(a.items) {
		endIndex = len(a.items)
	}

	nextCursor := ""
	if endIndex < len(a.items) {
		nextCursor = strconv.Itoa(endIndex)
	}
	return a.items[startIndex:endIndex], nextCursor, nil
}

// Count returns the number of eligible images.
func (a *Adapter) Count(ctx context.Context) (int, error) {
	if _, _, err := a.FetchBatch(ctx, "", 1); err != nil {
		return 0, err
	}
	return len(a.items), nil
}

func (a *Adapter) loadItems(ctx context.Context) error {
	info, err := os.Stat(a.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", a.root)
	}

	var items []source.ImageItem
	err = filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != a.root && (!a.recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !d.Type().IsRegular() {
			return nil
		}

		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(d.Name()), "."))
		if _, ok := a.allowed[ext]; !ok {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(a.root, path)
		items = append(items, source.ImageItem{
			SourceID:  filepath.ToSlash(rel),
			Filename:  d.Name(),
			LocalPath: path,
			Format:    ext,
			Size:      fi.Size(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].SourceID < items[j].SourceID
	})
	a.items = items
	return nil
}
