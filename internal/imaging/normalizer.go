package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"path/filepath"
	"sort"
	"strings"

	// Registered decoders. The extension allow-list is checked separately,
	// so a mislabelled GIF or WebP payload still decodes.
	_ "image/gif"

	"github.com/timmy/snapcaption/internal/domain"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxDimension bounds the long edge of normalized images.
	DefaultMaxDimension = 512

	// canonicalQuality is the JPEG quality used for the hashed form. Changing
	// it invalidates every content hash.
	canonicalQuality = 90

	defaultStorageQuality = 95

	// maxSourcePixels rejects decompression bombs before full decode. Each
	// decode stage holds a full RGBA copy, 4 bytes per pixel.
	maxSourcePixels = 50_000_000
)

// NormalizedImage is a decoded, opaque, size-bounded image.
type NormalizedImage struct {
	// Pixels has alpha fixed at 255, leaving exactly three colour channels.
	Pixels *image.RGBA
	Width  int
	Height int
	// Data is the canonical JPEG encoding of Pixels.
	Data []byte
	// Ext is the lower-cased extension of the uploaded filename, without dot.
	Ext string
	// SourceFormat is the container detected while decoding (jpeg, png, ...).
	SourceFormat string
}

// Options configures a Normalizer.
type Options struct {
	MaxDimension      int
	AllowedExtensions []string
	StorageQuality    int
	AutoOrient        bool
}

// Normalizer validates, decodes and canonicalizes uploaded images.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	maxDimension   int
	allowed        map[string]struct{}
	allowedList    string
	storageQuality int
	autoOrient     bool
}

// NewNormalizer creates a Normalizer.
// Parameters:
//   - opts: normalization options; zero values fall back to defaults.
// Returns:
//   - *Normalizer: ready-to-use normalizer.
func NewNormalizer(opts Options) *Normalizer {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultMaxDimension
	}
	if len(opts.AllowedExtensions) == 0 {
		opts.AllowedExtensions = []string{"png", "jpg", "jpeg"}
	}
	if opts.StorageQuality <= 0 || opts.StorageQuality > 100 {
		opts.StorageQuality = defaultStorageQuality
	}

	allowed := make(map[string]struct{}, len(opts.AllowedExtensions))
	names := make([]string, 0, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, dup := allowed[ext]; !dup {
			allowed[ext] = struct{}{}
			names = append(names, ext)
		}
	}
	sort.Strings(names)

	return &Normalizer{
		maxDimension:   opts.MaxDimension,
		allowed:        allowed,
		allowedList:    strings.Join(names, ", "),
		storageQuality: opts.StorageQuality,
		autoOrient:     opts.AutoOrient,
	}
}

// MaxDimension returns the configured long-edge bound.
func (n *Normalizer) MaxDimension() int {
	return n.maxDimension
}

// ValidateFilename checks the filename against the extension allow-list.
// Parameters:
//   - filename: client-supplied filename.
// Returns:
//   - string: lower-cased extension without the dot.
//   - error: domain.ValidationError when the name is empty or not allowed.
func (n *Normalizer) ValidateFilename(filename string) (string, error) {
	if filename == "" {
		return "", domain.NewValidationError("Empty filename")
	}
	// Only the base name counts; "dir.png/file" has no extension.
	base := filepath.Base(filename)
	idx := strings.LastIndex(base, ".")
	if idx < 0 {
		return "", domain.NewValidationError("File has no extension")
	}
	ext := strings.ToLower(base[idx+1:])
	if _, ok := n.allowed[ext]; !ok {
		return "", domain.NewValidationError("File type not allowed. Allowed types: %s", n.allowedList)
	}
	return ext, nil
}

// Normalize validates and canonicalizes an uploaded image.
// Parameters:
//   - raw: uploaded bytes.
//   - filename: client-supplied filename, used for the extension check.
// Returns:
//   - *NormalizedImage: opaque RGB image with long edge <= MaxDimension.
//   - error: domain.ValidationError for any validation or decode failure.
func (n *Normalizer) Normalize(raw []byte, filename string) (*NormalizedImage, error) {
	ext, err := n.ValidateFilename(filename)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.NewValidationError("No image data provided")
	}

	src, format, err := decode(raw)
	if err != nil {
		return nil, domain.NewValidationError("Failed to process image: %v", err)
	}

	if n.autoOrient && format == "jpeg" {
		src = applyOrientation(src, readOrientation(raw))
	}

	pixels := resize(flatten(src), n.maxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, pixels, &jpeg.Options{Quality: canonicalQuality}); err != nil {
		return nil, domain.NewValidationError("Failed to process image: %v", err)
	}

	b := pixels.Bounds()
	return &NormalizedImage{
		Pixels:       pixels,
		Width:        b.Dx(),
		Height:       b.Dy(),
		Data:         buf.Bytes(),
		Ext:          ext,
		SourceFormat: format,
	}, nil
}

// Encode renders img for storage in the format implied by ext: PNG for png,
// JPEG at the storage quality for everything else.
// Parameters:
//   - img: normalized image.
//   - ext: target extension without dot.
// Returns:
//   - []byte: encoded image.
//   - string: MIME content type.
//   - error: non-nil if encoding fails.
func (n *Normalizer) Encode(img *NormalizedImage, ext string) ([]byte, string, error) {
	var buf bytes.Buffer
	switch strings.ToLower(ext) {
	case "png":
		if err := png.Encode(&buf, img.Pixels); err != nil {
			return nil, "", fmt.Errorf("failed to encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	default:
		if err := jpeg.Encode(&buf, img.Pixels, &jpeg.Options{Quality: n.storageQuality}); err != nil {
			return nil, "", fmt.Errorf("failed to encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}

// decode turns decoder panics into errors; some corrupt inputs trip them.
func decode(raw []byte) (img image.Image, format string, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, format, err = nil, "", fmt.Errorf("decoder panic: %v", r)
		}
	}()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", err
	}
	if cfg.Width*cfg.Height > maxSourcePixels {
		return nil, "", fmt.Errorf("image dimensions %dx%d exceed the pixel limit", cfg.Width, cfg.Height)
	}
	img, format, err = image.Decode(bytes.NewReader(raw))
	if err == nil {
		b := img.Bounds()
		if b.Dx() <= 0 || b.Dy() <= 0 {
			return nil, "", fmt.Errorf("image has no pixels")
		}
	}
	return img, format, err
}

// flatten converts any colour model to opaque RGBA, compositing
// transparent pixels over white.
func flatten(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

// resize scales img so its long edge is at most maxDim. Smaller images are
// returned unchanged.
func resize(img *image.RGBA, maxDim int) *image.RGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	nw, nh := TargetSize(w, h, maxDim)
	if nw == w && nh == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// TargetSize returns the dimensions after proportional downsampling to fit
// maxDim on the long edge. It never upsamples.
func TargetSize(w, h, maxDim int) (int, int) {
	long := w
	if h > long {
		long = h
	}
	if long <= maxDim {
		return w, h
	}
	scale := float64(maxDim) / float64(long)
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	if w >= h {
		nw = maxDim
	} else {
		nh = maxDim
	}
	return nw, nh
}
