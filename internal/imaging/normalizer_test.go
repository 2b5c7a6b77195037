package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/timmy/snapcaption/internal/domain"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestValidateFilename(t *testing.T) {
	n := NewNormalizer(Options{})

	tests := []struct {
		name     string
		filename string
		wantExt  string
		wantMsg  string
	}{
		{"png", "cat.png", "png", ""},
		{"upper jpg", "CAT.JPG", "jpg", ""},
		{"jpeg", "holiday.photo.jpeg", "jpeg", ""},
		{"empty", "", "", "Empty filename"},
		{"no extension", "notes", "", "File has no extension"},
		{"txt", "notes.txt", "", "File type not allowed. Allowed types: jpeg, jpg, png"},
		{"dot in directory only", "dir.png/notes", "", "File has no extension"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ext, err := n.ValidateFilename(tc.filename)
			if tc.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if ext != tc.wantExt {
					t.Errorf("ext = %q, want %q", ext, tc.wantExt)
				}
				return
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
			if err.Error() != tc.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestNormalizeBoundsAndChannels(t *testing.T) {
	n := NewNormalizer(Options{MaxDimension: 512})

	tests := []struct {
		name         string
		img          image.Image
		filename     string
		wantW, wantH int
	}{
		{"large square", solidImage(2000, 2000, color.RGBA{255, 0, 0, 255}), "red.jpg", 512, 512},
		{"wide", solidImage(1024, 300, color.RGBA{0, 0, 255, 255}), "wide.png", 512, 150},
		{"tall", solidImage(100, 1000, color.RGBA{0, 255, 0, 255}), "tall.jpeg", 51, 512},
		{"small untouched", solidImage(64, 32, color.RGBA{1, 2, 3, 255}), "tiny.png", 64, 32},
		{"grayscale", image.NewGray(image.Rect(0, 0, 600, 600)), "gray.png", 512, 512},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := encodePNG(t, tc.img)
			got, err := n.Normalize(raw, tc.filename)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if got.Width != tc.wantW || got.Height != tc.wantH {
				t.Errorf("size = %dx%d, want %dx%d", got.Width, got.Height, tc.wantW, tc.wantH)
			}
			if max(got.Width, got.Height) > n.MaxDimension() {
				t.Errorf("long edge exceeds max dimension")
			}

			// Canonical bytes decode as a 3-channel JPEG.
			decoded, format, err := image.Decode(bytes.NewReader(got.Data))
			if err != nil {
				t.Fatalf("canonical bytes do not decode: %v", err)
			}
			if format != "jpeg" {
				t.Errorf("canonical format = %q, want jpeg", format)
			}
			if _, ok := decoded.(*image.YCbCr); !ok {
				t.Errorf("canonical image type = %T, want *image.YCbCr", decoded)
			}
			if !got.Pixels.Opaque() {
				t.Errorf("normalized pixels must be opaque")
			}
		})
	}
}

func TestNormalizeIsFixedPoint(t *testing.T) {
	n := NewNormalizer(Options{MaxDimension: 512})

	first, err := n.Normalize(encodeJPEG(t, solidImage(1500, 900, color.RGBA{200, 100, 50, 255})), "a.jpg")
	if err != nil {
		t.Fatalf("first Normalize() error = %v", err)
	}
	second, err := n.Normalize(first.Data, "a.jpg")
	if err != nil {
		t.Fatalf("second Normalize() error = %v", err)
	}
	if first.Width != second.Width || first.Height != second.Height {
		t.Errorf("re-normalizing changed size: %dx%d -> %dx%d", first.Width, first.Height, second.Width, second.Height)
	}
	if !second.Pixels.Opaque() {
		t.Errorf("re-normalized image must stay opaque")
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	n := NewNormalizer(Options{})
	raw := encodePNG(t, solidImage(800, 600, color.RGBA{10, 20, 30, 255}))

	a, err := n.Normalize(raw, "x.png")
	if err != nil {
		t.Fatal(err)
	}
	b, err := n.Normalize(raw, "x.png")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Errorf("identical input produced different canonical bytes")
	}
}

func TestNormalizeFlattensTransparency(t *testing.T) {
	n := NewNormalizer(Options{})
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10)) // fully transparent

	got, err := n.Normalize(encodePNG(t, img), "clear.png")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	c := got.Pixels.RGBAAt(5, 5)
	if c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("transparent pixel flattened to %v, want white", c)
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h RGBA
// pixels with no image data behind it.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestPixelLimitMessage(t *testing.T) {
	_, err := NewNormalizer(Options{}).Normalize(pngHeader(10000, 6000), "bomb.png")
	if err == nil || !strings.Contains(err.Error(), "pixel limit") {
		t.Errorf("expected pixel limit error, got %v", err)
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	n := NewNormalizer(Options{})

	tests := []struct {
		name     string
		raw      []byte
		filename string
	}{
		{"corrupt bytes", []byte("definitely not an image"), "fake.png"},
		{"empty payload", nil, "empty.jpg"},
		{"truncated png", encodePNG(t, solidImage(20, 20, color.Black))[:30], "cut.png"},
		{"text file", []byte("hello"), "readme.txt"},
		{"pixel bomb", pngHeader(10000, 6000), "bomb.png"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := n.Normalize(tc.raw, tc.filename)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestEncodeForStorage(t *testing.T) {
	n := NewNormalizer(Options{StorageQuality: 95})
	img, err := n.Normalize(encodePNG(t, solidImage(40, 30, color.RGBA{9, 9, 9, 255})), "x.png")
	if err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		ext         string
		contentType string
		format      string
	}{
		{"png", "image/png", "png"},
		{"jpg", "image/jpeg", "jpeg"},
		{"JPEG", "image/jpeg", "jpeg"},
	} {
		data, ct, err := n.Encode(img, tc.ext)
		if err != nil {
			t.Fatalf("Encode(%s) error = %v", tc.ext, err)
		}
		if ct != tc.contentType {
			t.Errorf("Encode(%s) content type = %q, want %q", tc.ext, ct, tc.contentType)
		}
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("stored bytes do not decode: %v", err)
		}
		if format != tc.format || cfg.Width != 40 || cfg.Height != 30 {
			t.Errorf("Encode(%s) = %s %dx%d", tc.ext, format, cfg.Width, cfg.Height)
		}
	}
}

func TestTargetSize(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{2000, 2000, 512, 512, 512},
		{4000, 1000, 512, 512, 128},
		{1000, 4000, 512, 128, 512},
		{512, 512, 512, 512, 512},
		{100, 50, 512, 100, 50},
		{10000, 1, 512, 512, 1},
	}
	for _, tc := range tests {
		w, h := TargetSize(tc.w, tc.h, tc.max)
		if w != tc.wantW || h != tc.wantH {
			t.Errorf("TargetSize(%d,%d,%d) = %d,%d want %d,%d", tc.w, tc.h, tc.max, w, h, tc.wantW, tc.wantH)
		}
	}
}

func TestApplyOrientation(t *testing.T) {
	// 3x2 image with a marker in the top-left corner.
	src := solidImage(3, 2, color.RGBA{0, 0, 0, 255})
	src.Set(0, 0, color.RGBA{255, 0, 0, 255})
	red := color.RGBA{255, 0, 0, 255}

	tests := []struct {
		orientation  int
		wantW, wantH int
		markerX      int
		markerY      int
	}{
		{1, 3, 2, 0, 0},
		{2, 3, 2, 2, 0},
		{3, 3, 2, 2, 1},
		{4, 3, 2, 0, 1},
		{6, 2, 3, 1, 0},
		{8, 2, 3, 0, 2},
	}

	for _, tc := range tests {
		out := applyOrientation(src, tc.orientation)
		b := out.Bounds()
		if b.Dx() != tc.wantW || b.Dy() != tc.wantH {
			t.Errorf("orientation %d: size %dx%d, want %dx%d", tc.orientation, b.Dx(), b.Dy(), tc.wantW, tc.wantH)
			continue
		}
		if got := color.RGBAModel.Convert(out.At(tc.markerX, tc.markerY)); got != red {
			t.Errorf("orientation %d: marker not at (%d,%d)", tc.orientation, tc.markerX, tc.markerY)
		}
	}
}
