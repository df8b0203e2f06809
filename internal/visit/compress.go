package visit

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

// DefaultTargetBytes is the size a compressed photo should fit in.
const DefaultTargetBytes = 1 << 20

// MaxPhotoPixels caps the decoded size of a photo. Headers are checked
// before any pixel data is allocated.
const MaxPhotoPixels = 50_000_000

// errTooManyPixels is returned for images whose header declares more than
// MaxPhotoPixels.
var errTooManyPixels = fmt.Errorf("image exceeds %d pixels", MaxPhotoPixels)

// checkDimensions reads only the image header. Input no registered decoder
// recognizes is not an error here; Compress passes it through unchanged.
func checkDimensions(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("image has invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPhotoPixels {
		return fmt.Errorf("%w (%dx%d)", errTooManyPixels, cfg.Width, cfg.Height)
	}
	return nil
}

// Pass is one compression attempt.
type Pass struct {
	MaxDimension int
	Quality      int
}

// DefaultPasses are tried in order until one fits the target.
var DefaultPasses = []Pass{
	{MaxDimension: 1920, Quality: 80},
	{MaxDimension: 1280, Quality: 60},
	{MaxDimension: 800, Quality: 40},
}

// Compressor re-encodes photos as JPEG, trading resolution and quality
// for size until the output fits TargetBytes. The last pass is accepted
// whatever its size.
type Compressor struct {
	Passes      []Pass
	TargetBytes int
}

// NewCompressor returns a Compressor with the default passes. Empty or
// non-positive arguments select the defaults.
func NewCompressor(passes []Pass, targetBytes int) *Compressor {
	if len(passes) == 0 {
		passes = DefaultPasses
	}
	if targetBytes <= 0 {
		targetBytes = DefaultTargetBytes
	}
	return &Compressor{Passes: passes, TargetBytes: targetBytes}
}

// Compressed is the outcome for one photo.
type Compressed struct {
	Data        []byte
	ContentType string
	// Attempts is the number of passes run; 0 means the input could not be
	// decoded and was passed through unchanged.
	Attempts int
}

// DataURL renders the photo as a data: URL.
func (c Compressed) DataURL() string {
	return "data:" + c.ContentType + ";base64," + base64.StdEncoding.EncodeToString(c.Data)
}

// Compress runs the passes over data.
func (c *Compressor) Compress(data []byte) (Compressed, error) {
	if err := checkDimensions(data); err != nil {
		return Compressed{}, err
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Compressed{Data: data, ContentType: http.DetectContentType(data)}, nil
	}

	var out []byte
	for i, p := range c.Passes {
		out, err = encodePass(src, p)
		if err != nil {
			return Compressed{}, fmt.Errorf("compress pass %d: %w", i+1, err)
		}
		if len(out) <= c.TargetBytes || i == len(c.Passes)-1 {
			compressionPasses.Observe(float64(i + 1))
			return Compressed{Data: out, ContentType: "image/jpeg", Attempts: i + 1}, nil
		}
	}
	// unreachable with at least one pass
	return Compressed{Data: out, ContentType: "image/jpeg", Attempts: len(c.Passes)}, nil
}

func encodePass(src image.Image, p Pass) ([]byte, error) {
	b := src.Bounds()
	w, h := fit(b.Dx(), b.Dy(), p.MaxDimension)

	// JPEG has no alpha: flatten onto white.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fit scales w×h down so the longer side is at most limit, keeping the
// aspect ratio. Smaller images are left alone.
func fit(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
