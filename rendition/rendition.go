// Package rendition identifies image files and derives their sized
// renditions. The original bytes are never touched; web, thumb and cbz
// renditions are computed from them on demand and are safe to rebuild.
package rendition

import (
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"

	// Register decoders for formats the stdlib does not carry.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zcomx/zco-mx/log"
)

const (
	SizeOriginal = "original"
	SizeWeb      = "web"
	SizeThumb    = "thumb"
	SizeCBZ      = "cbz"

	// MaxWebArea bounds the pixel area of the web rendition.
	MaxWebArea = 900_000

	thumbDim       = 170
	thumbShrinkDim = 120
	thumbShrink    = 0.80
)

// Sizes lists every derivable rendition size, original excluded.
var Sizes = []string{SizeWeb, SizeThumb, SizeCBZ}

var ErrNotImage = errors.New("file is not a supported image")

// imageMimes is the whitelist of accepted image MIME types.
var imageMimes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/bmp",
	"image/x-ms-bmp",
	"image/tiff",
	"image/x-portable-pixmap",
	"image/x-portable-graymap",
	"image/x-portable-bitmap",
	"image/x-xbitmap",
	"image/x-rgb",
	"image/x-cmu-raster",
}

// IsImage sniffs the file's magic number and reports whether it is a
// whitelisted image type.
func IsImage(path string) bool {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	for _, m := range imageMimes {
		if mtype.Is(m) {
			return true
		}
	}
	return false
}

// Descriptor holds the identified type and dimensions of an image file.
type Descriptor struct {
	Path   string
	Format string
	Width  int
	Height int
}

// Describe identifies an image file. Returns ErrNotImage for files outside
// the whitelist, even when the stdlib could decode them.
func Describe(path string) (*Descriptor, error) {
	if !IsImage(path) {
		return nil, ErrNotImage
	}

	fd, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open image %s", path)
	}
	defer fd.Close()

	cfg, format, err := image.DecodeConfig(fd)
	if err != nil {
		// Whitelisted but undecodable (netpbm and friends); dimensions unknown.
		return &Descriptor{Path: path}, nil
	}
	return &Descriptor{Path: path, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// Geometry is the outcome of a resize.
type Geometry struct {
	Width  int
	Height int
	Shrink float64
}

// WebSize computes the web rendition dimensions: fit the area budget,
// preserve aspect ratio, never upscale.
func WebSize(w, h int) (int, int) {
	if w <= 0 || h <= 0 || w*h <= MaxWebArea {
		return w, h
	}
	newW := int(math.Sqrt(float64(w) * MaxWebArea / float64(h)))
	newH := int(math.Sqrt(float64(h) * MaxWebArea / float64(w)))
	return newW, newH
}

// ThumbSize fits within the thumb box and applies the shrink heuristic:
// when both fitted dimensions exceed the threshold the thumb is shrunk a
// further 20% and the factor recorded.
func ThumbSize(w, h int) (int, int, float64) {
	fw, fh := fitWithin(w, h, thumbDim, thumbDim)
	if fw > thumbShrinkDim && fh > thumbShrinkDim {
		return int(float64(fw) * thumbShrink), int(float64(fh) * thumbShrink), thumbShrink
	}
	return fw, fh, 1
}

func fitWithin(w, h, boxW, boxH int) (int, int) {
	if w <= boxW && h <= boxH {
		return w, h
	}
	ratio := math.Min(float64(boxW)/float64(w), float64(boxH)/float64(h))
	return int(float64(w) * ratio), int(float64(h) * ratio)
}

// Renditioner derives sized renditions under root/<size>/<name>.
type Renditioner struct {
	root       string
	webFormat  string
	webQuality int
	cbzQuality int
}

func New(root, webFormat string, webQuality, cbzQuality int) *Renditioner {
	return &Renditioner{
		root:       root,
		webFormat:  webFormat,
		webQuality: webQuality,
		cbzQuality: cbzQuality,
	}
}

// FileName returns the filename a rendition of name is written under.
// Re-encoding can change the extension: the web rendition comes out as
// webp when configured so, and formats imaging cannot write back come
// out as jpeg.
func (r *Renditioner) FileName(name, size string) string {
	if size == SizeOriginal {
		return name
	}
	if size == SizeWeb && r.webFormat == "webp" {
		return withExt(name, ".webp")
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return name
	default:
		return withExt(name, ".jpg")
	}
}

// Path returns the on-disk location of a rendition, extension changes
// from re-encoding included.
func (r *Renditioner) Path(name, size string) string {
	return filepath.Join(r.root, size, r.FileName(name, size))
}

// SaveOriginal stores the original bytes under the original rendition dir.
func (r *Renditioner) SaveOriginal(name string, data []byte) (string, error) {
	dst := r.Path(name, SizeOriginal)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", errors.Wrap(err, "unable to create original dir")
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return "", errors.Wrapf(err, "unable to write original %s", name)
	}
	return dst, nil
}

// Resize derives the named size from the stored original. It is
// deterministic and idempotent: rebuilding overwrites with identical bytes.
func (r *Renditioner) Resize(name, size string) (*Geometry, error) {
	src := r.Path(name, SizeOriginal)
	dst := r.Path(name, size)
	return r.ResizeFile(src, dst, size)
}

// ResizeFile derives a rendition between explicit paths. The cbz profile
// shares the web geometry but targets an aggressive quality; release
// packaging uses it to write into a scratch directory. The dst extension
// is normalized per FileName, so name dst through it.
func (r *Renditioner) ResizeFile(src, dst, size string) (*Geometry, error) {
	dst = r.FileName(dst, size)
	img, err := imaging.Open(src)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode image %s", src)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	geo := Geometry{Width: w, Height: h, Shrink: 1}

	switch size {
	case SizeWeb, SizeCBZ:
		geo.Width, geo.Height = WebSize(w, h)
	case SizeThumb:
		geo.Width, geo.Height, geo.Shrink = ThumbSize(w, h)
	case SizeOriginal:
		return nil, errors.New("original is not a derivable size")
	default:
		return nil, errors.Errorf("unknown rendition size: %s", size)
	}

	if geo.Width != w || geo.Height != h {
		img = imaging.Resize(img, geo.Width, geo.Height, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return nil, errors.Wrap(err, "unable to create rendition dir")
	}
	if err := r.encode(img, dst, size); err != nil {
		return nil, err
	}

	log.Debug("Rendition written",
		zap.String("size", size),
		zap.String("path", dst),
		zap.Int("width", geo.Width),
		zap.Int("height", geo.Height))

	return &geo, nil
}

func (r *Renditioner) encode(img image.Image, dst, size string) error {
	quality := r.webQuality
	if size == SizeCBZ {
		quality = r.cbzQuality
	}

	switch strings.ToLower(filepath.Ext(dst)) {
	case ".webp":
		return r.encodeWebp(img, dst, quality)
	case ".jpg", ".jpeg":
		return errors.Wrapf(imaging.Save(img, dst, imaging.JPEGQuality(quality)),
			"unable to encode %s", dst)
	default:
		return errors.Wrapf(imaging.Save(img, dst), "unable to encode %s", dst)
	}
}

func (r *Renditioner) encodeWebp(img image.Image, dst string, quality int) error {
	fd, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", dst)
	}
	defer fd.Close()
	return errors.Wrapf(webp.Encode(fd, img, &webp.Options{Quality: float32(quality)}),
		"unable to encode webp %s", dst)
}

// DeleteAll removes every rendition of a name, the original included.
// Missing files are fine.
func (r *Renditioner) DeleteAll(name string) error {
	sizes := append([]string{SizeOriginal}, Sizes...)
	for _, size := range sizes {
		path := r.Path(name, size)
		matches, err := filepath.Glob(withExt(path, ".*"))
		if err != nil || len(matches) == 0 {
			matches = []string{path}
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
				return errors.Wrapf(err, "unable to remove rendition %s", m)
			}
		}
	}
	return nil
}

func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
