// Package imaging converts proprietary image formats into the vault's
// canonical JPEG form. Corrupted uploads are common in production, so every
// failure mode carries its own diagnosable error instead of a generic one.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"

	"github.com/velstad/vault-pipeline/internal/core/domain"
	"github.com/velstad/vault-pipeline/internal/core/ports"
)

// MaxHEICBytes bounds the HEIC blobs the normalizer will decode. A 15MB
// HEIC is roughly 24MP, which decodes to ~100MB of pixels.
const MaxHEICBytes = 15 << 20

// maxEdge bounds the longer edge of the converted image.
const maxEdge = 2048

var (
	ErrEmptySource   = errors.New("heic: empty source buffer")
	ErrDecodeFailed  = errors.New("heic: decode failed")
	ErrEmptyDecoded  = errors.New("heic: decoded image is empty")
	ErrEncodeFailed  = errors.New("heic: jpeg encode failed")
	ErrUploadFailed  = errors.New("heic: converted upload failed")
)

// Normalizer expects a storage whose transfers are already deadline-bounded;
// it adds no timeouts of its own.
type Normalizer struct {
	storage ports.BlobStorage
	logger  *slog.Logger
}

func NewNormalizer(storage ports.BlobStorage, logger *slog.Logger) *Normalizer {
	return &Normalizer{storage: storage, logger: logger}
}

// NormalizeHEIC decodes a HEIC buffer, applies the embedded orientation,
// bounds the longer edge, re-encodes as max-quality JPEG and persists the
// result back to the same path, overwriting the original. Re-running on an
// already-converted blob fails at decode, which callers treat as
// degradation, not data loss: the original bytes stay untouched on any
// pre-upload failure.
func (n *Normalizer) NormalizeHEIC(ctx context.Context, path string, src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, ErrEmptySource
	}

	img, err := goheif.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecodeFailed, path, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDecoded, path)
	}

	img = n.orient(path, src, img)
	img = fitWithinMaxEdge(img)
	final := img.Bounds()

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(100)); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEncodeFailed, path, err)
	}

	converted := out.Bytes()
	if err := n.storage.Upload(ctx, path, converted, ports.UploadOptions{
		ContentType: domain.MimeJPEG,
		Upsert:      true,
	}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUploadFailed, path, err)
	}

	n.logger.Info("converted heic to jpeg",
		"path", path,
		"source_bytes", len(src),
		"converted_bytes", len(converted),
		"width", final.Dx(),
		"height", final.Dy(),
	)
	return converted, nil
}

// fitWithinMaxEdge shrinks img so that neither edge exceeds maxEdge,
// preserving aspect ratio. Smaller images pass through untouched.
func fitWithinMaxEdge(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() > maxEdge || b.Dy() > maxEdge {
		return imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	}
	return img
}

func (n *Normalizer) orient(path string, src []byte, img image.Image) image.Image {
	exif, err := goheif.ExtractExif(bytes.NewReader(src))
	if err != nil || len(exif) == 0 {
		return img
	}
	switch exifOrientation(exif) {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
