package imaging

import (
	"context"
	"encoding/binary"
	"errors"
	"image"
	"io"
	"log/slog"
	"testing"

	"github.com/velstad/vault-pipeline/internal/core/ports"
)

type storageFake struct {
	uploads []string
}

func (s *storageFake) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (s *storageFake) Upload(_ context.Context, path string, _ []byte, _ ports.UploadOptions) error {
	s.uploads = append(s.uploads, path)
	return nil
}

func newTestNormalizer() (*Normalizer, *storageFake) {
	storage := &storageFake{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewNormalizer(storage, logger), storage
}

func TestNormalizeHEICRejectsEmptySource(t *testing.T) {
	n, storage := newTestNormalizer()

	_, err := n.NormalizeHEIC(context.Background(), "team1/photo.heic", nil)
	if !errors.Is(err, ErrEmptySource) {
		t.Fatalf("expected ErrEmptySource, got %v", err)
	}
	if len(storage.uploads) != 0 {
		t.Fatalf("empty source must not upload, got %v", storage.uploads)
	}
}

func TestNormalizeHEICReportsDecodeFailureDistinctly(t *testing.T) {
	n, storage := newTestNormalizer()

	_, err := n.NormalizeHEIC(context.Background(), "team1/photo.heic", []byte("definitely not heic"))
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("expected ErrDecodeFailed, got %v", err)
	}
	if errors.Is(err, ErrEmptySource) || errors.Is(err, ErrUploadFailed) {
		t.Fatalf("decode failure conflated with another mode: %v", err)
	}
	if len(storage.uploads) != 0 {
		t.Fatalf("decode failure must not upload, got %v", storage.uploads)
	}
}

func TestFitWithinMaxEdgeShrinksOversized(t *testing.T) {
	img := fitWithinMaxEdge(image.NewRGBA(image.Rect(0, 0, 4096, 2048)))

	b := img.Bounds()
	if b.Dx() != maxEdge || b.Dy() != maxEdge/2 {
		t.Fatalf("resized to %dx%d, want %dx%d", b.Dx(), b.Dy(), maxEdge, maxEdge/2)
	}
}

func TestFitWithinMaxEdgeKeepsSmallImages(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 640, 480))

	img := fitWithinMaxEdge(src)
	if img != src {
		t.Fatalf("small image was resized: %v", img.Bounds())
	}
}

// buildExif builds a minimal TIFF blob with a single orientation entry.
func buildExif(t *testing.T, orientation uint16, bigEndian bool) []byte {
	t.Helper()

	var order interface {
		binary.ByteOrder
		binary.AppendByteOrder
	} = binary.LittleEndian
	mark := []byte("II")
	if bigEndian {
		order = binary.BigEndian
		mark = []byte("MM")
	}

	buf := make([]byte, 0, 32)
	buf = append(buf, []byte("Exif\x00\x00")...)
	buf = append(buf, mark...)
	buf = order.AppendUint16(buf, 42)
	buf = order.AppendUint32(buf, 8) // IFD0 right after header
	buf = order.AppendUint16(buf, 1) // one entry
	buf = order.AppendUint16(buf, orientationTag)
	buf = order.AppendUint16(buf, 3) // SHORT
	buf = order.AppendUint32(buf, 1)
	valueField := make([]byte, 4)
	order.PutUint16(valueField, orientation)
	buf = append(buf, valueField...)
	return buf
}

func TestExifOrientationParsesBothByteOrders(t *testing.T) {
	for _, bigEndian := range []bool{false, true} {
		for want := 1; want <= 8; want++ {
			got := exifOrientation(buildExif(t, uint16(want), bigEndian))
			if got != want {
				t.Fatalf("exifOrientation(bigEndian=%v, %d) = %d", bigEndian, want, got)
			}
		}
	}
}

func TestExifOrientationDefaultsOnGarbage(t *testing.T) {
	cases := [][]byte{nil, {}, []byte("not exif at all"), []byte("II")}
	for _, raw := range cases {
		if got := exifOrientation(raw); got != 1 {
			t.Fatalf("exifOrientation(%q) = %d, want 1", raw, got)
		}
	}
}
