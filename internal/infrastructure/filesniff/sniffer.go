// Package filesniff identifies a blob's format from its magic bytes. It is
// consulted only when the declared mimetype is an untrustworthy generic
// placeholder; trustworthy declarations skip sniffing entirely.
package filesniff

import (
	"bytes"

	"github.com/velstad/vault-pipeline/internal/core/domain"
)

type Result struct {
	Detected bool
	Kind     domain.FileKind
}

type signature struct {
	kind   domain.FileKind
	magic  []byte
	offset int
}

// Ordered: first match wins.
var signatures = []signature{
	{kind: domain.KindPDF, magic: []byte("%PDF")},
	{kind: domain.KindJPEG, magic: []byte{0xFF, 0xD8, 0xFF}},
	{kind: domain.KindPNG, magic: []byte{0x89, 0x50, 0x4E, 0x47}},
	{kind: domain.KindGIF, magic: []byte("GIF87a")},
	{kind: domain.KindGIF, magic: []byte("GIF89a")},
	{kind: domain.KindWebP, magic: []byte("WEBP"), offset: 8},
}

const minSniffLen = 4

// Detect inspects the prefix of buf against the signature table. Pure, no
// I/O, never fails: buffers shorter than the shortest signature or matching
// nothing come back undetected.
func Detect(buf []byte) Result {
	if len(buf) < minSniffLen {
		return Result{}
	}
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if len(buf) < end {
			continue
		}
		if sig.kind == domain.KindWebP && !bytes.HasPrefix(buf, []byte("RIFF")) {
			continue
		}
		if bytes.Equal(buf[sig.offset:end], sig.magic) {
			return Result{Detected: true, Kind: sig.kind}
		}
	}
	return Result{}
}
