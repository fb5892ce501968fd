package domain

import "strings"

// FileKind is the closed set of blob formats the pipeline branches on.
// Everything the sniffer can identify is here; formats the loader handles
// by declared mimetype alone (docx, xlsx, plain text) stay KindUnknown.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindPDF
	KindJPEG
	KindPNG
	KindGIF
	KindWebP
	KindHEIC
)

const (
	MimePDF         = "application/pdf"
	MimeJPEG        = "image/jpeg"
	MimeHEIC        = "image/heic"
	MimeOctetStream = "application/octet-stream"
)

func (k FileKind) Mime() string {
	switch k {
	case KindPDF:
		return MimePDF
	case KindJPEG:
		return MimeJPEG
	case KindPNG:
		return "image/png"
	case KindGIF:
		return "image/gif"
	case KindWebP:
		return "image/webp"
	case KindHEIC:
		return MimeHEIC
	default:
		return MimeOctetStream
	}
}

func (k FileKind) IsImage() bool {
	switch k {
	case KindJPEG, KindPNG, KindGIF, KindWebP, KindHEIC:
		return true
	default:
		return false
	}
}

func KindFromMime(mime string) FileKind {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case MimePDF:
		return KindPDF
	case MimeJPEG, "image/jpg":
		return KindJPEG
	case "image/png":
		return KindPNG
	case "image/gif":
		return KindGIF
	case "image/webp":
		return KindWebP
	case MimeHEIC, "image/heif":
		return KindHEIC
	default:
		return KindUnknown
	}
}

// ResolvedFile is an immutable stage output: declared-or-detected mimetype
// plus the bytes it applies to. Each ingest stage returns a new value
// instead of mutating shared locals.
type ResolvedFile struct {
	Mime string
	Kind FileKind
	Data []byte
}

func ResolveFile(mime string, data []byte) ResolvedFile {
	return ResolvedFile{Mime: mime, Kind: KindFromMime(mime), Data: data}
}

var supportedMimes = map[string]struct{}{
	MimePDF: {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       {},
	"application/vnd.oasis.opendocument.text":                                 {},
	"application/rtf": {},
	"application/json": {},
}

// IsSupportedMime reports whether the pipeline can extract or classify
// content for the given mimetype.
func IsSupportedMime(mime string) bool {
	m := strings.ToLower(strings.TrimSpace(mime))
	if strings.HasPrefix(m, "image/") || strings.HasPrefix(m, "text/") {
		return true
	}
	_, ok := supportedMimes[m]
	return ok
}
