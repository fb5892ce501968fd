package imaging

import (
	"bytes"
	"encoding/binary"
)

const orientationTag = 0x0112

// exifOrientation digs the orientation value (1..8) out of a raw EXIF blob.
// Returns 1 (no transform) when the blob is missing, truncated or carries
// no orientation entry. The blob may or may not start with the "Exif\0\0"
// preamble, so the TIFF header is located by its byte-order mark.
func exifOrientation(raw []byte) int {
	tiff := locateTIFF(raw)
	if tiff == nil || len(tiff) < 8 {
		return 1
	}

	var order binary.ByteOrder
	switch {
	case bytes.HasPrefix(tiff, []byte("II")):
		order = binary.LittleEndian
	case bytes.HasPrefix(tiff, []byte("MM")):
		order = binary.BigEndian
	default:
		return 1
	}
	if order.Uint16(tiff[2:4]) != 42 {
		return 1
	}

	ifdOffset := order.Uint32(tiff[4:8])
	if int(ifdOffset)+2 > len(tiff) {
		return 1
	}
	count := int(order.Uint16(tiff[ifdOffset : ifdOffset+2]))

	entries := tiff[ifdOffset+2:]
	for i := 0; i < count; i++ {
		start := i * 12
		if start+12 > len(entries) {
			return 1
		}
		entry := entries[start : start+12]
		if order.Uint16(entry[0:2]) != orientationTag {
			continue
		}
		orientation := int(order.Uint16(entry[8:10]))
		if orientation >= 1 && orientation <= 8 {
			return orientation
		}
		return 1
	}
	return 1
}

func locateTIFF(raw []byte) []byte {
	limit := len(raw)
	if limit > 32 {
		limit = 32
	}
	for i := 0; i+8 <= limit; i++ {
		if bytes.HasPrefix(raw[i:], []byte("II")) || bytes.HasPrefix(raw[i:], []byte("MM")) {
			candidate := raw[i:]
			var order binary.ByteOrder = binary.LittleEndian
			if candidate[0] == 'M' {
				order = binary.BigEndian
			}
			if len(candidate) >= 4 && order.Uint16(candidate[2:4]) == 42 {
				return candidate
			}
		}
	}
	return nil
}
