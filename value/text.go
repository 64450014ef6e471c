package value

import "unicode/utf16"

// compressedUnicodeHeader is the 2-byte marker {0xFF, 0xFE} that
// switches a TEXT value between a one-byte-per-char "compressed" run
// and a two-byte-per-char "raw" run, per spec.md §4.4.
var compressedUnicodeHeader = [2]byte{0xFF, 0xFE}

// EncodeText writes a TEXT value as UCS-2 little-endian, or, when
// compressed is true and every code point fits in one byte, the
// single-byte compression scheme with its 2-byte header.
func EncodeText(s string, compressed bool) []byte {
	units := utf16.Encode([]rune(s))
	if !compressed || !allFitOneByte(units) {
		return encodeRaw(units)
	}
	buf := make([]byte, 0, 2+len(units))
	buf = append(buf, compressedUnicodeHeader[0], compressedUnicodeHeader[1])
	for _, u := range units {
		buf = append(buf, byte(u))
	}
	return buf
}

func allFitOneByte(units []uint16) bool {
	for _, u := range units {
		if u > 0xFF {
			return false
		}
	}
	return true
}

func encodeRaw(units []uint16) []byte {
	buf := make([]byte, len(units)*2)
	for i, u := range units {
		buf[2*i] = byte(u)
		buf[2*i+1] = byte(u >> 8)
	}
	return buf
}

// DecodeText reverses EncodeText. A value beginning with the compressed
// header alternates compressed/raw runs each time the header reappears
// mid-string (spec.md §4.4 and Open Question #4: this engine treats
// every occurrence of the 2-byte header as a fresh mode toggle, which
// matches the documented behavior for the common case of a single
// leading header and is the most natural reading when one recurs).
func DecodeText(b []byte) string {
	if len(b) >= 2 && b[0] == compressedUnicodeHeader[0] && b[1] == compressedUnicodeHeader[1] {
		return decodeCompressed(b[2:])
	}
	return decodeRaw(b)
}

func decodeRaw(b []byte) string {
	n := len(b) / 2
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return string(utf16.Decode(units))
}

func decodeCompressed(b []byte) string {
	var units []uint16
	compressed := true
	i := 0
	for i < len(b) {
		if i+1 < len(b) && b[i] == compressedUnicodeHeader[0] && b[i+1] == compressedUnicodeHeader[1] {
			compressed = !compressed
			i += 2
			continue
		}
		if compressed {
			units = append(units, uint16(b[i]))
			i++
		} else {
			if i+1 >= len(b) {
				break
			}
			units = append(units, uint16(b[i])|uint16(b[i+1])<<8)
			i += 2
		}
	}
	return string(utf16.Decode(units))
}
