package value

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// GUID is a 16-byte value in the canonical mixed-endian layout spec.md
// §4.4 specifies: {u32 LE, u16 LE, u16 LE, 8 bytes BE}.
type GUID [16]byte

// EncodeGUID serializes g to its 16-byte on-disk form (GUID already
// stores bytes in that layout, so this is a copy).
func EncodeGUID(g GUID) []byte {
	out := make([]byte, 16)
	copy(out, g[:])
	return out
}

// DecodeGUID reads a 16-byte on-disk GUID.
func DecodeGUID(b []byte) GUID {
	var g GUID
	copy(g[:], b)
	return g
}

// ParseGUID parses a string like "{6F9619FF-8B86-D011-B42D-00C04FC964FF}"
// or the same without braces into the mixed-endian on-disk layout.
func ParseGUID(s string) (GUID, error) {
	s = strings.Trim(s, "{}")
	parts := strings.Split(s, "-")
	if len(parts) != 5 {
		return GUID{}, fmt.Errorf("value: malformed GUID string %q", s)
	}
	var raw [16]byte
	d1, err := hex.DecodeString(parts[0])
	if err != nil || len(d1) != 4 {
		return GUID{}, fmt.Errorf("value: malformed GUID string %q", s)
	}
	d2, err := hex.DecodeString(parts[1])
	if err != nil || len(d2) != 2 {
		return GUID{}, fmt.Errorf("value: malformed GUID string %q", s)
	}
	d3, err := hex.DecodeString(parts[2])
	if err != nil || len(d3) != 2 {
		return GUID{}, fmt.Errorf("value: malformed GUID string %q", s)
	}
	d4, err := hex.DecodeString(parts[3] + parts[4])
	if err != nil || len(d4) != 8 {
		return GUID{}, fmt.Errorf("value: malformed GUID string %q", s)
	}
	binary.LittleEndian.PutUint32(raw[0:4], binary.BigEndian.Uint32(d1))
	binary.LittleEndian.PutUint16(raw[4:6], binary.BigEndian.Uint16(d2))
	binary.LittleEndian.PutUint16(raw[6:8], binary.BigEndian.Uint16(d3))
	copy(raw[8:16], d4)
	return GUID(raw), nil
}

// String renders g in the canonical braced form.
func (g GUID) String() string {
	d1 := binary.LittleEndian.Uint32(g[0:4])
	d2 := binary.LittleEndian.Uint16(g[4:6])
	d3 := binary.LittleEndian.Uint16(g[6:8])
	return fmt.Sprintf("{%08X-%04X-%04X-%02X%02X-%02X%02X%02X%02X%02X%02X}",
		d1, d2, d3, g[8], g[9], g[10], g[11], g[12], g[13], g[14], g[15])
}
