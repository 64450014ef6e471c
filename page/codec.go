package page

// Codec is the pluggable page-level transform used for lightweight
// database-key obfuscation (spec.md §6). Decode is applied once per
// physical page read, Encode once per physical page write; both must be
// deterministic and Decode∘Encode must be the identity. The default
// Codec used when none is configured is Identity.
type Codec interface {
	// Encode transforms buf (length == page size) in place before it is
	// written to page number pn.
	Encode(buf []byte, pn Number) error
	// Decode reverses Encode in place after buf has been read from page
	// number pn.
	Decode(buf []byte, pn Number) error
}

// identityCodec is a no-op Codec, used for unencrypted databases.
type identityCodec struct{}

func (identityCodec) Encode([]byte, Number) error { return nil }
func (identityCodec) Decode([]byte, Number) error { return nil }

// Identity is the default, no-op Codec.
var Identity Codec = identityCodec{}

// xorRC4LikeCodec is a placeholder for the lightweight obfuscation
// scheme Access databases use on the header/table-def pages (RC4 keyed
// by a per-database salt). Supplying a real key stream turns this into
// the production codec; absent one it behaves as Identity so opening an
// unencrypted file never requires a codec at all.
type xorRC4LikeCodec struct {
	keyStream func(pn Number, length int) []byte
}

// NewXORCodec builds a Codec that XORs each page against the bytes
// keyStream produces for that page number. Decode and Encode are the
// same operation for a stream cipher, satisfying the idempotence
// contract trivially.
func NewXORCodec(keyStream func(pn Number, length int) []byte) Codec {
	return &xorRC4LikeCodec{keyStream: keyStream}
}

func (c *xorRC4LikeCodec) xor(buf []byte, pn Number) {
	if c.keyStream == nil {
		return
	}
	ks := c.keyStream(pn, len(buf))
	for i := range buf {
		if i < len(ks) {
			buf[i] ^= ks[i]
		}
	}
}

func (c *xorRC4LikeCodec) Encode(buf []byte, pn Number) error { c.xor(buf, pn); return nil }
func (c *xorRC4LikeCodec) Decode(buf []byte, pn Number) error { c.xor(buf, pn); return nil }
