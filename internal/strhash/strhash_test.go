package strhash_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ossyrian/pfsparse/internal/strhash"
)

func TestDecode_KnownBytes(t *testing.T) {
	// "WT_ZONE\x00" obfuscated by hand with the default key.
	enc := []byte{
		'W' ^ 0x95, 'T' ^ 0x3A, '_' ^ 0xC5, 'Z' ^ 0x2A,
		'O' ^ 0x95, 'N' ^ 0x7A, 'E' ^ 0x95, 0x00 ^ 0x6A,
	}

	strhash.Decode(enc)
	assert.Equal(t, []byte("WT_ZONE\x00"), enc)
}

func TestDecode_KeyRepeatsEveryEightBytes(t *testing.T) {
	b := make([]byte, 20)
	strhash.Decode(b)

	for i := range b {
		assert.Equal(t, strhash.Key[i%8], b[i], "byte %d", i)
	}
}

func TestEncode_IsInverse(t *testing.T) {
	tests := []string{"", "a", "R1_DMSPRITEDEF", "a name long enough to wrap the key twice"}

	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			b := []byte(s)
			strhash.Encode(b)
			if len(s) > 0 {
				assert.NotEqual(t, []byte(s), b)
			}
			strhash.Decode(b)
			assert.Equal(t, s, string(b))
		})
	}
}

func TestDecodeWithKey(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03}
	strhash.DecodeWithKey(b, []byte{0xFF})
	assert.Equal(t, []byte{0xFE, 0xFD, 0xFC}, b)

	strhash.DecodeWithKey(b, nil)
	assert.Equal(t, []byte{0xFE, 0xFD, 0xFC}, b)
}

func TestString(t *testing.T) {
	raw := []byte("SPRITE\x00trailing")
	enc := append([]byte(nil), raw...)
	strhash.Encode(enc)
	before := append([]byte(nil), enc...)

	assert.Equal(t, "SPRITE", strhash.String(enc))
	assert.Equal(t, before, enc, "String must not modify its input")
}
