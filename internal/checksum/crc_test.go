package checksum_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ossyrian/pfsparse/internal/checksum"
)

// bitwiseUpdate is a table-free reference used to cross-check the table.
func bitwiseUpdate(seed uint32, data []byte) uint32 {
	crc := seed
	for _, b := range data {
		crc ^= uint32(b) << 24
		for i := 0; i < 8; i++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ checksum.Polynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name string
		seed int32
		data string
		want uint32
	}{
		{name: "empty", data: "", want: 0},
		{name: "single byte", data: "a", want: 0xA864DB20},
		{name: "check string", data: "123456789", want: 0x89A1897F},
		{name: "filename without NUL", data: "test.wld", want: 0x1E652581},
		{name: "nonzero seed", seed: int32(-559038737), data: "xyz", want: 0xE4A1D059}, // 0xDEADBEEF
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checksum.Update(tt.seed, []byte(tt.data))
			assert.Equal(t, tt.want, uint32(got))
			assert.Equal(t, bitwiseUpdate(uint32(tt.seed), []byte(tt.data)), uint32(got))
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"", 0},
		{"a", 0xB3FC9BB6},
		{"test.wld", 0x15BAFA7A},
		{"gfaydark.wld", 0x5942C027},
		{"objects.wld", 0x613159E6},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, uint32(checksum.String(tt.in)))
		})
	}
}

func TestString_IncludesTrailingNUL(t *testing.T) {
	withNUL := checksum.Update(0, []byte("gfaydark.wld\x00"))
	assert.Equal(t, withNUL, checksum.String("gfaydark.wld"))
	assert.NotEqual(t, checksum.Update(0, []byte("gfaydark.wld")), checksum.String("gfaydark.wld"))
}

func TestUpdate_Chains(t *testing.T) {
	whole := checksum.Update(0, []byte("objects.wld"))
	split := checksum.Update(checksum.Update(0, []byte("objects")), []byte(".wld"))
	assert.Equal(t, whole, split)
}
