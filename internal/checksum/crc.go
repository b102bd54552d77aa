// Package checksum implements the CRC used to key PFS archive filenames.
//
// The algorithm is the MSB-first CRC-32 over polynomial 0x04C11DB7 (the CKSUM polynomial)
// with no input/output reflection, no final XOR and a caller-supplied seed.
package checksum

// Polynomial is the generator polynomial, in MSB-first form.
const Polynomial = 0x04C11DB7

var table = func() [256]uint32 {
	var t [256]uint32
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ Polynomial
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}()

// Update feeds data through the running checksum seed and returns the new value.
func Update(seed int32, data []byte) int32 {
	crc := uint32(seed)
	for _, b := range data {
		crc = (crc << 8) ^ table[byte(crc>>24)^b]
	}
	return int32(crc)
}

// String returns the checksum of s followed by a single NUL byte.
//
// The trailing NUL is part of the on-disk convention: directory records written by
// third-party tools only match when it is included.
func String(s string) int32 {
	crc := Update(0, []byte(s))
	return Update(crc, []byte{0})
}
