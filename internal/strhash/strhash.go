// Package strhash decodes the XOR-obfuscated strings embedded in WLD data.
//
// The obfuscation XORs byte i with key[i%len(key)]. Applying it twice restores
// the input, so Encode and Decode are the same operation.
package strhash

import "bytes"

// Key is the repeating XOR key used by WLD string pools and inline names.
var Key = [8]byte{0x95, 0x3A, 0xC5, 0x2A, 0x95, 0x7A, 0x95, 0x6A}

// DecodeWithKey XORs b in place with the repeating key.
// An empty key leaves b unchanged.
func DecodeWithKey(b []byte, key []byte) {
	if len(key) == 0 {
		return
	}
	for i := range b {
		b[i] ^= key[i%len(key)]
	}
}

// Decode XORs b in place with Key.
func Decode(b []byte) {
	DecodeWithKey(b, Key[:])
}

// Encode is Decode; the transform is its own inverse.
func Encode(b []byte) {
	Decode(b)
}

// String decodes a copy of b and returns it up to the first NUL.
// The input is left untouched.
func String(b []byte) string {
	buf := make([]byte, len(b))
	copy(buf, b)
	Decode(buf)
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}
