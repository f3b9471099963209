package datastream

// codeTable maps six-bit values to the graphic bytes used by 12-bit
// buffer addresses.
var codeTable = [64]byte{
	0x40, 0xc1, 0xc2, 0xc3, 0xc4, 0xc5, 0xc6, 0xc7,
	0xc8, 0xc9, 0x4a, 0x4b, 0x4c, 0x4d, 0x4e, 0x4f,
	0x50, 0xd1, 0xd2, 0xd3, 0xd4, 0xd5, 0xd6, 0xd7,
	0xd8, 0xd9, 0x5a, 0x5b, 0x5c, 0x5d, 0x5e, 0x5f,
	0x60, 0x61, 0xe2, 0xe3, 0xe4, 0xe5, 0xe6, 0xe7,
	0xe8, 0xe9, 0x6a, 0x6b, 0x6c, 0x6d, 0x6e, 0x6f,
	0xf0, 0xf1, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7,
	0xf8, 0xf9, 0x7a, 0x7b, 0x7c, 0x7d, 0x7e, 0x7f,
}

// DecodeAddress decodes a two-byte buffer address. When the top two bits of
// the first byte are zero the address is 14-bit binary; otherwise each byte
// carries six bits.
func DecodeAddress(c1, c2 byte) int {
	if c1&0xc0 == 0 {
		return int(c1&0x3f)<<8 | int(c2)
	}
	return int(c1&0x3f)<<6 | int(c2&0x3f)
}

// EncodeAddress12 encodes addresses below 4096 in the 12-bit form.
func EncodeAddress12(a int) (byte, byte) {
	return codeTable[(a>>6)&0x3f], codeTable[a&0x3f]
}

// EncodeAddress14 encodes addresses below 16384 in the 14-bit form.
func EncodeAddress14(a int) (byte, byte) {
	return byte(a>>8) & 0x3f, byte(a)
}
