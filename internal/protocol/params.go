package protocol

// Speed and brightness levels both range 0-4.
const (
	MaxSpeed      uint8 = 4
	MaxBrightness uint8 = 4
)

// colorfulNibble is the low-nibble code for colorful (rainbow) mode.
// Single-color mode uses 0x0.
const colorfulNibble = 0x07

// EncodeSpeedByte packs a speed level and the colorful flag into one byte:
// high nibble = speed, low nibble = 0x7 for colorful, 0x0 for single color.
// Speeds above MaxSpeed are out of protocol; callers validate before
// encoding.
func EncodeSpeedByte(speed uint8, colorful bool) byte {
	b := speed << 4
	if colorful {
		b |= colorfulNibble
	}
	return b
}

// DecodeSpeedByte is the inverse of EncodeSpeedByte. The device may hand
// back bytes outside the encoder's range; the raw high nibble is returned
// unchanged and any low nibble other than 0x7 decodes as single color.
func DecodeSpeedByte(b byte) (speed uint8, colorful bool) {
	return (b >> 4) & 0x0F, b&0x0F == colorfulNibble
}
