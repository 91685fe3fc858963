package st7789

// PackRGB565 converts 8-bit-per-channel RGB pixel data into the 16-bit
// RGB565 wire format the panel expects, big-endian, two bytes per pixel.
// src holds 3 bytes per pixel and its length must be a multiple of 3.
func PackRGB565(src []byte) []byte {
	out := make([]byte, len(src)/3*2)
	j := 0
	for i := 0; i+2 < len(src); i += 3 {
		r, g, b := uint16(src[i]), uint16(src[i+1]), uint16(src[i+2])
		v := ((r & 0xF8) << 8) | ((g & 0xFC) << 3) | (b >> 3)
		out[j] = byte(v >> 8)
		out[j+1] = byte(v)
		j += 2
	}
	return out
}
