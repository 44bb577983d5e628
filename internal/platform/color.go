package platform

// channel5to8 expands a 5-bit GBA colour channel (0-31) to 8-bit, replicating
// the top 3 bits into the low bits so 0x1F maps to 0xFF rather than 0xF8.
var channel5to8 [32]byte

func init() {
	for v := 0; v < 32; v++ {
		channel5to8[v] = byte((v << 3) | (v >> 2))
	}
}

// bgr555ToRGBA expands a BGR555 framebuffer into the RGBA byte slice ebiten
// images expect, writing straight into dst (len(dst) must be 4*len(src)).
func bgr555ToRGBA(src []uint16, dst []byte) {
	for i, px := range src {
		r := channel5to8[px&0x1F]
		g := channel5to8[(px>>5)&0x1F]
		b := channel5to8[(px>>10)&0x1F]
		o := i * 4
		dst[o] = r
		dst[o+1] = g
		dst[o+2] = b
		dst[o+3] = 0xFF
	}
}
