package hal

func rgb565(r, g, b uint8) uint16 {
	rr := uint16(r>>3) & 0x1F
	gg := uint16(g>>2) & 0x3F
	bb := uint16(b>>3) & 0x1F
	return (rr << 11) | (gg << 5) | bb
}

func rgb888From565(p uint16) (r, g, b uint8) {
	rr := (p >> 11) & 0x1F
	gg := (p >> 5) & 0x3F
	bb := p & 0x1F

	r = uint8((rr * 255) / 31)
	g = uint8((gg * 255) / 63)
	b = uint8((bb * 255) / 31)
	return r, g, b
}

func fillRGB565(buf []byte, r, g, b uint8) {
	pixel := rgb565(r, g, b)
	lo, hi := byte(pixel), byte(pixel>>8)
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i] = lo
		buf[i+1] = hi
	}
}

// memFramebuffer is a single RGB565 buffer in RAM. push, if set, copies it
// to a panel on Present.
type memFramebuffer struct {
	w, h int
	buf  []byte
	push func(buf []byte, w, h int) error
}

func newMemFramebuffer(w, h int, push func([]byte, int, int) error) *memFramebuffer {
	return &memFramebuffer{w: w, h: h, buf: make([]byte, w*h*2), push: push}
}

func (f *memFramebuffer) Width() int             { return f.w }
func (f *memFramebuffer) Height() int            { return f.h }
func (f *memFramebuffer) Format() PixelFormat    { return PixelFormatRGB565 }
func (f *memFramebuffer) StrideBytes() int       { return f.w * 2 }
func (f *memFramebuffer) Buffer() []byte         { return f.buf }
func (f *memFramebuffer) ClearRGB(r, g, b uint8) { fillRGB565(f.buf, r, g, b) }

func (f *memFramebuffer) Present() error {
	if f.push == nil {
		return nil
	}
	return f.push(f.buf, f.w, f.h)
}
