package monitor

import (
	"image/color"

	"arbitros/hal"

	"tinygo.org/x/drivers"
)

// Display adapts a RGB565 hal.Framebuffer to the TinyGo driver interfaces
// used by tinyterm and tinyfont.
type Display struct {
	fb hal.Framebuffer
}

var _ drivers.Displayer = (*Display)(nil)

// NewDisplay returns an adapter over fb. A nil or bufferless framebuffer
// yields a display that draws nothing.
func NewDisplay(fb hal.Framebuffer) *Display {
	return &Display{fb: fb}
}

func (d *Display) buffer() []byte {
	if d.fb == nil || d.fb.Format() != hal.PixelFormatRGB565 {
		return nil
	}
	return d.fb.Buffer()
}

// Drawable reports whether pixels written to d end up anywhere.
func (d *Display) Drawable() bool { return d.buffer() != nil }

func (d *Display) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d *Display) SetPixel(x, y int16, c color.RGBA) {
	buf := d.buffer()
	if buf == nil {
		return
	}
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}
	off := iy*d.fb.StrideBytes() + ix*2
	if off+1 >= len(buf) {
		return
	}
	pixel := rgb565(c)
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d *Display) Display() error {
	if d.fb == nil {
		return nil
	}
	return d.fb.Present()
}

func (d *Display) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	buf := d.buffer()
	if buf == nil {
		return nil
	}
	w, h := d.fb.Width(), d.fb.Height()
	x0 := clamp(int(x), 0, w)
	y0 := clamp(int(y), 0, h)
	x1 := clamp(int(x)+int(width), 0, w)
	y1 := clamp(int(y)+int(height), 0, h)

	pixel := rgb565(c)
	lo, hi := byte(pixel), byte(pixel>>8)
	stride := d.fb.StrideBytes()
	for py := y0; py < y1; py++ {
		row := buf[py*stride:]
		for px := x0; px < x1; px++ {
			row[px*2] = lo
			row[px*2+1] = hi
		}
	}
	return nil
}

// ScrollUp shifts the picture up by n pixel rows and clears the bottom.
func (d *Display) ScrollUp(n int16, bg color.RGBA) error {
	buf := d.buffer()
	if buf == nil || n <= 0 {
		return nil
	}
	w, h := d.fb.Width(), d.fb.Height()
	if int(n) >= h {
		return d.FillRectangle(0, 0, int16(w), int16(h), bg)
	}
	stride := d.fb.StrideBytes()
	copy(buf[:(h-int(n))*stride], buf[int(n)*stride:h*stride])
	return d.FillRectangle(0, int16(h)-n, int16(w), n, bg)
}

func (d *Display) SetScroll(int16) {}

func (d *Display) SetRotation(drivers.Rotation) error { return nil }

func rgb565(c color.RGBA) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
