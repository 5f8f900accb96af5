package monitor

import (
	"image/color"
	"testing"

	"arbitros/hal"
	"arbitros/kernel"
)

type memFB struct {
	w, h     int
	buf      []byte
	presents int
}

func newMemFB(w, h int) *memFB { return &memFB{w: w, h: h, buf: make([]byte, w*h*2)} }

func (f *memFB) Width() int              { return f.w }
func (f *memFB) Height() int             { return f.h }
func (f *memFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *memFB) StrideBytes() int        { return f.w * 2 }
func (f *memFB) Buffer() []byte          { return f.buf }
func (f *memFB) ClearRGB(r, g, b uint8)  {}
func (f *memFB) Present() error          { f.presents++; return nil }

func (f *memFB) Framebuffer() hal.Framebuffer { return f }

func (f *memFB) pixel(x, y int) uint16 {
	off := y*f.w*2 + x*2
	return uint16(f.buf[off]) | uint16(f.buf[off+1])<<8
}

var white = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

func TestSetPixelEncodesRGB565(t *testing.T) {
	fb := newMemFB(4, 4)
	d := NewDisplay(fb)

	d.SetPixel(1, 2, color.RGBA{R: 0xFF, A: 0xFF})
	if got := fb.pixel(1, 2); got != 0xF800 {
		t.Fatalf("pixel(1,2) = %#04x, want 0xf800", got)
	}
	d.SetPixel(-1, 0, white)
	d.SetPixel(4, 0, white)
	for i, b := range fb.buf {
		if b != 0 && i != (2*4+1)*2 && i != (2*4+1)*2+1 {
			t.Fatalf("out of range SetPixel wrote byte %d", i)
		}
	}
}

func TestFillRectangleClips(t *testing.T) {
	fb := newMemFB(4, 4)
	d := NewDisplay(fb)

	if err := d.FillRectangle(2, 2, 10, 10, white); err != nil {
		t.Fatalf("FillRectangle() err = %v", err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := uint16(0)
			if x >= 2 && y >= 2 {
				want = 0xFFFF
			}
			if got := fb.pixel(x, y); got != want {
				t.Fatalf("pixel(%d,%d) = %#04x, want %#04x", x, y, got, want)
			}
		}
	}
}

func TestScrollUp(t *testing.T) {
	fb := newMemFB(2, 3)
	d := NewDisplay(fb)
	d.SetPixel(0, 2, white)

	if err := d.ScrollUp(1, color.RGBA{}); err != nil {
		t.Fatalf("ScrollUp() err = %v", err)
	}
	if got := fb.pixel(0, 1); got != 0xFFFF {
		t.Fatalf("pixel(0,1) = %#04x, want 0xffff", got)
	}
	if got := fb.pixel(0, 2); got != 0 {
		t.Fatalf("pixel(0,2) = %#04x, want 0", got)
	}
}

func TestNilFramebufferIsInert(t *testing.T) {
	d := NewDisplay(nil)
	if d.Drawable() {
		t.Fatalf("Drawable() = true, want false")
	}
	d.SetPixel(0, 0, white)
	if err := d.FillRectangle(0, 0, 1, 1, white); err != nil {
		t.Fatalf("FillRectangle() err = %v", err)
	}
	if err := d.Display(); err != nil {
		t.Fatalf("Display() err = %v", err)
	}
}

func TestRenderPresentsFrame(t *testing.T) {
	k, err := kernel.New(&hal.Board{
		Log:   hal.Discard,
		Proc:  hal.NewFakeCPU(),
		Clock: &hal.ManualTimer{},
	}, kernel.DefaultConfig())
	if err != nil {
		t.Fatalf("kernel.New() err = %v", err)
	}
	fb := newMemFB(160, 120)
	m := New(fb, 10)

	m.Render(k)
	if fb.presents != 1 {
		t.Fatalf("presents = %d, want 1", fb.presents)
	}
	lit := 0
	for y := 0; y < fb.h; y++ {
		for x := 0; x < fb.w; x++ {
			if fb.pixel(x, y) != 0 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Fatalf("Render() drew nothing")
	}
}
