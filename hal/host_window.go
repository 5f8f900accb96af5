//go:build !tinygo && cgo

package hal

import (
	"fmt"
	"image"

	"arbitros/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunWindow boots the system and opens a desktop window that displays the
// framebuffer. It blocks until the window closes or the system stops.
func RunWindow(boot func(HAL) error) error {
	h := New().(*hostHAL)
	if err := boot(h); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	defer h.timer.Stop()

	g := &hostGame{h: h}
	ebiten.SetWindowTitle("Arbitros (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*2, h.fb.height*2)
	ebiten.SetTPS(30)
	return ebiten.RunGame(g)
}

type hostGame struct {
	h       *hostHAL
	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
	frame   uint64
}

func (g *hostGame) Update() error {
	select {
	case <-g.h.cpu.Halted():
		return ErrHalted
	case <-g.h.wd.Expired():
		return ErrWatchdogReset
	default:
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.scratch = make([]byte, len(fb.front))
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}

	if n := fb.snapshotRGB565(g.scratch); n != g.frame {
		g.frame = n
		src := g.scratch
		dst := g.img.Pix
		for i := 0; i+1 < len(src) && i/2*4+3 < len(dst); i += 2 {
			r, gg, b := rgb888From565(uint16(src[i]) | uint16(src[i+1])<<8)
			j := (i / 2) * 4
			dst[j+0] = r
			dst[j+1] = gg
			dst[j+2] = b
			dst[j+3] = 0xFF
		}
		g.fbImg.WritePixels(g.img.Pix)
	}
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}
