package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"arbitros/hal"
	"arbitros/kernel"
	"arbitros/monitor"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

func installHaltHandler(k *kernel.Kernel, h hal.HAL) {
	k.OnHalt(func(info kernel.HaltInfo) {
		if l := h.Logger(); l != nil {
			l.WriteLineString(fmt.Sprintf("arbitros halt: thread=%v reason=%v", info.Thread, info.Reason))
		}
		if disp := h.Display(); disp != nil {
			drawHaltScreen(disp.Framebuffer(), info)
		}
	})
}

func drawHaltScreen(fb hal.Framebuffer, info kernel.HaltInfo) {
	d := monitor.NewDisplay(fb)
	if !d.Drawable() {
		return
	}
	fb.ClearRGB(0x80, 0, 0)

	font := &proggy.TinySZ8pt7b
	const lineHeight = 10
	_, glyphW := tinyfont.LineWidth(font, "0")
	cols := 1
	if glyphW > 0 {
		cols = fb.Width() / int(glyphW)
	}

	fg := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	lines := []string{
		"arbitros halted",
		fmt.Sprintf("thread: %v", info.Thread),
		fmt.Sprintf("reason: %v", info.Reason),
	}
	y := int16(lineHeight)
	for _, line := range lines {
		for line != "" {
			if int(y) > fb.Height() {
				_ = fb.Present()
				return
			}
			chunk, rest := takeRunes(line, cols)
			tinyfont.WriteLine(d, font, 2, y, chunk, fg)
			y += lineHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
	_ = fb.Present()
}

func takeRunes(s string, n int) (prefix, rest string) {
	if n <= 0 || len(s) <= n {
		return s, ""
	}
	i := 0
	for count := 0; i < len(s) && count < n; count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i], s[i:]
}
