// Package monitor draws a live view of the kernel: one line per thread and
// the load averages, refreshed from a low-priority kernel thread.
package monitor

import (
	"fmt"
	"image/color"

	"arbitros/hal"
	"arbitros/internal/buildinfo"
	"arbitros/internal/klog"
	"arbitros/kernel"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

var (
	fg     = color.RGBA{R: 0xD0, G: 0xD0, B: 0xD0, A: 0xFF}
	accent = color.RGBA{R: 0x40, G: 0xC0, B: 0x40, A: 0xFF}
	bg     = color.RGBA{A: 0xFF}
)

const fontHeight = 10

// Monitor renders kernel state onto a display.
type Monitor struct {
	d      *Display
	period uint16
	frames uint32
}

// New returns a monitor that redraws every period ticks.
func New(disp hal.Display, period uint16) *Monitor {
	var fb hal.Framebuffer
	if disp != nil {
		fb = disp.Framebuffer()
	}
	if period == 0 {
		period = 50
	}
	return &Monitor{d: NewDisplay(fb), period: period}
}

// Run is the monitor thread body.
func (m *Monitor) Run(k *kernel.Kernel, _, _ int) {
	if !m.d.Drawable() {
		k.Log().Printf(klog.Low, "monitor: no framebuffer, exiting")
		return
	}
	for {
		m.Render(k)
		if err := k.Sleep(m.period); err != nil {
			return
		}
	}
}

// Render draws one frame.
func (m *Monitor) Render(k *kernel.Kernel) {
	threads := k.Threads()
	avg1, avg5 := k.LoadAverages()
	now := k.Now()
	heap := k.HeapStats()

	w, h := m.d.Size()
	m.d.FillRectangle(0, 0, w, h, bg)

	t := tinyterm.NewTerminal(m.d)
	t.Configure(&tinyterm.Config{
		Font:       &proggy.TinySZ8pt7b,
		FontHeight: fontHeight,
		FontOffset: 6,
	})
	fmt.Fprintf(t, "%s  up %dd %02d:%02d:%02d\n",
		buildinfo.Banner("arbitros"), now.Days, now.Hours, now.Min, now.Sec)
	fmt.Fprintf(t, "load %s %s  heap %d/%d\n\n",
		kernel.FormatLoad(avg1), kernel.FormatLoad(avg5), heap.InUse, heap.Size)
	fmt.Fprintf(t, "%-5s %4s %-8s %5s %5s\n", "ID", "PRI", "STATE", "QUANT", "STACK")
	for _, th := range threads {
		fmt.Fprintf(t, "%-5v %4d %-8v %5d %5d\n", th.ID, th.Priority, th.Status, th.Quantum, th.StackSize)
	}

	m.frames++
	footer := fmt.Sprintf("tick %d  frame %d", now.Ticks, m.frames)
	tinyfont.WriteLine(m.d, &proggy.TinySZ8pt7b, 2, h-4, footer, accent)
	tinyfont.WriteLine(m.d, &proggy.TinySZ8pt7b, 2, h-4-fontHeight, fmt.Sprintf("switches %d", k.Switches()), fg)
	m.d.Display()
}
