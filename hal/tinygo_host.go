//go:build tinygo && !baremetal

package hal

import (
	"os"
	"runtime"
)

// tinyGoHostHAL serves `tinygo run` targets such as linux or wasm, where
// there are no pins and no watchdog.
type tinyGoHostHAL struct {
	logger printLogger
	led    *printLED
	fb     *memFramebuffer
	cpu    *GoCPU
	timer  *tinyGoTimer
}

// New returns a TinyGo-on-host HAL implementation.
func New() HAL {
	return &tinyGoHostHAL{
		led:   &printLED{},
		fb:    newMemFramebuffer(320, 320, nil),
		cpu:   NewCPU(),
		timer: &tinyGoTimer{},
	}
}

func (h *tinyGoHostHAL) Logger() Logger     { return h.logger }
func (h *tinyGoHostHAL) LED() LED           { return h.led }
func (h *tinyGoHostHAL) Display() Display   { return tinyGoDisplay{fb: h.fb} }
func (h *tinyGoHostHAL) CPU() CPU           { return h.cpu }
func (h *tinyGoHostHAL) Timer() Timer       { return h.timer }
func (h *tinyGoHostHAL) Watchdog() Watchdog { return nil }
func (h *tinyGoHostHAL) Serial() Serial     { return stdinSerial{} }

type printLogger struct{}

func (printLogger) WriteLineString(s string) { println(s) }
func (printLogger) WriteLineBytes(b []byte)  { println(string(b)) }

type stdinSerial struct{ printLogger }

func (stdinSerial) Read(p []byte) (int, error) { return os.Stdin.Read(p) }

type printLED struct{ on bool }

func (l *printLED) High() {
	if !l.on {
		println("led: HIGH (tinygo/" + runtime.GOOS + ")")
	}
	l.on = true
}

func (l *printLED) Low() {
	if l.on {
		println("led: LOW (tinygo/" + runtime.GOOS + ")")
	}
	l.on = false
}
