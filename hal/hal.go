package hal

import (
	"errors"
	"io"
	"time"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// LED is a minimal output pin abstraction.
type LED interface {
	High()
	Low()
}

var (
	ErrNotImplemented = errors.New("not implemented")
	ErrHalted         = errors.New("cpu halted")
	ErrWatchdogReset  = errors.New("watchdog reset")
)

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
//
// Buffer returns the back buffer; Present publishes it.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Serial is the console line. Read blocks until input arrives and is only
// called from a board goroutine, never from a kernel thread.
type Serial interface {
	io.Reader
	Logger
}

// Timer is the periodic tick source.
//
// Start arms the timer; raise is called from the timer's own context once
// per period and must only latch the interrupt (see CPU.Raise).
type Timer interface {
	Configure(period time.Duration) error
	Start(raise func()) error
	Stop()
}

// Watchdog resets the system unless Reset is called within the period.
type Watchdog interface {
	Configure(period time.Duration) error
	Enable() error
	Reset()
}

// HAL provides the only contact point between the kernel and the outside world.
type HAL interface {
	Logger() Logger
	LED() LED
	Display() Display
	CPU() CPU
	Timer() Timer
	Watchdog() Watchdog
	Serial() Serial
}

// Board is a HAL assembled from parts. Nil parts are reported as absent.
type Board struct {
	Log   Logger
	Light LED
	Disp  Display
	Proc  CPU
	Clock Timer
	Dog   Watchdog
	Port  Serial
}

func (b *Board) Logger() Logger     { return b.Log }
func (b *Board) LED() LED           { return b.Light }
func (b *Board) Display() Display   { return b.Disp }
func (b *Board) CPU() CPU           { return b.Proc }
func (b *Board) Timer() Timer       { return b.Clock }
func (b *Board) Watchdog() Watchdog { return b.Dog }
func (b *Board) Serial() Serial     { return b.Port }

type nullLogger struct{}

func (nullLogger) WriteLineString(string) {}
func (nullLogger) WriteLineBytes([]byte)  {}

// Discard is a Logger that drops every line.
var Discard Logger = nullLogger{}
