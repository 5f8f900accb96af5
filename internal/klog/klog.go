// Package klog is the kernel's leveled printf.
//
// Before the scheduler runs, lines go straight to the sink. Once buffered,
// lines queue in a bounded ring that the idle thread drains with Flush, so
// threads never wait on a slow console.
package klog

import (
	"fmt"

	"arbitros/hal"
)

// Level is a message priority. A message is emitted when its level is at
// least the logger's threshold; Off as a threshold silences everything.
type Level uint8

const (
	Low  Level = 0x1
	Med  Level = 0x2
	High Level = 0x4
	Off  Level = 0x20

	// ShowTime may be or'ed into a message level to prefix the kernel time.
	ShowTime Level = 0x40

	priorityMask Level = 0x3F
)

func (l Level) String() string {
	switch l & priorityMask {
	case Low:
		return "low"
	case Med:
		return "med"
	case High:
		return "high"
	case Off:
		return "off"
	default:
		return fmt.Sprintf("Level(%d)", uint8(l))
	}
}

// ParseLevel maps a flag value onto a threshold.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "low":
		return Low, nil
	case "med":
		return Med, nil
	case "high":
		return High, nil
	case "off", "":
		return Off, nil
	}
	return Off, fmt.Errorf("klog: unknown level %q", s)
}

// Stamp is the wall time shown by ShowTime.
type Stamp struct {
	Hours, Min, Sec uint8
	Msec            uint16
}

// String renders the stamp as [hh:mm:ss:mmm] followed by two spaces.
func (s Stamp) String() string {
	return fmt.Sprintf("[%02d:%02d:%02d:%03d]  ", s.Hours, s.Min, s.Sec, s.Msec)
}

const DefaultDepth = 32

// Logger is not safe for concurrent use; the kernel calls it with
// interrupts masked or from the thread that holds the CPU.
type Logger struct {
	sink     hal.Logger
	level    Level
	clock    func() Stamp
	buffered bool

	ring    []string
	head    int
	n       int
	dropped uint32
}

// New returns a logger writing to sink with room for depth pending lines.
func New(sink hal.Logger, level Level, depth int) *Logger {
	if sink == nil {
		sink = hal.Discard
	}
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Logger{sink: sink, level: level, ring: make([]string, depth)}
}

func (l *Logger) SetLevel(level Level) { l.level = level & priorityMask }
func (l *Logger) Level() Level         { return l.level }
func (l *Logger) SetClock(fn func() Stamp) {
	l.clock = fn
}

// SetBuffered switches between write-through and queued output.
// Leaving buffered mode flushes what is pending.
func (l *Logger) SetBuffered(on bool) {
	if !on {
		l.Flush()
	}
	l.buffered = on
}

// Enabled reports whether a message at level would be emitted.
func (l *Logger) Enabled(level Level) bool {
	return level&priorityMask >= l.level && l.level != Off
}

func (l *Logger) Printf(level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	line := fmt.Sprintf(format, args...)
	if level&ShowTime != 0 && l.clock != nil {
		line = l.clock().String() + line
	}
	l.emit(line)
}

func (l *Logger) emit(line string) {
	if !l.buffered {
		l.sink.WriteLineString(line)
		return
	}
	if l.n == len(l.ring) {
		l.head = (l.head + 1) % len(l.ring)
		l.n--
		l.dropped++
	}
	l.ring[(l.head+l.n)%len(l.ring)] = line
	l.n++
}

// Flush writes every pending line to the sink.
func (l *Logger) Flush() {
	for l.n > 0 {
		line := l.ring[l.head]
		l.ring[l.head] = ""
		l.head = (l.head + 1) % len(l.ring)
		l.n--
		l.sink.WriteLineString(line)
	}
}

// Pending returns the number of queued lines.
func (l *Logger) Pending() int { return l.n }

// Dropped returns how many lines were discarded because the ring was full.
func (l *Logger) Dropped() uint32 { return l.dropped }
