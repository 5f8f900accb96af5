package console

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"arbitros/hal"
	"arbitros/internal/klog"
	"arbitros/kernel"
)

// termPort is a serial line whose output is kept for inspection.
type termPort struct {
	io.Reader

	mu    sync.Mutex
	lines []string
}

func (p *termPort) WriteLineString(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, s)
}

func (p *termPort) WriteLineBytes(b []byte) { p.WriteLineString(string(b)) }

func (p *termPort) output() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

func (p *termPort) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = nil
}

func (p *termPort) contains(sub string) bool {
	for _, l := range p.output() {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

func newConsole(t *testing.T, in io.Reader) (*Console, *hal.FakeCPU, *termPort) {
	t.Helper()
	cpu := hal.NewFakeCPU()
	k, err := kernel.New(&hal.Board{Log: hal.Discard, Proc: cpu, Clock: &hal.ManualTimer{}}, kernel.DefaultConfig())
	if err != nil {
		t.Fatalf("kernel.New() err = %v", err)
	}
	port := &termPort{Reader: in}
	c, err := New(k, cpu, port, hal.IRQUser1)
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	return c, cpu, port
}

func TestNewNeedsPort(t *testing.T) {
	cpu := hal.NewFakeCPU()
	k, err := kernel.New(&hal.Board{Log: hal.Discard, Proc: cpu, Clock: &hal.ManualTimer{}}, kernel.DefaultConfig())
	if err != nil {
		t.Fatalf("kernel.New() err = %v", err)
	}
	if _, err := New(k, cpu, nil, hal.IRQUser1); err == nil {
		t.Fatalf("New(nil port) err = nil")
	}
}

func TestHelp(t *testing.T) {
	c, _, port := newConsole(t, strings.NewReader(""))

	c.Exec("help")
	for _, name := range []string{"help", "sct", "sdl", "top"} {
		if !port.contains(name + " ") {
			t.Fatalf("help output %q lacks %s", port.output(), name)
		}
	}

	port.reset()
	c.Exec("HELP sct")
	if got := port.output(); len(got) != 2 || got[0] != "usage: sct <hh> <mm> <ss>" {
		t.Fatalf("help sct = %q", got)
	}

	port.reset()
	c.Exec("help nope")
	if !port.contains("unknown command: nope") {
		t.Fatalf("help nope = %q", port.output())
	}
}

func TestSetTime(t *testing.T) {
	tests := []struct {
		line    string
		want    [3]uint8
		wantOut string
	}{
		{"sct 12 34 56", [3]uint8{12, 34, 56}, "time 12:34:56"},
		{"sct 07:08:09", [3]uint8{7, 8, 9}, "time 07:08:09"},
		{"sct 24 0 0", [3]uint8{7, 8, 9}, "sct: "},
		{"sct 1 2", [3]uint8{7, 8, 9}, "usage: sct"},
		{"sct a b c", [3]uint8{7, 8, 9}, `sct: bad field "a"`},
	}
	c, _, port := newConsole(t, strings.NewReader(""))
	for _, tt := range tests {
		port.reset()
		c.Exec(tt.line)
		now := c.Kernel().Now()
		if got := [3]uint8{now.Hours, now.Min, now.Sec}; got != tt.want {
			t.Fatalf("%q: time = %v, want %v", tt.line, got, tt.want)
		}
		if !port.contains(tt.wantOut) {
			t.Fatalf("%q: output %q, want %q", tt.line, port.output(), tt.wantOut)
		}
	}
}

func TestSetDebugLevel(t *testing.T) {
	tests := []struct {
		line string
		want klog.Level
	}{
		{"sdl 0", klog.Low},
		{"sdl 1", klog.Med},
		{"SDL 2", klog.High},
		{"sdl OFF", klog.Off},
		{"sdl med", klog.Med},
	}
	c, _, port := newConsole(t, strings.NewReader(""))
	log := c.Kernel().Log()
	for _, tt := range tests {
		c.Exec(tt.line)
		if got := log.Level(); got != tt.want {
			t.Fatalf("%q: level = %v, want %v", tt.line, got, tt.want)
		}
	}

	port.reset()
	c.Exec("sdl 9")
	if log.Level() != klog.Med || !port.contains(`sdl: invalid level "9"`) {
		t.Fatalf("sdl 9: level %v, output %q", log.Level(), port.output())
	}
}

func TestTop(t *testing.T) {
	c, _, port := newConsole(t, strings.NewReader(""))
	k := c.Kernel()
	if _, err := k.CreateThread(func(*kernel.Kernel, int, int) {}, 0, 0, 96, 7); err != nil {
		t.Fatalf("CreateThread() err = %v", err)
	}

	c.Exec("top")
	out := port.output()
	header := -1
	for i, l := range out {
		if strings.HasPrefix(l, "ID") {
			header = i
		}
	}
	if header < 0 {
		t.Fatalf("top output has no thread table: %q", out)
	}
	if rows := len(out) - header - 1; rows != len(k.Threads()) {
		t.Fatalf("top shows %d threads, want %d: %q", rows, len(k.Threads()), out)
	}
	for _, want := range []string{"load 1m 0.00  5m 0.00", "heap ", "    7 "} {
		if !port.contains(want) {
			t.Fatalf("top output %q lacks %q", out, want)
		}
	}

	port.reset()
	c.Exec("top now")
	if !port.contains("usage: top") {
		t.Fatalf("top now = %q", port.output())
	}
}

func TestExecRejectsBadLines(t *testing.T) {
	c, _, port := newConsole(t, strings.NewReader(""))

	c.Exec("   ")
	if len(port.output()) != 0 {
		t.Fatalf("blank line printed %q", port.output())
	}
	c.Exec("ls /")
	if !port.contains("unknown command: ls") {
		t.Fatalf("ls = %q", port.output())
	}
	c.Exec("top 1 2 3 4 5 6 7 8")
	if !port.contains("too many tokens") {
		t.Fatalf("long line = %q", port.output())
	}
}

func TestRegister(t *testing.T) {
	c, _, port := newConsole(t, strings.NewReader(""))
	var got []string
	if err := c.Register(Command{Name: "Echo", Usage: "echo [args]", Run: func(c *Console, args []string) error {
		got = args
		return errors.New("echoed")
	}}); err != nil {
		t.Fatalf("Register() err = %v", err)
	}
	if err := c.Register(Command{Name: "top", Run: cmdTop}); err == nil {
		t.Fatalf("Register(duplicate) err = nil")
	}
	if err := c.Register(Command{Name: "nil"}); err == nil {
		t.Fatalf("Register(no handler) err = nil")
	}

	c.Exec(`echo a "b c"`)
	if strings.Join(got, ",") != "a,b c" || !port.contains("echoed") {
		t.Fatalf("echo args %q, output %q", got, port.output())
	}

	port.reset()
	got = nil
	c.Exec(`echo "open`)
	if got != nil || !port.contains("parse error") {
		t.Fatalf("unterminated quote ran with %q, output %q", got, port.output())
	}
}

func TestInterruptQueuesLines(t *testing.T) {
	c, cpu, _ := newConsole(t, strings.NewReader(""))
	k := c.Kernel()
	cpu.Enable()

	c.push([]byte("top"))
	if n, _ := k.MailboxMessages(c.mbox); n != 1 {
		t.Fatalf("MailboxMessages() = %d, want 1", n)
	}
	for i := 0; i < Depth; i++ {
		c.push([]byte("help"))
	}
	if n, _ := k.MailboxMessages(c.mbox); n != Depth {
		t.Fatalf("MailboxMessages() = %d, want %d", n, Depth)
	}
	if got := c.Dropped(); got != 1 {
		t.Fatalf("Dropped() = %d, want 1", got)
	}

	buf := make([]byte, LineSize)
	n, err := k.Read(c.mbox, buf)
	if err != nil || string(buf[:n]) != "top" {
		t.Fatalf("Read() = %q, %v, want top", buf[:n], err)
	}
}

func TestListenSplitsLines(t *testing.T) {
	long := strings.Repeat("x", LineSize+10)
	in := "sdl 1\r\nfoo\x7f\x7fo\n\n" + long + "\ntop"
	c, _, _ := newConsole(t, strings.NewReader(in))

	// Interrupts stay masked, so the lines wait in the pending queue.
	c.Listen(make(chan struct{}))

	var got []string
	for _, l := range c.pending {
		got = append(got, string(l))
	}
	want := []string{"sdl 1", "fo", long[:LineSize], "top"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("pending = %q, want %q", got, want)
	}
}

func TestConsoleThreadRunsCommands(t *testing.T) {
	cpu := hal.NewCPU()
	k, err := kernel.New(&hal.Board{Log: hal.Discard, Proc: cpu, Clock: &hal.ManualTimer{}}, kernel.DefaultConfig())
	if err != nil {
		t.Fatalf("kernel.New() err = %v", err)
	}
	r, w := io.Pipe()
	port := &termPort{Reader: r}
	c, err := New(k, cpu, port, hal.IRQUser1)
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	if _, err := k.CreateThread(c.Run, 0, 0, 256, 100); err != nil {
		t.Fatalf("CreateThread() err = %v", err)
	}
	if err := k.Start(); err != nil {
		t.Fatalf("Start() err = %v", err)
	}
	stop := make(chan struct{})
	defer close(stop)
	go c.Listen(stop)

	if _, err := io.WriteString(w, "sdl 2\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for !port.contains("debug level high") {
		if time.Now().After(deadline) {
			t.Fatalf("console never answered: %q", port.output())
		}
		time.Sleep(time.Millisecond)
	}
}
