// Package console is the kernel's command line. A board goroutine reads the
// serial line, an interrupt handler queues each completed line into a
// mailbox, and the console thread parses and runs it.
package console

import (
	"errors"
	"fmt"
	"sync"

	"arbitros/hal"
	"arbitros/internal/buildinfo"
	"arbitros/internal/klog"
	"arbitros/kernel"

	"github.com/google/shlex"
)

const (
	// LineSize is the longest command line; extra input is discarded.
	LineSize = 64
	// Depth is how many lines may wait for the console thread.
	Depth = 4

	maxTokens  = 8
	maxPending = 2 * Depth
)

// Console owns the line mailbox and the command table.
type Console struct {
	k    *kernel.Kernel
	cpu  hal.CPU
	port hal.Serial
	line hal.IRQ
	mbox kernel.MailboxID
	reg  *registry

	mu      sync.Mutex
	pending [][]byte

	// Lines lost to a full mailbox or a full pending queue.
	dropped uint32
}

// New creates the line mailbox, installs the receive handler on line and
// registers the built-in commands.
func New(k *kernel.Kernel, cpu hal.CPU, port hal.Serial, line hal.IRQ) (*Console, error) {
	if port == nil {
		return nil, errors.New("console: no serial port")
	}
	mb, err := k.CreateMailbox(kernel.MailboxConfig{
		SlotSize:        LineSize,
		Depth:           Depth,
		WriteMode:       kernel.NonBlocking,
		ReadMode:        kernel.Blocking,
		InterruptWriter: true,
	})
	if err != nil {
		return nil, fmt.Errorf("console: %w", err)
	}
	c := &Console{k: k, cpu: cpu, port: port, line: line, mbox: mb, reg: newRegistry()}
	if err := registerBuiltins(c.reg); err != nil {
		return nil, err
	}
	cpu.Attach(line, c.isr)
	return c, nil
}

// Register adds an application command. Names are matched case-insensitively.
func (c *Console) Register(cmd Command) error {
	return c.reg.register(cmd)
}

// Kernel returns the kernel the console controls.
func (c *Console) Kernel() *kernel.Kernel { return c.k }

// Printf writes one line to the terminal.
func (c *Console) Printf(format string, args ...any) {
	c.port.WriteLineString(fmt.Sprintf(format, args...))
}

// Dropped returns the number of input lines lost before the thread read them.
func (c *Console) Dropped() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Run is the console thread body.
func (c *Console) Run(k *kernel.Kernel, _, _ int) {
	c.Printf("%s console, type help", buildinfo.Banner("arbitros"))
	buf := make([]byte, LineSize)
	for {
		n, err := k.Read(c.mbox, buf)
		if err != nil {
			k.Log().Printf(klog.High, "console: %v", err)
			return
		}
		c.Exec(string(buf[:n]))
	}
}

// Exec parses and runs one command line. Arguments split on spaces and
// may be quoted.
func (c *Console) Exec(line string) {
	args, err := shlex.Split(line)
	if err != nil {
		c.Printf("parse error: %v", err)
		return
	}
	if len(args) == 0 {
		return
	}
	if len(args) > maxTokens {
		c.Printf("too many tokens (max %d)", maxTokens)
		return
	}
	cmd, ok := c.reg.resolve(args[0])
	if !ok {
		c.Printf("unknown command: %s", args[0])
		return
	}
	if err := cmd.Run(c, args[1:]); err != nil {
		c.Printf("%v", err)
	}
}

// Listen feeds the console from the serial port until the port fails or
// stop is closed. It runs on a board goroutine, not a kernel thread.
func (c *Console) Listen(stop <-chan struct{}) {
	buf := make([]byte, 32)
	var line []byte
	for {
		n, err := c.port.Read(buf)
		for _, b := range buf[:n] {
			switch b {
			case '\r', '\n':
				if len(line) > 0 {
					c.push(line)
					line = nil
				}
			case 0x08, 0x7f:
				if len(line) > 0 {
					line = line[:len(line)-1]
				}
			default:
				if len(line) < LineSize {
					line = append(line, b)
				}
			}
		}
		if err != nil {
			if len(line) > 0 {
				c.push(line)
			}
			return
		}
		select {
		case <-stop:
			return
		default:
		}
	}
}

// push queues a completed line and latches the receive interrupt.
func (c *Console) push(line []byte) {
	c.mu.Lock()
	if len(c.pending) >= maxPending {
		c.dropped++
		c.mu.Unlock()
		return
	}
	c.pending = append(c.pending, line)
	c.mu.Unlock()
	c.cpu.Raise(c.line)
}

// isr moves queued lines into the mailbox. It never blocks; a full mailbox
// drops the line.
func (c *Console) isr() {
	c.mu.Lock()
	lines := c.pending
	c.pending = nil
	c.mu.Unlock()

	var lost uint32
	for _, l := range lines {
		if _, err := c.k.Write(c.mbox, l); err != nil {
			lost++
		}
	}
	if lost > 0 {
		c.mu.Lock()
		c.dropped += lost
		c.mu.Unlock()
	}
}
