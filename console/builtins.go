package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"arbitros/internal/klog"
	"arbitros/kernel"
)

func registerBuiltins(r *registry) error {
	for _, cmd := range []Command{
		{Name: "help", Usage: "help [command]", Desc: "Show available commands.", Run: cmdHelp},
		{Name: "sct", Usage: "sct <hh> <mm> <ss>", Desc: "Set the time of day.", Run: cmdSetTime},
		{Name: "sdl", Usage: "sdl <0|1|2|off>", Desc: "Set the debug level (low, med, high).", Run: cmdSetDebugLevel},
		{Name: "top", Usage: "top", Desc: "Show threads, load and memory.", Run: cmdTop},
	} {
		if err := r.register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func cmdHelp(c *Console, args []string) error {
	switch len(args) {
	case 0:
		for _, name := range c.reg.names() {
			cmd, _ := c.reg.resolve(name)
			c.Printf("%-6s %-20s %s", cmd.Name, cmd.Usage, cmd.Desc)
		}
		return nil
	case 1:
		cmd, ok := c.reg.resolve(args[0])
		if !ok {
			return fmt.Errorf("unknown command: %s", args[0])
		}
		c.Printf("usage: %s", cmd.Usage)
		c.Printf("%s", cmd.Desc)
		return nil
	}
	return errors.New("usage: help [command]")
}

func cmdSetTime(c *Console, args []string) error {
	if len(args) == 1 {
		args = strings.Split(args[0], ":")
	}
	if len(args) != 3 {
		return errors.New("usage: sct <hh> <mm> <ss>")
	}
	var hms [3]uint8
	for i, a := range args {
		v, err := strconv.ParseUint(a, 10, 8)
		if err != nil {
			return fmt.Errorf("sct: bad field %q", a)
		}
		hms[i] = uint8(v)
	}
	if err := c.k.SetTime(hms[0], hms[1], hms[2]); err != nil {
		return fmt.Errorf("sct: %w", err)
	}
	now := c.k.Now()
	c.Printf("time %02d:%02d:%02d", now.Hours, now.Min, now.Sec)
	return nil
}

func cmdSetDebugLevel(c *Console, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: sdl <0|1|2|off>")
	}
	var level klog.Level
	switch args[0] {
	case "0":
		level = klog.Low
	case "1":
		level = klog.Med
	case "2":
		level = klog.High
	default:
		var err error
		if level, err = klog.ParseLevel(strings.ToLower(args[0])); err != nil {
			return fmt.Errorf("sdl: invalid level %q", args[0])
		}
	}
	c.k.Log().SetLevel(level)
	c.Printf("debug level %v", level)
	return nil
}

func cmdTop(c *Console, args []string) error {
	if len(args) != 0 {
		return errors.New("usage: top")
	}
	k := c.k
	now := k.Now()
	avg1, avg5 := k.LoadAverages()
	heap := k.HeapStats()

	c.Printf("up %dd %02d:%02d:%02d  tick %d  switches %d",
		now.Days, now.Hours, now.Min, now.Sec, now.Ticks, k.Switches())
	c.Printf("load 1m %s  5m %s", kernel.FormatLoad(avg1), kernel.FormatLoad(avg5))
	c.Printf("heap %d/%d used, peak %d, free %d", heap.InUse, heap.Size, heap.Peak, heap.Free)
	c.Printf("%-5s %4s %-8s %5s %5s", "ID", "PRI", "STATE", "QUANT", "STACK")
	for _, th := range k.Threads() {
		c.Printf("%-5v %4d %-8v %5d %5d", th.ID, th.Priority, th.Status, th.Quantum, th.StackSize)
	}
	if n := c.Dropped(); n > 0 {
		c.Printf("console: %d lines dropped", n)
	}
	return nil
}
