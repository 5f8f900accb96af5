package app

import (
	"encoding/binary"
	"errors"

	"arbitros/console"
	"arbitros/hal"
	"arbitros/internal/klog"
	"arbitros/kernel"
)

const (
	sensorPriority   = 5
	producerPriority = 10
	consumerPriority = 11
	workerPriority   = 20

	demoStack = 128
)

// demo is a small set of threads that exercise every IPC path: a blocking
// mailbox between two threads, a mutex shared by two workers and an
// interrupt-fed mailbox drained by a thread.
type demo struct {
	led hal.LED

	data   kernel.MailboxID
	sensor kernel.MailboxID
	lock   kernel.SemID

	shared   int
	readings uint32
	dropped  uint32
	ledOn    bool
}

func newDemo(k *kernel.Kernel, h hal.HAL) (*demo, error) {
	d := &demo{led: h.LED()}

	var err error
	if d.data, err = k.CreateMailbox(kernel.MailboxConfig{SlotSize: 4, Depth: 4}); err != nil {
		return nil, err
	}
	if d.sensor, err = k.CreateMailbox(kernel.MailboxConfig{
		SlotSize:        4,
		Depth:           8,
		WriteMode:       kernel.NonBlocking,
		InterruptWriter: true,
	}); err != nil {
		return nil, err
	}
	if d.lock, err = k.CreateSemaphore(kernel.SemMutex); err != nil {
		return nil, err
	}

	threads := []struct {
		fn    kernel.ThreadFunc
		param int
		prio  uint8
	}{
		{d.sensorReader, 0, sensorPriority},
		{d.producer, 0, producerPriority},
		{d.consumer, 0, consumerPriority},
		{d.worker, 0, workerPriority},
		{d.worker, 1, workerPriority + 1},
	}
	for _, th := range threads {
		if _, err := k.CreateThread(th.fn, th.param, 0, demoStack, th.prio); err != nil {
			return nil, err
		}
	}
	h.CPU().Attach(hal.IRQUser0, func() { d.sensorISR(k) })
	return d, nil
}

func (d *demo) producer(k *kernel.Kernel, _, _ int) {
	var msg [4]byte
	for seq := uint32(0); ; seq++ {
		binary.LittleEndian.PutUint32(msg[:], seq)
		if _, err := k.Write(d.data, msg[:]); err != nil {
			k.Log().Printf(klog.High, "producer: %v", err)
			return
		}
		k.Sleep(5)
	}
}

func (d *demo) consumer(k *kernel.Kernel, _, _ int) {
	buf := make([]byte, 4)
	for {
		n, err := k.Read(d.data, buf)
		if err != nil {
			k.Log().Printf(klog.High, "consumer: %v", err)
			return
		}
		seq := binary.LittleEndian.Uint32(buf[:n])
		if seq%20 == 0 {
			k.Log().Printf(klog.Med|klog.ShowTime, "consumer: message %d", seq)
		}
	}
}

func (d *demo) worker(k *kernel.Kernel, param, _ int) {
	for {
		if err := k.Wait(d.lock, kernel.Blocking); err != nil {
			return
		}
		v := d.shared
		k.Yield()
		d.shared = v + 1
		if d.shared%100 == 0 {
			k.Log().Printf(klog.Low, "worker %d: counter %d", param, d.shared)
		}
		k.Signal(d.lock)
		k.Sleep(1)
	}
}

// sensorISR runs in interrupt context.
func (d *demo) sensorISR(k *kernel.Kernel) {
	d.readings++
	var msg [4]byte
	binary.LittleEndian.PutUint32(msg[:], d.readings)
	if _, err := k.Write(d.sensor, msg[:]); err != nil {
		d.dropped++
	}
}

func (d *demo) sensorReader(k *kernel.Kernel, _, _ int) {
	buf := make([]byte, 4)
	for {
		n, err := k.Read(d.sensor, buf)
		if err != nil {
			k.Log().Printf(klog.High, "sensor: %v", err)
			return
		}
		d.toggleLED()
		k.Log().Printf(klog.Low|klog.ShowTime, "sensor: reading %d (dropped %d)",
			binary.LittleEndian.Uint32(buf[:n]), d.dropped)
	}
}

func (d *demo) toggleLED() {
	if d.led == nil {
		return
	}
	d.ledOn = !d.ledOn
	if d.ledOn {
		d.led.High()
	} else {
		d.led.Low()
	}
}

// status backs the console's demo command.
func (d *demo) status(c *console.Console, args []string) error {
	if len(args) != 0 {
		return errors.New("usage: demo")
	}
	c.Printf("sensor readings %d, dropped %d", d.readings, d.dropped)
	c.Printf("mutex counter %d", d.shared)
	return nil
}
