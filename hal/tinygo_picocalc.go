//go:build tinygo && baremetal && picocalc

package hal

import (
	"errors"
	"machine"
	"time"
)

const picoCalcLCDSize = 320

type picoCalcHAL struct {
	logger *uartLogger
	led    *pinLED
	fb     *memFramebuffer
	cpu    *GoCPU
	timer  *tinyGoTimer
	wd     *tinyGoWatchdog
}

// New returns a HAL for a Pico/Pico2 on the PicoCalc carrier, with the
// ILI9488 panel on SPI1.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1.
func New() HAL {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})
	logger := &uartLogger{uart: uart}

	ledPin := machine.LED
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	var push func([]byte, int, int) error
	if lcd, err := newILI9488(); err == nil {
		push = lcd.blit
	} else {
		logger.WriteLineString("lcd: " + err.Error())
	}

	return &picoCalcHAL{
		logger: logger,
		led:    &pinLED{pin: ledPin},
		fb:     newMemFramebuffer(picoCalcLCDSize, picoCalcLCDSize, push),
		cpu:    NewCPU(),
		timer:  &tinyGoTimer{},
		wd:     &tinyGoWatchdog{},
	}
}

func (h *picoCalcHAL) Logger() Logger     { return h.logger }
func (h *picoCalcHAL) LED() LED           { return h.led }
func (h *picoCalcHAL) Display() Display   { return tinyGoDisplay{fb: h.fb} }
func (h *picoCalcHAL) CPU() CPU           { return h.cpu }
func (h *picoCalcHAL) Timer() Timer       { return h.timer }
func (h *picoCalcHAL) Watchdog() Watchdog { return h.wd }
func (h *picoCalcHAL) Serial() Serial     { return uartSerial{h.logger} }

type ili9488 struct {
	spi *machine.SPI
	cs  machine.Pin
	dc  machine.Pin
	rst machine.Pin
	tx  []byte
}

type lcdCommand struct {
	op    byte
	args  []byte
	pause time.Duration
}

// 16bpp, 320 lines, inverted, mirrored for the carrier wiring with BGR order.
var ili9488Init = []lcdCommand{
	{op: 0xC0, args: []byte{0x17, 0x15}},
	{op: 0xC1, args: []byte{0x41}},
	{op: 0xC5, args: []byte{0x00, 0x12, 0x80, 0x40}},
	{op: 0x3A, args: []byte{0x55}},
	{op: 0xB1, args: []byte{0xA0, 0x11}},
	{op: 0xB6, args: []byte{0x02, 0x22, 0x27}},
	{op: 0x21},
	{op: 0x36, args: []byte{0x40 | 0x04 | 0x08}},
	{op: 0x11, pause: 120 * time.Millisecond},
	{op: 0x29},
}

func newILI9488() (*ili9488, error) {
	if machine.SPI1 == nil {
		return nil, errors.New("SPI1 unavailable")
	}
	if err := machine.SPI1.Configure(machine.SPIConfig{
		SCK:       machine.GP10,
		SDO:       machine.GP11,
		SDI:       machine.GP12,
		Frequency: 40_000_000,
	}); err != nil {
		return nil, err
	}

	d := &ili9488{
		spi: machine.SPI1,
		cs:  machine.GP13,
		dc:  machine.GP14,
		rst: machine.GP15,
		tx:  make([]byte, 4096),
	}
	for _, p := range []machine.Pin{d.cs, d.dc, d.rst} {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.High()
	}

	d.rst.Low()
	time.Sleep(64 * time.Millisecond)
	d.rst.High()
	time.Sleep(140 * time.Millisecond)

	for _, c := range ili9488Init {
		d.command(c.op, c.args...)
		if c.pause > 0 {
			time.Sleep(c.pause)
		}
	}
	return d, nil
}

func (d *ili9488) command(op byte, args ...byte) {
	d.cs.Low()
	d.dc.Low()
	d.spi.Tx([]byte{op}, nil)
	d.dc.High()
	if len(args) > 0 {
		d.spi.Tx(args, nil)
	}
	d.cs.High()
}

// blit sends a little-endian RGB565 frame; the panel wants big-endian.
func (d *ili9488) blit(buf []byte, w, h int) error {
	total := w * h * 2
	if w <= 0 || h <= 0 || len(buf) < total {
		return errors.New("lcd: invalid framebuffer")
	}
	x1, y1 := uint16(w-1), uint16(h-1)
	d.command(0x2A, 0, 0, byte(x1>>8), byte(x1))
	d.command(0x2B, 0, 0, byte(y1>>8), byte(y1))
	d.command(0x2C)

	d.cs.Low()
	d.dc.High()
	for off := 0; off < total; {
		n := min(len(d.tx), total-off)
		for i := 0; i < n; i += 2 {
			d.tx[i] = buf[off+i+1]
			d.tx[i+1] = buf[off+i]
		}
		d.spi.Tx(d.tx[:n], nil)
		off += n
	}
	d.cs.High()
	return nil
}
