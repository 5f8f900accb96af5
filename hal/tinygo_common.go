//go:build tinygo && baremetal

package hal

import (
	"machine"
	"time"
)

// tinyGoWatchdog drives the RP2 hardware watchdog; expiry resets the chip.
type tinyGoWatchdog struct{}

func (w *tinyGoWatchdog) Configure(period time.Duration) error {
	return machine.Watchdog.Configure(machine.WatchdogConfig{
		TimeoutMillis: uint32(period / time.Millisecond),
	})
}

func (w *tinyGoWatchdog) Enable() error { return machine.Watchdog.Start() }
func (w *tinyGoWatchdog) Reset()        { machine.Watchdog.Update() }

// uartLogger terminates lines with CRLF for serial terminals.
type uartLogger struct {
	uart *machine.UART
}

var crlf = []byte{'\r', '\n'}

func (l *uartLogger) WriteLineString(s string) { l.WriteLineBytes([]byte(s)) }

func (l *uartLogger) WriteLineBytes(b []byte) {
	l.uart.Write(b)
	l.uart.Write(crlf)
}

// uartSerial is the console on UART0. Read polls the RX ring until a byte
// arrives.
type uartSerial struct {
	*uartLogger
}

func (s uartSerial) Read(p []byte) (int, error) {
	for s.uart.Buffered() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	return s.uart.Read(p)
}

type pinLED struct {
	pin machine.Pin
}

func (l *pinLED) High() { l.pin.High() }
func (l *pinLED) Low()  { l.pin.Low() }
