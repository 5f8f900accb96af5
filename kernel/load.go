package kernel

import (
	"fmt"
	"time"
)

// Load averages are Q15 fixed point: LoadOne is one fully busy thread.
const (
	LoadShift = 15
	LoadOne   = 1 << LoadShift

	// Smoothing factors for a 5 second sample window against 1 and 5 minute
	// horizons: 1-5/60 and 1-5/300.
	loadAlpha1 = LoadOne * 55 / 60
	loadAlpha5 = LoadOne * 295 / 300

	loadWindowSec = 5
)

type loadEstimator struct {
	rate   uint32
	count  uint32
	active uint64
	avg1   uint32
	avg5   uint32
	last   uint32
}

func (l *loadEstimator) init(period time.Duration) {
	l.rate = uint32(loadWindowSec * time.Second / period)
	if l.rate == 0 {
		l.rate = 1
	}
}

// sample records the number of active threads for one tick. It reports
// whether a window completed and the averages moved.
func (l *loadEstimator) sample(active uint32) bool {
	l.active += uint64(active)
	l.count++
	if l.count < l.rate {
		return false
	}
	l.last = uint32(l.active * LoadOne / uint64(l.rate))
	l.active, l.count = 0, 0
	l.avg1 = decay(l.avg1, l.last, loadAlpha1)
	l.avg5 = decay(l.avg5, l.last, loadAlpha5)
	return true
}

func decay(prev, load, alpha uint32) uint32 {
	v := uint64(prev)*uint64(alpha) + uint64(LoadOne-alpha)*uint64(load) + LoadOne>>1
	return uint32(v >> LoadShift)
}

// LoadAverages returns the 1 and 5 minute load averages in Q15.
func (k *Kernel) LoadAverages() (avg1, avg5 uint32) {
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)
	return k.load.avg1, k.load.avg5
}

// FormatLoad renders a Q15 load as "n.nn".
func FormatLoad(q uint32) string {
	hundredths := (uint64(q)*100 + LoadOne/2) >> LoadShift
	return fmt.Sprintf("%d.%02d", hundredths/100, hundredths%100)
}
