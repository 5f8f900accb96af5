package kernel

import (
	"time"

	"arbitros/internal/klog"
)

// MaxMsec is where the millisecond counter wraps (one hour).
const MaxMsec = 3600000

// SystemTime is kernel time since boot or the last SetTime.
type SystemTime struct {
	Ticks uint64
	// Usec counts microseconds within the current second.
	Usec  uint32
	Msec  uint32
	Sec   uint8
	Min   uint8
	Hours uint8
	Days  uint16
}

func (t *SystemTime) advance(period time.Duration) {
	us := uint32(period / time.Microsecond)
	t.Ticks++
	t.Msec = (t.Msec + us/1000) % MaxMsec
	t.Usec += us
	for t.Usec >= 1000000 {
		t.Usec -= 1000000
		t.Sec++
		if t.Sec < 60 {
			continue
		}
		t.Sec = 0
		t.Min++
		if t.Min < 60 {
			continue
		}
		t.Min = 0
		t.Hours++
		if t.Hours < 24 {
			continue
		}
		t.Hours = 0
		t.Days++
	}
}

// MsecDelta returns curr-prev on the wrapping millisecond counter.
func MsecDelta(curr, prev uint32) uint32 {
	if curr < prev {
		return curr + MaxMsec - prev
	}
	return curr - prev
}

// Now returns a copy of kernel time.
func (k *Kernel) Now() SystemTime {
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)
	return k.time
}

// MsecNow returns the wrapping millisecond counter.
func (k *Kernel) MsecNow() uint32 {
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)
	return k.time.Msec
}

// SetTime sets the wall clock fields, keeping tick and millisecond counters.
func (k *Kernel) SetTime(hours, min, sec uint8) error {
	if hours > 23 || min > 59 || sec > 59 {
		return ErrInvalidArgument
	}
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)
	k.time.Hours, k.time.Min, k.time.Sec = hours, min, sec
	k.time.Usec = 0
	return nil
}

// ResetTime zeroes every time field.
func (k *Kernel) ResetTime() {
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)
	k.time = SystemTime{}
}

func (k *Kernel) stamp() klog.Stamp {
	return klog.Stamp{
		Hours: k.time.Hours,
		Min:   k.time.Min,
		Sec:   k.time.Sec,
		Msec:  uint16(k.time.Usec / 1000),
	}
}
