package kernel

import (
	"encoding/binary"
	"errors"
	"math"

	"arbitros/internal/heap"
	"arbitros/internal/slotmap"
)

// MailboxID is a generation-checked mailbox handle.
type MailboxID slotmap.Handle

// MailboxConfig describes a mailbox at creation.
type MailboxConfig struct {
	// SlotSize is the largest message in bytes.
	SlotSize int
	// Depth is the number of slots.
	Depth     int
	WriteMode Mode
	ReadMode  Mode
	// InterruptWriter allows Write from interrupt handlers. It requires a
	// NonBlocking WriteMode.
	InterruptWriter bool
	// MultiWriter serialises writers from several threads with a mutex.
	MultiWriter bool
}

// each slot is prefixed with a little-endian message length
const lenPrefix = 2

type mailbox struct {
	id       MailboxID
	cfg      MailboxConfig
	mem      heap.Ptr
	fill     SemID
	empty    SemID
	mutex    SemID
	hasMutex bool
	wr       int
	rd       int
	n        int
}

func (m *mailbox) storageBytes() int { return m.cfg.Depth * (m.cfg.SlotSize + lenPrefix) }

// CreateMailbox allocates a mailbox and its fill/empty semaphores.
func (k *Kernel) CreateMailbox(cfg MailboxConfig) (MailboxID, error) {
	switch {
	case k.cpu.InInterrupt():
		return MailboxID{}, ErrInvalidArgument
	case cfg.SlotSize <= 0 || cfg.SlotSize > math.MaxUint16:
		return MailboxID{}, ErrInvalidArgument
	case cfg.Depth <= 0 || cfg.Depth > math.MaxInt16:
		return MailboxID{}, ErrInvalidArgument
	case cfg.WriteMode > NonBlocking || cfg.ReadMode > NonBlocking:
		return MailboxID{}, ErrInvalidArgument
	case cfg.InterruptWriter && cfg.WriteMode == Blocking:
		return MailboxID{}, ErrInvalidArgument
	}

	m := &mailbox{cfg: cfg}
	err := k.buildMailbox(m)
	if err != nil {
		k.releaseMailbox(m)
		return MailboxID{}, err
	}

	was := k.cpu.Disable()
	h, ok := k.mboxes.Insert(m)
	k.cpu.RestoreInterrupts(was)
	if !ok {
		k.releaseMailbox(m)
		return MailboxID{}, ErrOutOfHeap
	}
	m.id = MailboxID(h)
	return m.id, nil
}

func (k *Kernel) buildMailbox(m *mailbox) error {
	var err error
	if m.mem, err = k.Alloc(m.storageBytes()); err != nil {
		return err
	}
	if m.fill, err = k.CreateSemaphore(SemCounting); err != nil {
		return err
	}
	if m.empty, err = k.CreateSemaphore(SemCounting); err != nil {
		return err
	}
	if err = k.InitSemaphore(m.empty, int16(m.cfg.Depth)); err != nil {
		return err
	}
	if m.cfg.MultiWriter && !m.cfg.InterruptWriter {
		if m.mutex, err = k.CreateSemaphore(SemMutex); err != nil {
			return err
		}
		m.hasMutex = true
	}
	return nil
}

// releaseMailbox destroys whatever parts of m exist.
func (k *Kernel) releaseMailbox(m *mailbox) {
	var zero SemID
	for _, id := range []SemID{m.fill, m.empty, m.mutex} {
		if id != zero {
			k.DestroySemaphore(id)
		}
	}
	if m.mem != 0 {
		k.Free(m.mem)
		m.mem = 0
	}
}

// DestroyMailbox releases every thread waiting on the mailbox (their calls
// return ErrInvalidHandle) and frees its storage.
func (k *Kernel) DestroyMailbox(id MailboxID) error {
	if k.cpu.InInterrupt() {
		return ErrInvalidArgument
	}
	was := k.cpu.Disable()
	m, ok := k.mboxes.Remove(slotmap.Handle(id))
	k.cpu.RestoreInterrupts(was)
	if !ok {
		return ErrInvalidHandle
	}
	k.releaseMailbox(m)
	return nil
}

func (k *Kernel) mailbox(id MailboxID) (*mailbox, error) {
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)
	m, ok := k.mboxes.Get(slotmap.Handle(id))
	if !ok {
		return nil, ErrInvalidHandle
	}
	return m, nil
}

// Write copies buf into the next free slot. In NonBlocking mode a full
// mailbox returns ErrMailboxFull.
func (k *Kernel) Write(id MailboxID, buf []byte) (int, error) {
	m, err := k.mailbox(id)
	if err != nil {
		return 0, err
	}
	if len(buf) > m.cfg.SlotSize {
		return 0, ErrWriteTooLarge
	}
	if k.cpu.InInterrupt() && !m.cfg.InterruptWriter {
		return 0, ErrInvalidArgument
	}
	if err := k.Wait(m.empty, m.cfg.WriteMode); err != nil {
		if errors.Is(err, ErrWouldBlock) {
			return 0, ErrMailboxFull
		}
		return 0, err
	}

	if m.hasMutex {
		if err := k.Wait(m.mutex, Blocking); err != nil {
			return 0, err
		}
	}
	was := k.cpu.Disable()
	live := k.mboxes.Contains(slotmap.Handle(id))
	if live {
		k.put(m, buf)
	}
	k.cpu.RestoreInterrupts(was)
	if m.hasMutex {
		k.Signal(m.mutex)
	}
	if !live {
		return 0, ErrInvalidHandle
	}

	if err := k.Signal(m.fill); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Read copies the oldest message into buf, which must hold a full slot.
// In NonBlocking mode an empty mailbox returns ErrMailboxEmpty.
func (k *Kernel) Read(id MailboxID, buf []byte) (int, error) {
	m, err := k.mailbox(id)
	if err != nil {
		return 0, err
	}
	if len(buf) < m.cfg.SlotSize {
		return 0, ErrReadBufferTooSmall
	}
	if err := k.Wait(m.fill, m.cfg.ReadMode); err != nil {
		if errors.Is(err, ErrWouldBlock) {
			return 0, ErrMailboxEmpty
		}
		return 0, err
	}

	was := k.cpu.Disable()
	if !k.mboxes.Contains(slotmap.Handle(id)) {
		k.cpu.RestoreInterrupts(was)
		return 0, ErrInvalidHandle
	}
	n := k.take(m, buf)
	k.cpu.RestoreInterrupts(was)

	if err := k.Signal(m.empty); err != nil {
		return 0, err
	}
	return n, nil
}

func (k *Kernel) put(m *mailbox, buf []byte) {
	stride := m.cfg.SlotSize + lenPrefix
	slot := k.heap.Bytes(m.mem, m.storageBytes())[m.wr*stride : (m.wr+1)*stride]
	binary.LittleEndian.PutUint16(slot, uint16(len(buf)))
	copy(slot[lenPrefix:], buf)
	m.wr = (m.wr + 1) % m.cfg.Depth
	m.n++
}

func (k *Kernel) take(m *mailbox, buf []byte) int {
	stride := m.cfg.SlotSize + lenPrefix
	slot := k.heap.Bytes(m.mem, m.storageBytes())[m.rd*stride : (m.rd+1)*stride]
	n := int(binary.LittleEndian.Uint16(slot))
	copy(buf, slot[lenPrefix:lenPrefix+n])
	m.rd = (m.rd + 1) % m.cfg.Depth
	m.n--
	return n
}

// MailboxSlotSize returns the largest message the mailbox accepts.
func (k *Kernel) MailboxSlotSize(id MailboxID) (int, error) {
	m, err := k.mailbox(id)
	if err != nil {
		return 0, err
	}
	return m.cfg.SlotSize, nil
}

// MailboxDepth returns the number of slots.
func (k *Kernel) MailboxDepth(id MailboxID) (int, error) {
	m, err := k.mailbox(id)
	if err != nil {
		return 0, err
	}
	return m.cfg.Depth, nil
}

// MailboxMessages returns the number of queued messages.
func (k *Kernel) MailboxMessages(id MailboxID) (int, error) {
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)
	m, ok := k.mboxes.Get(slotmap.Handle(id))
	if !ok {
		return 0, ErrInvalidHandle
	}
	return m.n, nil
}
