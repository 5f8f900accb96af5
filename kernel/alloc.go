package kernel

import "arbitros/internal/heap"

// Alloc returns a zeroed block of size bytes from the kernel heap.
//
// Once the timer runs, the heap is touched only with interrupts masked and
// on the kernel stack, and the calling thread resumes without a scheduling
// decision. Interrupt handlers may not allocate.
func (k *Kernel) Alloc(size int) (heap.Ptr, error) {
	var p heap.Ptr
	err := k.protect(func() error {
		var err error
		p, err = k.heap.Alloc(size)
		return mapHeapErr(err)
	})
	return p, err
}

// Free returns a block to the kernel heap.
func (k *Kernel) Free(p heap.Ptr) error {
	return k.protect(func() error {
		return mapHeapErr(k.heap.Free(p))
	})
}

// Bytes returns the first n bytes of an allocated block, or nil.
func (k *Kernel) Bytes(p heap.Ptr, n int) []byte {
	return k.heap.Bytes(p, n)
}

// HeapStats reports kernel heap usage.
func (k *Kernel) HeapStats() heap.Stats {
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)
	return k.heap.Stats()
}

func (k *Kernel) protect(op func() error) error {
	if !k.timerOn {
		return op()
	}
	if k.cpu.InInterrupt() {
		return ErrInvalidArgument
	}
	was := k.cpu.Disable()
	cur := k.current
	k.save(cur, was)
	k.cpu.SwitchToKernelStack()
	k.checkStack(cur)
	err := op()
	k.cpu.Restore(cur.frame)
	k.cpu.RestoreInterrupts(was)
	return err
}
