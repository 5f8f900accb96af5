package kernel

import "fmt"

// Error is a kernel status code. Codes are negative and stable.
type Error int8

const (
	ErrOutOfHeap          Error = -1
	ErrInvalidArgument    Error = -6
	ErrInvalidHandle      Error = -7
	ErrInvalidPriority    Error = -8
	ErrHAL                Error = -10
	ErrWriteTooLarge      Error = -11
	ErrReadBufferTooSmall Error = -12
	ErrWouldBlock         Error = -13
	ErrMailboxFull        Error = -14
	ErrMailboxEmpty       Error = -15
	ErrStackOverflow      Error = -16
)

func (e Error) String() string {
	switch e {
	case ErrOutOfHeap:
		return "out of heap"
	case ErrInvalidArgument:
		return "invalid argument"
	case ErrInvalidHandle:
		return "invalid handle"
	case ErrInvalidPriority:
		return "invalid priority"
	case ErrHAL:
		return "hal error"
	case ErrWriteTooLarge:
		return "write too large"
	case ErrReadBufferTooSmall:
		return "read buffer too small"
	case ErrWouldBlock:
		return "would block"
	case ErrMailboxFull:
		return "mailbox full"
	case ErrMailboxEmpty:
		return "mailbox empty"
	case ErrStackOverflow:
		return "stack overflow"
	default:
		return fmt.Sprintf("Error(%d)", int8(e))
	}
}

func (e Error) Error() string { return "kernel: " + e.String() }

// Is lets the mailbox errors match ErrWouldBlock.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	if !ok {
		return false
	}
	if t == ErrWouldBlock {
		return e == ErrWouldBlock || e == ErrMailboxFull || e == ErrMailboxEmpty
	}
	return e == t
}
