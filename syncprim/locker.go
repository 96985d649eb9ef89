// Package syncprim provides the locking primitives the job system is built
// on: a blocking mutex, a spinlock for very short critical sections, a
// condition variable with timed waits and a reusable N-party barrier.
//
// None of the primitives return errors and none allocate on Lock/Unlock.
package syncprim

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Mutex is the exclusive blocking lock.
type Mutex = sync.Mutex

// LockKind selects the implementation returned by NewLocker.
type LockKind int

const (
	// Spin busy-waits on contention. Only for sections bounded by a handful
	// of memory accesses, never across a blocking call.
	Spin LockKind = iota

	// Blocking parks the goroutine on contention. Fallback for platforms or
	// workloads where spinning burns more than it saves.
	Blocking

	// DeadlockChecked is a blocking mutex that reports lock-order inversions
	// and locks held longer than the deadlock timeout. Debug use only.
	DeadlockChecked
)

// String returns the flag spelling of the kind.
func (k LockKind) String() string {
	switch k {
	case Spin:
		return "spin"
	case Blocking:
		return "blocking"
	case DeadlockChecked:
		return "deadlock"
	default:
		return fmt.Sprintf("LockKind(%d)", int(k))
	}
}

// ParseLockKind parses the output of LockKind.String.
func ParseLockKind(s string) (LockKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spin", "":
		return Spin, nil
	case "blocking", "mutex":
		return Blocking, nil
	case "deadlock":
		return DeadlockChecked, nil
	default:
		return Spin, fmt.Errorf("syncprim: unknown lock kind %q", s)
	}
}

// NewLocker returns an unlocked lock of the given kind. Unknown kinds get
// a spinlock.
func NewLocker(kind LockKind) sync.Locker {
	switch kind {
	case Blocking:
		return &sync.Mutex{}
	case DeadlockChecked:
		return &deadlock.Mutex{}
	default:
		return &Spinlock{}
	}
}

// SetDeadlockTimeout changes how long a DeadlockChecked lock may be waited
// on before it is reported. The setting is process-wide.
func SetDeadlockTimeout(d time.Duration) {
	deadlock.Opts.DeadlockTimeout = d
}
