// Package stack implements Charon's execution stack: a single region
// shared by every VM frame, where running off either end raises a genuine
// hardware fault instead of silently corrupting memory or growing
// unbounded.
//
// Value holds live Go pointers (Instance, Class, Function references), so
// the actual storage is an ordinary Go slice the garbage collector can see
// and scan — an mmap'd region outside the Go heap would hide those
// pointers from the collector. The guard pages instead back a one-byte-
// per-slot "canary" region of the same length: every Read/Write touches the
// canary at the same index first, and an out-of-range index lands on a
// PROT_NONE page and faults before the real (safe, in-bounds) slice access
// ever runs. Go's runtime normally treats a SIGSEGV from user code as
// fatal; pairing debug.SetPanicOnFault with a recover at the single call
// site that touches the canary turns it back into an ordinary recoverable
// panic we can inspect and translate into the diagnostics below.
package stack

import (
	"fmt"
	"os"
	"regexp"
	"runtime/debug"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/0x264/charon/pkg/diag"
	"github.com/0x264/charon/pkg/value"
)

const (
	// PageSize is the guard page granularity.
	PageSize = 4096
	// MinOperandCapacity is the floor on how many Value slots the shared
	// execution stack must hold.
	MinOperandCapacity = 65536
)

var valueSize = int(unsafe.Sizeof(value.Value{}))

// Size is the usable stack region in bytes: the fewest whole guard pages
// that hold at least MinOperandCapacity Value slots.
var Size = pagesFor(MinOperandCapacity*valueSize) * PageSize

// Cap is the number of Value slots a Stack holds.
var Cap = Size / valueSize

func pagesFor(bytes int) int {
	return (bytes + PageSize - 1) / PageSize
}

var setPanicOnFaultOnce sync.Once

var (
	registryMu sync.Mutex
	registry   []*Stack
)

// Stack is a fixed-capacity array of Values. Index 0 is the bottom of the
// shared stack; each VM frame addresses a contiguous window of it via its
// own base/top offsets.
type Stack struct {
	values []value.Value

	canaryMapping []byte
	canaryBase    unsafe.Pointer

	lowGuardStart, lowGuardEnd   uintptr
	highGuardStart, highGuardEnd uintptr
}

// New allocates a fresh stack: Cap value slots of ordinary, GC-visible
// storage, fenced by a guard-paged canary region of the same length.
func New() (*Stack, error) {
	setPanicOnFaultOnce.Do(func() { debug.SetPanicOnFault(true) })

	mapSize := Cap + PageSize*2
	mapping, err := unix.Mmap(-1, 0, mapSize, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mapping execution stack guard region: %w", err)
	}
	if err := unix.Mprotect(mapping[PageSize:PageSize+Cap], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		unix.Munmap(mapping)
		return nil, fmt.Errorf("protecting execution stack guard region: %w", err)
	}

	base := uintptr(unsafe.Pointer(&mapping[0]))
	s := &Stack{
		values:         make([]value.Value, Cap),
		canaryMapping:  mapping,
		canaryBase:     unsafe.Pointer(&mapping[PageSize]),
		lowGuardStart:  base,
		lowGuardEnd:    base + PageSize,
		highGuardStart: base + PageSize + uintptr(Cap),
		highGuardEnd:   base + PageSize + uintptr(Cap) + PageSize,
	}

	registryMu.Lock()
	registry = append(registry, s)
	registryMu.Unlock()

	return s, nil
}

// Close unmaps the guard region. The VM calls this once on clean exit; a
// guard fault instead exits the process directly.
func (s *Stack) Close() error {
	registryMu.Lock()
	for i, r := range registry {
		if r == s {
			registry = append(registry[:i], registry[i+1:]...)
			break
		}
	}
	registryMu.Unlock()
	return unix.Munmap(s.canaryMapping)
}

// touch dereferences the canary byte at i, faulting into a guard page if i
// is outside [0, Cap).
func (s *Stack) touch(i int) {
	defer recoverFault()
	canarySink = *(*byte)(unsafe.Add(s.canaryBase, i))
}

// canarySink receives each canary load so the compiler cannot drop it.
var canarySink byte

// Read returns the value at absolute slot i.
func (s *Stack) Read(i int) value.Value {
	s.touch(i)
	return s.values[i]
}

// Write stores v at absolute slot i.
func (s *Stack) Write(i int, v value.Value) {
	s.touch(i)
	s.values[i] = v
}

var faultAddrRe = regexp.MustCompile(`0x[0-9a-fA-F]+`)

// recoverFault inspects a panic raised by a faulting canary touch. It
// never returns normally for a genuine guard-page fault: it prints the
// matching diagnostic and exits the process, exactly as the reference
// implementation's chained SIGSEGV/SIGBUS handler does. Any other panic is
// re-raised unchanged.
func recoverFault() {
	r := recover()
	if r == nil {
		return
	}
	fault, ok := r.(interface{ Addr() uintptr })
	if !ok {
		panic(r)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	a := fault.Addr()
	for _, s := range registry {
		if a >= s.lowGuardStart && a < s.lowGuardEnd {
			diag.Errorln("stack underflow")
			os.Exit(1)
		}
		if a >= s.highGuardStart && a < s.highGuardEnd {
			diag.Errorln("stack overflow")
			os.Exit(1)
		}
	}
	panic(r)
}
