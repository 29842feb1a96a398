//go:build tinygo

package spisimple

import (
	"runtime/volatile"
	"unsafe"
)

// MMIO accesses registers directly through the CPU's memory bus. It is the
// Registers implementation to use on bare-metal targets where the core is
// mapped into the physical address space.
type MMIO struct{}

// Read32 performs a volatile 32 bit load from addr.
func (MMIO) Read32(addr uintptr) uint32 {
	return (*volatile.Register32)(unsafe.Pointer(addr)).Get()
}

// Write32 performs a volatile 32 bit store of value to addr.
func (MMIO) Write32(addr uintptr, value uint32) {
	(*volatile.Register32)(unsafe.Pointer(addr)).Set(value)
}
