//go:build linux

// Package devmem gives Linux userspace programs access to SPI-simple cores
// through a memory mapping of /dev/mem, as done on Zynq boards running Linux
// without a kernel driver for the core.
package devmem

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tinygo-org/spisimple/spisimple"
)

// DefaultPath is the physical memory device.
const DefaultPath = "/dev/mem"

var errClosed = errors.New("devmem: mapping closed")

var _ spisimple.Registers = (*Map)(nil)

// Map is a mapping of a physical address window. Addresses passed to Read32
// and Write32 are physical addresses inside the window.
type Map struct {
	mem  []byte
	phys uintptr // physical address of mem[0]
	lo   uintptr // first mapped address requested by the user
	hi   uintptr // end of the requested window
}

// Open maps the window [phys, phys+size) of the file at path, usually
// DefaultPath. The mapping is page aligned and opened with O_SYNC so that
// accesses are not cached.
func Open(path string, phys uintptr, size int) (*Map, error) {
	if size <= 0 {
		return nil, fmt.Errorf("devmem: invalid window size %d", size)
	}
	if phys%4 != 0 {
		return nil, fmt.Errorf("devmem: unaligned address 0x%x", phys)
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("devmem: open %s: %w", path, err)
	}
	defer unix.Close(fd)

	pageSize := uintptr(unix.Getpagesize())
	start := phys &^ (pageSize - 1)
	length := (phys - start + uintptr(size) + pageSize - 1) &^ (pageSize - 1)
	mem, err := unix.Mmap(fd, int64(start), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("devmem: mmap 0x%x+0x%x: %w", start, length, err)
	}
	return &Map{
		mem:  mem,
		phys: start,
		lo:   phys,
		hi:   phys + uintptr(size),
	}, nil
}

// Close unmaps the window. The Map must not be used afterwards.
func (m *Map) Close() error {
	if m.mem == nil {
		return errClosed
	}
	err := unix.Munmap(m.mem)
	m.mem = nil
	return err
}

func (m *Map) word(addr uintptr) *uint32 {
	if m.mem == nil {
		panic(errClosed)
	}
	if addr < m.lo || addr+4 > m.hi || addr%4 != 0 {
		panic("devmem: address 0x" + strconv.FormatUint(uint64(addr), 16) + " outside mapped window")
	}
	return (*uint32)(unsafe.Pointer(&m.mem[addr-m.phys]))
}

// Read32 implements spisimple.Registers. The load is atomic so the compiler
// neither elides nor reorders it.
func (m *Map) Read32(addr uintptr) uint32 {
	return atomic.LoadUint32(m.word(addr))
}

// Write32 implements spisimple.Registers.
func (m *Map) Write32(addr uintptr, value uint32) {
	atomic.StoreUint32(m.word(addr), value)
}
