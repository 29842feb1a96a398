// Package sim simulates the register file of an SPI-simple core.
//
// The simulation is cycle based: every read of the STATUS register advances
// the simulated clock by one cycle, so the busy-wait loops of the driver make
// progress the same way they would against hardware. Shifting can be frozen
// with Hold to keep the core busy or its TX FIFO full.
package sim

import (
	"strconv"
	"sync"

	"github.com/tinygo-org/spisimple/spisimple"
)

// Defaults of a simulated core.
const (
	DefaultFIFODepth     = 16
	DefaultCyclesPerWord = 1
)

var _ spisimple.Registers = (*Core)(nil)

// Access is a register access recorded by the simulator.
type Access struct {
	Write  bool
	Offset uintptr
	Value  uint32
}

func (a Access) String() string {
	op := "R"
	if a.Write {
		op = "W"
	}
	return op + " 0x" + strconv.FormatUint(uint64(a.Offset), 16) + " 0x" + strconv.FormatUint(uint64(a.Value), 16)
}

// Option configures a simulated core.
type Option func(*Core)

// WithDepth sets the TX and RX FIFO depths.
func WithDepth(tx, rx int) Option {
	return func(c *Core) {
		if tx <= 0 || rx <= 0 {
			panic("sim: bad fifo depth")
		}
		c.txDepth, c.rxDepth = tx, rx
	}
}

// WithCyclesPerWord sets the number of STATUS reads needed to shift out one word.
func WithCyclesPerWord(n int) Option {
	return func(c *Core) {
		if n <= 0 {
			panic("sim: bad cycles per word")
		}
		c.cyclesPerWord = n
	}
}

// WithResponder sets the function computing the word a slave returns for a
// transmitted word. The default responder loops tx back.
func WithResponder(fn func(slave uint8, tx uint32) uint32) Option {
	return func(c *Core) { c.respond = fn }
}

type txEntry struct {
	word    uint32
	slave   uint8
	storeRx bool
}

// Core is a simulated SPI-simple core. It implements spisimple.Registers for
// the register window starting at its base address. Core is safe for
// concurrent use so tests may drive the simulation from another goroutine.
type Core struct {
	mu sync.Mutex

	base          uintptr
	txDepth       int
	rxDepth       int
	cyclesPerWord int
	respond       func(slave uint8, tx uint32) uint32

	tx       []txEntry
	rx       []uint32
	inflight *txEntry
	cycle    int
	held     bool

	slave      uint8
	storeRx    bool
	txAlmEmpty uint32
	rxAlmFull  uint32
	irqVec     spisimple.IRQ
	irqEna     spisimple.IRQ
	// level sensitive IRQ conditions at the last update, for edge detection.
	conds spisimple.IRQ

	log         []Access
	statusReads int
	txOverflow  int
	rxOverflow  int
	underflow   int
	completed   int
}

// New returns a simulated core at base in its reset state.
func New(base uintptr, opts ...Option) *Core {
	c := &Core{
		base:          base,
		txDepth:       DefaultFIFODepth,
		rxDepth:       DefaultFIFODepth,
		cyclesPerWord: DefaultCyclesPerWord,
		respond:       func(_ uint8, tx uint32) uint32 { return tx },
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reset()
	return c
}

// Reset puts the core in its reset state. The access log is kept.
func (c *Core) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Core) reset() {
	c.tx = c.tx[:0]
	c.rx = c.rx[:0]
	c.inflight = nil
	c.cycle = 0
	c.held = false
	c.slave = 0
	c.storeRx = false
	c.txAlmEmpty = 0
	c.rxAlmFull = 0
	c.irqVec = 0
	c.irqEna = 0
	c.conds = c.conditions()
}

// Base returns the base address of the simulated core.
func (c *Core) Base() uintptr { return c.base }

func (c *Core) offset(addr uintptr) uintptr {
	off := addr - c.base
	if addr < c.base || off >= spisimple.RegWindow || off%4 != 0 {
		panic("sim: bad register address 0x" + strconv.FormatUint(uint64(addr), 16))
	}
	return off
}

// Read32 implements spisimple.Registers.
func (c *Core) Read32(addr uintptr) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	off := c.offset(addr)
	var v uint32
	switch off {
	case spisimple.RegData:
		v = c.popRx()
	case spisimple.RegStatus:
		c.statusReads++
		c.step()
		v = uint32(c.status())
	case spisimple.RegRxLevel:
		v = uint32(len(c.rx))
	case spisimple.RegTxLevel:
		v = uint32(len(c.tx))
	case spisimple.RegIRQVec:
		v = uint32(c.irqVec)
	}
	c.log = append(c.log, Access{Offset: off, Value: v})
	return v
}

// Write32 implements spisimple.Registers.
func (c *Core) Write32(addr uintptr, value uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	off := c.offset(addr)
	c.log = append(c.log, Access{Write: true, Offset: off, Value: value})
	switch off {
	case spisimple.RegData:
		if len(c.tx) >= c.txDepth {
			c.txOverflow++
			return
		}
		c.tx = append(c.tx, txEntry{word: value, slave: c.slave, storeRx: c.storeRx})
	case spisimple.RegSlaveNr:
		c.slave = uint8(value)
	case spisimple.RegStoreRx:
		c.storeRx = value&1 != 0
	case spisimple.RegTxAlmEmptyLvl:
		c.txAlmEmpty = value
	case spisimple.RegRxAlmFullLvl:
		c.rxAlmFull = value
	case spisimple.RegIRQVec:
		c.irqVec &^= spisimple.IRQ(value)
	case spisimple.RegIRQEna:
		c.irqEna = spisimple.IRQ(value) & spisimple.IRQAll
	}
	c.update()
}

func (c *Core) popRx() uint32 {
	if len(c.rx) == 0 {
		c.underflow++
		return 0
	}
	v := c.rx[0]
	c.rx = append(c.rx[:0], c.rx[1:]...)
	c.update()
	return v
}

// step advances the simulation by one clock cycle.
func (c *Core) step() {
	if c.held {
		return
	}
	if c.inflight == nil {
		if len(c.tx) == 0 {
			return
		}
		e := c.tx[0]
		c.tx = append(c.tx[:0], c.tx[1:]...)
		c.inflight = &e
		c.cycle = 0
	}
	c.cycle++
	if c.cycle < c.cyclesPerWord {
		c.update()
		return
	}
	e := c.inflight
	c.inflight = nil
	c.completed++
	if e.storeRx {
		if len(c.rx) >= c.rxDepth {
			c.rxOverflow++
		} else {
			c.rx = append(c.rx, c.respond(e.slave, e.word))
		}
	}
	c.irqVec |= spisimple.IRQTransferDone
	c.update()
}

func (c *Core) status() spisimple.Status {
	var s spisimple.Status
	txLvl, rxLvl := uint32(len(c.tx)), uint32(len(c.rx))
	if txLvl == 0 {
		s |= spisimple.StatusTxEmpty
	}
	if int(txLvl) >= c.txDepth {
		s |= spisimple.StatusTxFull
	}
	if txLvl < c.txAlmEmpty {
		s |= spisimple.StatusTxAlmostEmpty
	}
	if rxLvl == 0 {
		s |= spisimple.StatusRxEmpty
	}
	if int(rxLvl) >= c.rxDepth {
		s |= spisimple.StatusRxFull
	}
	if c.rxAlmFull != 0 && rxLvl >= c.rxAlmFull {
		s |= spisimple.StatusRxAlmostFull
	}
	if c.inflight != nil || txLvl != 0 {
		s |= spisimple.StatusBusy
	}
	return s
}

// conditions returns the level sensitive IRQ sources as IRQ bits.
func (c *Core) conditions() spisimple.IRQ {
	s := c.status()
	var irq spisimple.IRQ
	if s.TxEmpty() {
		irq |= spisimple.IRQTxEmpty
	}
	if s.TxAlmostEmpty() {
		irq |= spisimple.IRQTxAlmostEmpty
	}
	if s.RxFull() {
		irq |= spisimple.IRQRxFull
	}
	if s.RxAlmostFull() {
		irq |= spisimple.IRQRxAlmostFull
	}
	return irq
}

// update latches rising edges of the IRQ sources.
func (c *Core) update() {
	conds := c.conditions()
	c.irqVec |= conds &^ c.conds
	c.conds = conds
}

// Hold freezes (true) or resumes (false) shifting of words.
func (c *Core) Hold(hold bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held = hold
}

// Tick advances the simulation by n cycles without a register access.
func (c *Core) Tick(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < n; i++ {
		c.step()
	}
}

// SetTxLevel replaces the TX FIFO contents with n filler words. Use together
// with Hold to pin the TX FIFO at a level.
func (c *Core) SetTxLevel(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 || n > c.txDepth {
		panic("sim: tx level out of range")
	}
	c.tx = c.tx[:0]
	for i := 0; i < n; i++ {
		c.tx = append(c.tx, txEntry{})
	}
	c.update()
}

// PushRx queues words in the RX FIFO as if received by earlier transfers.
// Words not fitting in the RX FIFO are dropped and counted as overflows.
func (c *Core) PushRx(words ...uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range words {
		if len(c.rx) >= c.rxDepth {
			c.rxOverflow++
			continue
		}
		c.rx = append(c.rx, w)
	}
	c.update()
}

// Busy reports the busy flag without advancing the simulation.
func (c *Core) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status().Busy()
}

// Status returns the STATUS register without advancing the simulation or
// recording an access.
func (c *Core) Status() spisimple.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status()
}

// RxFIFO returns a copy of the RX FIFO contents, oldest first.
func (c *Core) RxFIFO() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint32(nil), c.rx...)
}

// TxLevel returns the number of words waiting in the TX FIFO.
func (c *Core) TxLevel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tx)
}

// Slave returns the value of the SLAVE_NR register.
func (c *Core) Slave() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slave
}

// StoreRx returns the value of the STORE_RX register.
func (c *Core) StoreRx() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storeRx
}

// Thresholds returns the TX almost empty and RX almost full thresholds.
func (c *Core) Thresholds() (txAlmostEmpty, rxAlmostFull uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txAlmEmpty, c.rxAlmFull
}

// IRQ returns the latched IRQ vector and the enable mask.
func (c *Core) IRQ() (vec, ena spisimple.IRQ) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.irqVec, c.irqEna
}

// LatchIRQ sets bits in the IRQ vector as if their sources had fired.
func (c *Core) LatchIRQ(mask spisimple.IRQ) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.irqVec |= mask & spisimple.IRQAll
}

// IRQPending reports whether the interrupt line is asserted, i.e. an enabled
// IRQ flag is latched.
func (c *Core) IRQPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.irqVec&c.irqEna != 0
}

// Accesses returns a copy of the register access log.
func (c *Core) Accesses() []Access {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Access(nil), c.log...)
}

// Writes returns the write accesses of the log.
func (c *Core) Writes() []Access {
	c.mu.Lock()
	defer c.mu.Unlock()
	var w []Access
	for _, a := range c.log {
		if a.Write {
			w = append(w, a)
		}
	}
	return w
}

// Written returns the values written to the register at offset, in order.
func (c *Core) Written(offset uintptr) []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var vals []uint32
	for _, a := range c.log {
		if a.Write && a.Offset == offset {
			vals = append(vals, a.Value)
		}
	}
	return vals
}

// ResetLog clears the access log and the status read counter.
func (c *Core) ResetLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = c.log[:0]
	c.statusReads = 0
}

// StatusReads returns the number of STATUS reads since the last ResetLog.
func (c *Core) StatusReads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusReads
}

// Completed returns the number of words shifted out since creation.
func (c *Core) Completed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// Overflows returns the number of words dropped because the TX FIFO
// (DATA written while full) or the RX FIFO (word received while full) had no space.
func (c *Core) Overflows() (tx, rx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txOverflow, c.rxOverflow
}

// Underflows returns the number of DATA reads with an empty RX FIFO.
func (c *Core) Underflows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.underflow
}
