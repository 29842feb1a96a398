package spisimple

import "strconv"

// Core is a handle on one SPI-simple core: a register accessor plus the base
// address of the core. It caches no hardware state, every method translates
// to the package level function of the same name. Core is a small value and
// is meant to be passed by value like the handles of machine packages.
type Core struct {
	rw   Registers
	base uintptr
	poll Poller
}

// NewCore returns a handle on the core at base accessed through rw.
func NewCore(rw Registers, base uintptr) Core {
	return Core{rw: rw, base: base}
}

// WithPoller returns a copy of c whose blocking methods wait using p.
func (c Core) WithPoller(p Poller) Core {
	c.poll = p
	return c
}

// IsValid returns true if the core has a register accessor.
func (c Core) IsValid() bool { return c.rw != nil }

// Base returns the base address of the core.
func (c Core) Base() uintptr { return c.base }

// Registers returns the register accessor of the core.
func (c Core) Registers() Registers { return c.rw }

func (c Core) String() string {
	return "spisimple@0x" + strconv.FormatUint(uint64(c.base), 16)
}

// TxBlocking is the Core form of the package level TxBlocking. If the
// Core's Poller is bounded it may also return ErrTimeout.
func (c Core) TxBlocking(slave uint8, txData uint32) error {
	return txBlocking(c.rw, c.base, slave, txData, c.poll)
}

// RxTxBlocking is the Core form of the package level RxTxBlocking. If the
// Core's Poller is bounded it may also return ErrTimeout.
func (c Core) RxTxBlocking(slave uint8, txData uint32) (uint32, error) {
	return rxTxBlocking(c.rw, c.base, slave, txData, c.poll)
}

// TxNonBlocking is the Core form of the package level TxNonBlocking.
func (c Core) TxNonBlocking(slave uint8, txData uint32) error {
	return TxNonBlocking(c.rw, c.base, slave, txData)
}

// RxTxNonBlocking is the Core form of the package level RxTxNonBlocking.
func (c Core) RxTxNonBlocking(slave uint8, txData uint32) error {
	return RxTxNonBlocking(c.rw, c.base, slave, txData)
}

// RxData pops the oldest word from the RX FIFO.
func (c Core) RxData() (uint32, error) { return RxData(c.rw, c.base) }

// WaitIdle waits until no transfer is ongoing.
func (c Core) WaitIdle() error { return c.poll.waitClear(c.rw, c.base, StatusBusy) }

// Status reads the STATUS register.
func (c Core) Status() Status { return StatusReg(c.rw, c.base) }

// IsTxFIFOFull returns true if the TX FIFO has no space left.
func (c Core) IsTxFIFOFull() bool { return IsTxFIFOFull(c.rw, c.base) }

// IsTxFIFOEmpty returns true if the TX FIFO holds no words.
func (c Core) IsTxFIFOEmpty() bool { return IsTxFIFOEmpty(c.rw, c.base) }

// IsRxFIFOEmpty returns true if the RX FIFO holds no words.
func (c Core) IsRxFIFOEmpty() bool { return IsRxFIFOEmpty(c.rw, c.base) }

// IsRxFIFOFull returns true if the RX FIFO has no space left.
func (c Core) IsRxFIFOFull() bool { return IsRxFIFOFull(c.rw, c.base) }

// IsBusy returns true while a transfer is ongoing.
func (c Core) IsBusy() bool { return IsBusy(c.rw, c.base) }

// RxFIFOLevel returns the number of words in the RX FIFO.
func (c Core) RxFIFOLevel() uint32 { return RxFIFOLevel(c.rw, c.base) }

// TxFIFOLevel returns the number of words in the TX FIFO.
func (c Core) TxFIFOLevel() uint32 { return TxFIFOLevel(c.rw, c.base) }

// IRQVector returns the latched interrupt flags.
func (c Core) IRQVector() IRQ { return IRQVector(c.rw, c.base) }

// ClearIRQ clears the interrupt flags set in mask.
func (c Core) ClearIRQ(mask IRQ) { ClearIRQ(c.rw, c.base, mask) }

// AckIRQ clears and returns the latched interrupt flags.
func (c Core) AckIRQ() IRQ { return AckIRQ(c.rw, c.base) }

// SetIRQEnable replaces the interrupt enable mask.
func (c Core) SetIRQEnable(mask IRQ) { SetIRQEnable(c.rw, c.base, mask) }

// Configure applies cfg to the core.
func (c Core) Configure(cfg Config) { Configure(c.rw, c.base, cfg) }

// SetTxAlmostEmptyThreshold sets the TX almost empty threshold.
func (c Core) SetTxAlmostEmptyThreshold(threshold uint32) {
	SetTxAlmostEmptyThreshold(c.rw, c.base, threshold)
}

// SetRxAlmostFullThreshold sets the RX almost full threshold.
func (c Core) SetRxAlmostFullThreshold(threshold uint32) {
	SetRxAlmostFullThreshold(c.rw, c.base, threshold)
}
